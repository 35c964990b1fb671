package scale

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/aclements/go-moremath/stats"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/spec"
)

// Inference tunables.
var (
	// SinglePointTolerance is the relative width below which a domain is
	// treated as a single point.
	SinglePointTolerance = 1e-10

	// SymlogLinearFactor sets the symlog linear region to
	// [-factor*constant, factor*constant] for tick generation.
	SymlogLinearFactor = 5.0

	// LogSinglePointFactor expands a single-point log domain to
	// [v/factor, v*factor].
	LogSinglePointFactor = 10.0

	// DefaultSymlogConstant is used when a symlog scale sets no constant.
	DefaultSymlogConstant = 1.0
)

// Config is an inferred, pixel-independent scale.
type Config struct {
	Type string `json:"type"`
	// Domain is the [min, max] extent of a quantitative scale.
	Domain [2]float64 `json:"domain"`
	// Categories is the ordered domain of a band scale.
	Categories []string `json:"categories,omitempty"`
	// Specials are rendered in a reserved band after the main range.
	Specials []string `json:"specials,omitempty"`
	// Constant is the symlog linear-region constant.
	Constant float64 `json:"constant,omitempty"`
}

// IsBand reports whether the scale is categorical.
func (c Config) IsBand() bool {
	return c.Type == spec.ScaleBand
}

// Bounded is implemented by values that occupy a range of a quantitative
// domain, such as bins.
type Bounded interface {
	Bounds() (lo, hi float64)
}

// Infer derives the scale for one channel from the spec override, the
// merged hints of every layer, and the values observed in each layer's
// channel column.
func Infer(channel spec.Channel, override spec.ScaleSpec, hint Hint, values []any) Config {
	if isNominal(override, hint, values) {
		return inferNominal(override, hint, values)
	}
	return inferQuantitative(channel, override, hint, values)
}

func isNominal(override spec.ScaleSpec, hint Hint, values []any) bool {
	switch {
	case override.Type == spec.ScaleBand:
		return true
	case override.Type != "":
		return false
	case hint.Nominal != nil:
		return true
	case hint.Quantitative != nil:
		return false
	}
	for _, v := range values {
		switch v.(type) {
		case nil:
		case string, bool:
			return true
		}
	}
	return false
}

func inferNominal(override spec.ScaleSpec, hint Hint, values []any) Config {
	cfg := Config{Type: spec.ScaleBand}
	var specials []string
	var hinted []string
	if hint.Nominal != nil {
		specials = hint.Nominal.Specials
		hinted = hint.Nominal.Domain
	}
	if hint.Quantitative != nil {
		specials = hint.Quantitative.Specials
	}
	cfg.Specials = slices.Clone(specials)

	if len(override.Domain) > 0 {
		for _, v := range override.Domain {
			cfg.Categories = append(cfg.Categories, fmt.Sprint(v))
		}
		return cfg
	}

	special := make(map[string]bool, len(specials))
	for _, s := range specials {
		special[s] = true
	}
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] && !special[s] {
			seen[s] = true
			cfg.Categories = append(cfg.Categories, s)
		}
	}
	for _, s := range hinted {
		add(s)
	}
	for _, v := range values {
		if v != nil {
			add(fmt.Sprint(v))
		}
	}
	return cfg
}

func inferQuantitative(channel spec.Channel, override spec.ScaleSpec, hint Hint, values []any) Config {
	cfg := Config{Type: override.Type}
	q := hint.Quantitative
	if cfg.Type == "" && q != nil {
		cfg.Type = q.Type
	}
	if cfg.Type == "" {
		cfg.Type = spec.ScaleLinear
	}
	if cfg.Type == spec.ScaleSymlog {
		cfg.Constant = override.Constant
		if cfg.Constant <= 0 {
			cfg.Constant = DefaultSymlogConstant
		}
	}
	if q != nil {
		cfg.Specials = slices.Clone(q.Specials)
	}

	if lo, hi, ok := explicitDomain(override.Domain); ok {
		cfg.Domain = [2]float64{lo, hi}
		return cfg
	}

	logScale := cfg.Type == spec.ScaleLog
	var xs []float64
	include := func(x float64) {
		if math.IsNaN(x) || math.IsInf(x, 0) || (logScale && x <= 0) {
			return
		}
		xs = append(xs, x)
	}
	if q != nil {
		for _, x := range q.Domain {
			include(x)
		}
	}
	for _, v := range values {
		switch val := v.(type) {
		case Bounded:
			lo, hi := val.Bounds()
			include(lo)
			include(hi)
		default:
			if x, ok := conn.ToFloat(v); ok {
				include(x)
			}
		}
	}

	if len(xs) == 0 {
		if logScale {
			cfg.Domain = [2]float64{1, 10}
		} else {
			cfg.Domain = [2]float64{0, 1}
		}
		return cfg
	}
	lo, hi := stats.Bounds(xs)

	if isSinglePoint(lo, hi) {
		lo, hi = expandSinglePoint(lo, logScale)
	}

	includeZero := channel == spec.ChannelSize || (q != nil && q.IncludeZero)
	if override.Zero != nil {
		includeZero = *override.Zero || channel == spec.ChannelSize
	}
	if includeZero && !logScale {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}

	cfg.Domain = [2]float64{lo, hi}
	return cfg
}

func explicitDomain(domain []any) (lo, hi float64, ok bool) {
	if len(domain) != 2 {
		if len(domain) > 0 {
			slog.Warn("ignoring quantitative domain override", "length", len(domain))
		}
		return 0, 0, false
	}
	lo, ok1 := conn.ToFloat(domain[0])
	hi, ok2 := conn.ToFloat(domain[1])
	if !ok1 || !ok2 {
		slog.Warn("ignoring non-numeric domain override", "domain", domain)
		return 0, 0, false
	}
	return lo, hi, true
}

func isSinglePoint(lo, hi float64) bool {
	return hi-lo <= SinglePointTolerance*math.Max(1, math.Max(math.Abs(lo), math.Abs(hi)))
}

// expandSinglePoint widens a degenerate domain toward zero, or by a factor
// on each side for log scales.
func expandSinglePoint(v float64, logScale bool) (lo, hi float64) {
	switch {
	case logScale:
		return v / LogSinglePointFactor, v * LogSinglePointFactor
	case v > 0:
		return 0, v
	case v < 0:
		return v, 0
	}
	return 0, 1
}
