package scale

import (
	"fmt"
	"math"
	"slices"

	moremath "github.com/aclements/go-moremath/scale"

	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/spec"
)

// SpecialBandWidth is the pixel width of each reserved special band.
var SpecialBandWidth = 20.0

// Concrete is a Config bound to a pixel range. It is immutable; rebinding
// produces a new value.
//
// Special labels occupy reserved bands of SpecialBandWidth pixels that
// follow the end of the range, in the direction of the range.
type Concrete struct {
	cfg    Config
	r0, r1 float64
	// t0 and t1 are the domain ends in transformed space.
	t0, t1 float64
}

// Bind attaches a pixel range to cfg.
func Bind(cfg Config, r0, r1 float64) Concrete {
	s := Concrete{cfg: cfg, r0: r0, r1: r1}
	if !cfg.IsBand() {
		s.t0 = s.transform(cfg.Domain[0])
		s.t1 = s.transform(cfg.Domain[1])
	}
	return s
}

// Config returns the bound configuration.
func (s Concrete) Config() Config { return s.cfg }

// Range returns the pixel range.
func (s Concrete) Range() (r0, r1 float64) { return s.r0, s.r1 }

func (s Concrete) transform(x float64) float64 {
	switch s.cfg.Type {
	case spec.ScaleLog:
		return math.Log10(x)
	case spec.ScaleSymlog:
		return symlog(x, s.constant())
	}
	return x
}

func (s Concrete) untransform(t float64) float64 {
	switch s.cfg.Type {
	case spec.ScaleLog:
		return math.Pow(10, t)
	case spec.ScaleSymlog:
		return symexp(t, s.constant())
	}
	return t
}

func (s Concrete) constant() float64 {
	if s.cfg.Constant > 0 {
		return s.cfg.Constant
	}
	return DefaultSymlogConstant
}

func symlog(x, c float64) float64 {
	return math.Copysign(math.Log1p(math.Abs(x)/c), x)
}

func symexp(t, c float64) float64 {
	return math.Copysign(math.Expm1(math.Abs(t))*c, t)
}

// unit maps x into [0,1] over the transformed domain.
func (s Concrete) unit(x float64) float64 {
	lin := moremath.Linear{Min: s.t0, Max: s.t1}
	if s.t0 == s.t1 {
		return 0.5
	}
	return lin.Map(s.transform(x))
}

func (s Concrete) pixel(u float64) float64 {
	return s.r0 + u*(s.r1-s.r0)
}

// Apply maps a domain value to a pixel position. For band scales the
// position is the start of the value's band. ok is false when the value has
// no position.
func (s Concrete) Apply(v any) (float64, bool) {
	start, _, ok := s.ApplyBand(v)
	return start, ok
}

// ApplyBand maps a value to the pixel span it occupies. Points have zero
// width; bins, categories and special labels have positive width.
func (s Concrete) ApplyBand(v any) (start, width float64, ok bool) {
	if label, isString := v.(string); isString {
		if i := slices.Index(s.cfg.Specials, label); i >= 0 {
			return s.specialBand(i)
		}
	}
	if s.cfg.IsBand() {
		if v == nil {
			return 0, 0, false
		}
		i := slices.Index(s.cfg.Categories, fmt.Sprint(v))
		if i < 0 {
			return 0, 0, false
		}
		bw := s.bandWidth()
		return s.r0 + float64(i)*bw, bw, true
	}

	if b, isBounded := v.(Bounded); isBounded {
		lo, hi := b.Bounds()
		p0, p1 := s.pixel(s.unit(lo)), s.pixel(s.unit(hi))
		if !finite(p0) || !finite(p1) {
			return 0, 0, false
		}
		return p0, p1 - p0, true
	}
	x, isNum := conn.ToFloat(v)
	if !isNum {
		return 0, 0, false
	}
	p := s.pixel(s.unit(x))
	if !finite(p) {
		return 0, 0, false
	}
	return p, 0, true
}

func (s Concrete) bandWidth() float64 {
	if len(s.cfg.Categories) == 0 {
		return 0
	}
	return (s.r1 - s.r0) / float64(len(s.cfg.Categories))
}

func (s Concrete) specialBand(i int) (start, width float64, ok bool) {
	dir := 1.0
	if s.r1 < s.r0 {
		dir = -1
	}
	w := SpecialBandWidth * dir
	return s.r1 + float64(i)*w, w, true
}

// Invert maps a pixel position back to the domain: a float64 for
// quantitative scales, a category or special label for band scales, or
// nil when the position lies outside every band.
func (s Concrete) Invert(px float64) any {
	if label, ok := s.invertSpecial(px); ok {
		return label
	}
	if s.cfg.IsBand() {
		bw := s.bandWidth()
		if bw == 0 {
			return nil
		}
		i := int(math.Floor((px - s.r0) / bw))
		if i < 0 || i >= len(s.cfg.Categories) {
			return nil
		}
		return s.cfg.Categories[i]
	}
	if s.r0 == s.r1 {
		return s.cfg.Domain[0]
	}
	u := (px - s.r0) / (s.r1 - s.r0)
	return s.untransform(s.t0 + u*(s.t1-s.t0))
}

func (s Concrete) invertSpecial(px float64) (string, bool) {
	for i, label := range s.cfg.Specials {
		start, w, _ := s.specialBand(i)
		lo, hi := start, start+w
		if lo > hi {
			lo, hi = hi, lo
		}
		if px >= lo && px < hi {
			return label, true
		}
	}
	return "", false
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
