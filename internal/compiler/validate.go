package compiler

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/crossplot/internal/spec"
)

//go:embed schema.cue
var schemaCUE string

// Validation error codes (E200-E299)
const (
	ErrSchema = "E200" // document does not match #ChartSpec
	ErrParse  = "E201" // document is not well-formed

	// Encoding errors (E202-E209)
	ErrEncodingTag          = "E202" // zero or more than one of field, aggregate, value
	ErrNormalizeWithBin     = "E203" // normalize combined with bin
	ErrAggregateFieldNeeded = "E204" // non-count aggregate without a field
	ErrQuantileNeeded       = "E205" // quantile aggregate without a quantile

	// Chart errors (E210-E219)
	ErrSelectionLayer = "E210" // selection references a missing layer
	ErrScaleDomain    = "E211" // explicit domain unusable for the scale type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

// chartSchema compiles the embedded schema once. A cue.Context is not safe
// for concurrent use, so callers hold schemaMu while using it.
func chartSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#ChartSpec"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

var schemaMu sync.Mutex

// Validate checks a JSON chart spec document. Returns all errors found
// (does not fail-fast), ordered by structural errors first, then semantic
// errors in document order.
func Validate(name string, doc []byte) []ValidationError {
	errs := validateSchema(name, doc)

	var s spec.ChartSpec
	if err := json.Unmarshal(doc, &s); err != nil {
		if len(errs) == 0 {
			errs = append(errs, ValidationError{Field: "", Message: err.Error(), Code: ErrParse})
		}
		return errs
	}
	return append(errs, ValidateSpec(s)...)
}

// validateSchema unifies the document with #ChartSpec.
func validateSchema(name string, doc []byte) []ValidationError {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, def, err := chartSchema()
	if err != nil {
		return []ValidationError{{Field: "schema", Message: err.Error(), Code: ErrSchema}}
	}

	v := ctx.CompileBytes(doc, cue.Filename(name))
	if err := v.Err(); err != nil {
		return cueErrors(err, ErrParse)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return cueErrors(err, ErrSchema)
	}
	return nil
}

// fieldPath joins a CUE error path, dropping the #ChartSpec root so paths
// name document fields.
func fieldPath(path []string) string {
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	return strings.Join(path, ".")
}

// cueErrors flattens a CUE error list into validation errors sorted by
// field path.
func cueErrors(err error, code string) []ValidationError {
	var out []ValidationError
	seen := map[string]bool{}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		}
		if pos := e.Position(); pos.IsValid() {
			ve.Line = pos.Line()
		}
		key := ve.Field + "\x00" + ve.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error(), Code: code})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// ValidateSpec applies the semantic rules to a decoded spec.
func ValidateSpec(s spec.ChartSpec) []ValidationError {
	var errs []ValidationError

	for i, l := range s.Layers {
		for _, ch := range spec.Channels {
			enc, ok := l.Encoding[ch]
			if !ok {
				continue
			}
			errs = append(errs, validateEncoding(fmt.Sprintf("layers.%d.encoding.%s", i, ch), enc)...)
		}
	}

	names := make([]string, 0, len(s.Selections))
	for name := range s.Selections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sel := s.Selections[name]
		if sel.Layer < 0 || sel.Layer >= len(s.Layers) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("selections.%s.layer", name),
				Message: fmt.Sprintf("selection %q references layer %d, chart has %d", name, sel.Layer, len(s.Layers)),
				Code:    ErrSelectionLayer,
			})
		}
	}

	for _, ch := range spec.Channels {
		sc, ok := s.Scale[ch]
		if !ok {
			continue
		}
		errs = append(errs, validateScale(fmt.Sprintf("scale.%s", ch), sc)...)
	}

	return errs
}

func validateEncoding(field string, enc spec.Encoding) []ValidationError {
	if err := enc.Err(); err != nil {
		switch {
		case errors.Is(err, spec.ErrNoEncodingTag), errors.Is(err, spec.ErrMultipleEncodingTags):
			return []ValidationError{{Field: field, Message: err.Error(), Code: ErrEncodingTag}}
		case errors.Is(err, spec.ErrNormalizeWithBin):
			return []ValidationError{{Field: field, Message: err.Error(), Code: ErrNormalizeWithBin}}
		}
		// Unknown keys and empty fields are reported by the schema pass.
		return nil
	}

	agg := enc.Aggregate
	if agg == nil {
		return nil
	}
	var errs []ValidationError
	if agg.Aggregate != spec.AggCount && agg.Field == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".field",
			Message: fmt.Sprintf("aggregate %q requires a field", agg.Aggregate),
			Code:    ErrAggregateFieldNeeded,
		})
	}
	if agg.Aggregate == spec.AggQuantile && agg.Quantile == nil {
		errs = append(errs, ValidationError{
			Field:   field + ".quantile",
			Message: "quantile aggregate requires a quantile",
			Code:    ErrQuantileNeeded,
		})
	}
	return errs
}

func validateScale(field string, sc spec.ScaleSpec) []ValidationError {
	if len(sc.Domain) == 0 {
		return nil
	}
	var errs []ValidationError
	for i, d := range sc.Domain {
		f, isNum := d.(float64)
		switch sc.Type {
		case spec.ScaleLinear, spec.ScaleLog, spec.ScaleSymlog:
			if !isNum {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s.domain.%d", field, i),
					Message: fmt.Sprintf("%s scale domain must be numeric, got %v", sc.Type, d),
					Code:    ErrScaleDomain,
				})
				continue
			}
		}
		if sc.Type == spec.ScaleLog && f <= 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.domain.%d", field, i),
				Message: fmt.Sprintf("log scale domain must be positive, got %v", f),
				Code:    ErrScaleDomain,
			})
		}
	}
	return errs
}
