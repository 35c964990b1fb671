package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSpec = `{
  "title": "Flights",
  "layers": [
    {
      "mark": "bar",
      "filter": true,
      "encoding": {
        "x": {"field": "delay", "bin": {"count": 10}},
        "y": {"aggregate": "count"}
      }
    },
    {
      "mark": "rule",
      "encoding": {"y": {"value": 2}}
    }
  ],
  "scale": {"y": {"type": "symlog", "constant": 1}},
  "axis": {"x": {"title": "Delay (min)", "tickCount": 5}},
  "selections": {"brush": {"type": "interval", "encoding": "x"}},
  "widgets": [{"type": "legend"}]
}`

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	errs := Validate("valid.json", []byte(validSpec))
	assert.Empty(t, errs, "valid spec should have no errors: %v", errs)
}

func TestValidateSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "unknown mark",
			doc:   `{"layers": [{"mark": "pie", "encoding": {}}]}`,
			field: "layers.0.mark",
		},
		{
			name:  "unknown channel",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"z": {"field": "a"}}}]}`,
			field: "layers.0.encoding",
		},
		{
			name:  "unknown aggregate",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"y": {"aggregate": "mode", "field": "a"}}}]}`,
			field: "layers.0.encoding.y.aggregate",
		},
		{
			name:  "unknown top-level key",
			doc:   `{"layers": [], "theme": "dark"}`,
			field: "theme",
		},
		{
			name:  "missing layers",
			doc:   `{"title": "empty"}`,
			field: "",
		},
		{
			name:  "quantile out of range",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"y": {"aggregate": "quantile", "field": "a", "quantile": 2}}}]}`,
			field: "layers.0.encoding.y.quantile",
		},
		{
			name:  "bad selection type",
			doc:   `{"layers": [], "selections": {"s": {"type": "lasso"}}}`,
			field: "selections.s.type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate("doc.json", []byte(tt.doc))
			require.NotEmpty(t, errs)
			assert.Equal(t, ErrSchema, errs[0].Code)
			found := false
			for _, e := range errs {
				assert.NotContains(t, e.Field, "#ChartSpec")
				if len(e.Field) >= len(tt.field) && e.Field[:len(tt.field)] == tt.field {
					found = true
				}
			}
			assert.True(t, found, "no error under %q in %v", tt.field, errs)
		})
	}
}

func TestFieldPath(t *testing.T) {
	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"#ChartSpec"}, ""},
		{[]string{"#ChartSpec", "layers", "0", "mark"}, "layers.0.mark"},
		{[]string{"theme"}, "theme"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fieldPath(tt.path))
	}
}

func TestValidateSemanticErrors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		code  string
		field string
	}{
		{
			name:  "field and value",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"x": {"field": "a", "value": 1}}}]}`,
			code:  ErrEncodingTag,
			field: "layers.0.encoding.x",
		},
		{
			name:  "no tag",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"x": {}}}]}`,
			code:  ErrEncodingTag,
			field: "layers.0.encoding.x",
		},
		{
			name:  "normalize with bin",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"y": {"aggregate": "count", "normalize": true, "bin": true}}}]}`,
			code:  ErrNormalizeWithBin,
			field: "layers.0.encoding.y",
		},
		{
			name:  "mean without field",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"y": {"aggregate": "mean"}}}]}`,
			code:  ErrAggregateFieldNeeded,
			field: "layers.0.encoding.y.field",
		},
		{
			name:  "quantile without quantile",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"y": {"aggregate": "quantile", "field": "a"}}}]}`,
			code:  ErrQuantileNeeded,
			field: "layers.0.encoding.y.quantile",
		},
		{
			name:  "selection layer out of range",
			doc:   `{"layers": [{"mark": "bar", "encoding": {"x": {"field": "a"}}}], "selections": {"pick": {"type": "point", "layer": 3}}}`,
			code:  ErrSelectionLayer,
			field: "selections.pick.layer",
		},
		{
			name:  "log domain not positive",
			doc:   `{"layers": [], "scale": {"x": {"type": "log", "domain": [0, 10]}}}`,
			code:  ErrScaleDomain,
			field: "scale.x.domain.0",
		},
		{
			name:  "linear domain not numeric",
			doc:   `{"layers": [], "scale": {"y": {"type": "linear", "domain": ["a", 1]}}}`,
			code:  ErrScaleDomain,
			field: "scale.y.domain.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate("doc.json", []byte(tt.doc))
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	doc := `{
  "layers": [
    {"mark": "bar", "encoding": {"x": {"field": "a", "value": 1}, "y": {"aggregate": "sum"}}}
  ],
  "selections": {"pick": {"type": "point", "layer": 1}}
}`
	errs := Validate("doc.json", []byte(doc))
	assert.Equal(t, []string{ErrEncodingTag, ErrAggregateFieldNeeded, ErrSelectionLayer}, codes(errs))
}

func TestValidateMalformedJSON(t *testing.T) {
	errs := Validate("broken.json", []byte(`{"layers": [`))
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrParse, errs[0].Code)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "layers.0.mark", Message: "bad mark", Code: ErrSchema}
	assert.Equal(t, "[E200] layers.0.mark: bad mark", e.Error())

	e.Line = 4
	assert.Equal(t, "[E200] line 4: layers.0.mark: bad mark", e.Error())
}
