package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/crossplot/internal/chart"
	"github.com/roach88/crossplot/internal/conn"
	"github.com/roach88/crossplot/internal/spec"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	// Predicate is the rendered cross-filter at assertion time.
	Predicate string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Predicate != "" {
		fmt.Fprintf(&buf, "\nFilter: %s\n", e.Predicate)
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the host. Returns a
// slice of error messages for failed assertions. Call it on the host loop.
func EvaluateAssertions(host *chart.Host, assertions []Assertion) []string {
	var errors []string

	pred, _ := host.Predicate()
	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertClauseCount:
			err = assertClauseCount(host, a)
		case AssertPredicate:
			err = assertPredicate(pred, a)
		case AssertChartCount:
			err = assertChartCount(host, a)
		case AssertLayerRows, AssertDomainContains, AssertLayerError:
			err = assertOutputs(host, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if ae, ok := err.(*AssertionError); ok {
			ae.Predicate = pred
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertClauseCount(host *chart.Host, a Assertion) error {
	got := len(host.Filter().Clauses())
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertClauseCount,
		Expected: fmt.Sprintf("%d clauses", *a.Count),
		Actual:   fmt.Sprintf("%d clauses", got),
	}
}

func assertPredicate(pred string, a Assertion) error {
	if pred == a.Equals {
		return nil
	}
	return &AssertionError{
		Type:     AssertPredicate,
		Expected: fmt.Sprintf("%q", a.Equals),
		Actual:   fmt.Sprintf("%q", pred),
	}
}

func assertChartCount(host *chart.Host, a Assertion) error {
	got := len(host.Charts())
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertChartCount,
		Expected: fmt.Sprintf("%d charts", *a.Count),
		Actual:   fmt.Sprintf("%d charts", got),
	}
}

// assertOutputs checks the assertions that read a chart's outputs.
func assertOutputs(host *chart.Host, a Assertion) error {
	c, ok := host.Chart(a.Chart)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("chart %q", a.Chart),
			Actual:   "chart not mounted",
		}
	}
	out := c.Outputs().Get()

	if a.Type == AssertDomainContains {
		return assertDomainContains(out, a)
	}

	i := slices.IndexFunc(out.Layers, func(l chart.LayerOutput) bool { return l.Index == a.Layer })
	if i < 0 {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("layer %d of chart %q", a.Layer, a.Chart),
			Actual:   fmt.Sprintf("chart has %d layers", len(out.Layers)),
		}
	}
	lo := out.Layers[i]

	switch a.Type {
	case AssertLayerRows:
		if lo.Error != "" {
			return &AssertionError{
				Type:     AssertLayerRows,
				Expected: fmt.Sprintf("%d rows", *a.Count),
				Actual:   fmt.Sprintf("layer error: %s", lo.Error),
			}
		}
		if len(lo.Rows) != *a.Count {
			return &AssertionError{
				Type:     AssertLayerRows,
				Expected: fmt.Sprintf("%d rows in %s layer %d", *a.Count, a.Chart, a.Layer),
				Actual:   fmt.Sprintf("%d rows", len(lo.Rows)),
			}
		}
	case AssertLayerError:
		if !strings.Contains(lo.Error, a.Contains) {
			actual := "no error"
			if lo.Error != "" {
				actual = lo.Error
			}
			return &AssertionError{
				Type:     AssertLayerError,
				Expected: fmt.Sprintf("error containing %q", a.Contains),
				Actual:   actual,
			}
		}
	}
	return nil
}

// assertDomainContains checks categories for band scales and the numeric
// extent otherwise.
func assertDomainContains(out chart.Outputs, a Assertion) error {
	sc, ok := out.Scale[spec.Channel(a.Channel)]
	if !ok {
		return &AssertionError{
			Type:     AssertDomainContains,
			Expected: fmt.Sprintf("%s scale on chart %q", a.Channel, a.Chart),
			Actual:   "no scale",
		}
	}

	for _, v := range a.Values {
		if sc.IsBand() {
			cat := fmt.Sprint(v)
			if !slices.Contains(sc.Categories, cat) && !slices.Contains(sc.Specials, cat) {
				return &AssertionError{
					Type:     AssertDomainContains,
					Expected: fmt.Sprintf("category %q", cat),
					Actual:   fmt.Sprintf("categories %v", sc.Categories),
				}
			}
			continue
		}
		f, isNum := conn.ToFloat(v)
		if !isNum || f < sc.Domain[0] || f > sc.Domain[1] {
			return &AssertionError{
				Type:     AssertDomainContains,
				Expected: fmt.Sprintf("domain containing %v", v),
				Actual:   fmt.Sprintf("domain %v", sc.Domain),
			}
		}
	}
	return nil
}
