package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crossplot/internal/compiler"
	"github.com/roach88/crossplot/internal/spec"
)

// Scenario defines a cross-filter test scenario.
// A scenario loads a table, mounts charts, drives their selections, and
// asserts on the resulting filter and chart outputs.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is the table every chart reads by default.
	Table string `yaml:"table"`

	// Setup holds SQL statements run against a fresh database before any
	// chart is mounted.
	Setup []string `yaml:"setup"`

	// Charts are mounted in order, each waiting for its first outputs.
	Charts []ChartDef `yaml:"charts"`

	// Steps drive the charts after mounting.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final filter and outputs.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the scenario file's directory, for resolving spec files.
	dir string
}

// ChartDef mounts one chart. Exactly one of Spec and File is set.
type ChartDef struct {
	ID string `yaml:"id"`

	// Spec is an inline chart spec.
	Spec yaml.Node `yaml:"spec,omitempty"`

	// File is a spec file path relative to the scenario file.
	File string `yaml:"file,omitempty"`
}

// Step is one interaction.
type Step struct {
	// Action is one of the Step* constants.
	Action string `yaml:"action"`

	Chart     string `yaml:"chart"`
	Selection string `yaml:"selection,omitempty"`

	// Value is the clicked value for select.
	Value any `yaml:"value,omitempty"`
	// Additive toggles Value within the current selection.
	Additive bool `yaml:"additive,omitempty"`

	// X and Y are brush extents for brush.
	X []float64 `yaml:"x,omitempty"`
	Y []float64 `yaml:"y,omitempty"`

	// Spec and File supply the document for set_spec and update_spec.
	Spec yaml.Node `yaml:"spec,omitempty"`
	File string    `yaml:"file,omitempty"`
	// Mode is "merge" (default) or "replace" for update_spec.
	Mode string `yaml:"mode,omitempty"`
}

// Step actions.
const (
	StepSelect     = "select"
	StepBrush      = "brush"
	StepClear      = "clear"
	StepReset      = "reset"
	StepDestroy    = "destroy"
	StepSetSpec    = "set_spec"
	StepUpdateSpec = "update_spec"
)

// Assertion validates the final host state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "clause_count": the filter holds exactly Count clauses
	// - "predicate": the rendered filter equals Equals
	// - "layer_rows": a layer published exactly Count rows
	// - "domain_contains": a channel's scale domain includes Values
	// - "layer_error": a layer's error contains Contains
	// - "chart_count": exactly Count charts are mounted
	Type string `yaml:"type"`

	Chart   string `yaml:"chart,omitempty"`
	Layer   int    `yaml:"layer,omitempty"`
	Channel string `yaml:"channel,omitempty"`

	Count    *int   `yaml:"count,omitempty"`
	Equals   string `yaml:"equals,omitempty"`
	Contains string `yaml:"contains,omitempty"`
	Values   []any  `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertClauseCount    = "clause_count"
	AssertPredicate      = "predicate"
	AssertLayerRows      = "layer_rows"
	AssertDomainContains = "domain_contains"
	AssertLayerError     = "layer_error"
	AssertChartCount     = "chart_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Spec file paths resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file in dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// chartSpec decodes an inline spec node or loads a spec file.
func (s *Scenario) chartSpec(node yaml.Node, file string) (spec.ChartSpec, error) {
	if file != "" {
		path := file
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		doc, err := compiler.LoadSpec(path)
		if err != nil {
			return spec.ChartSpec{}, err
		}
		return doc.Spec, nil
	}
	data, err := yaml.Marshal(&node)
	if err != nil {
		return spec.ChartSpec{}, fmt.Errorf("encode inline spec: %w", err)
	}
	doc, err := compiler.ParseSpec("inline", compiler.FormatYAML, data)
	if err != nil {
		return spec.ChartSpec{}, err
	}
	return doc.Spec, nil
}

// specJSON returns the JSON form of an inline spec node or spec file, for
// update_spec patches.
func (s *Scenario) specJSON(node yaml.Node, file string) ([]byte, error) {
	if file != "" {
		path := file
		if !filepath.IsAbs(path) && s.dir != "" {
			path = filepath.Join(s.dir, path)
		}
		format, err := compiler.FormatFor(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec: %w", err)
		}
		return compiler.Normalize(filepath.Base(path), format, data)
	}
	data, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encode inline spec: %w", err)
	}
	return compiler.Normalize("inline", compiler.FormatYAML, data)
}

func hasNode(n yaml.Node) bool {
	return n.Kind != 0
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(s.Charts) == 0 {
		return fmt.Errorf("at least one chart is required")
	}

	ids := make(map[string]bool, len(s.Charts))
	for i, c := range s.Charts {
		if c.ID == "" {
			return fmt.Errorf("charts[%d]: id is required", i)
		}
		if ids[c.ID] {
			return fmt.Errorf("charts[%d]: duplicate chart id %q", i, c.ID)
		}
		ids[c.ID] = true
		if hasNode(c.Spec) == (c.File != "") {
			return fmt.Errorf("charts[%d]: exactly one of spec and file is required", i)
		}
	}

	for i, st := range s.Steps {
		if err := validateStep(i, st, ids); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step, ids map[string]bool) error {
	if st.Chart == "" {
		return fmt.Errorf("steps[%d]: chart is required", index)
	}
	if !ids[st.Chart] {
		return fmt.Errorf("steps[%d]: unknown chart %q", index, st.Chart)
	}

	switch st.Action {
	case StepSelect:
		if st.Selection == "" {
			return fmt.Errorf("steps[%d]: selection is required for select", index)
		}
		if st.Value == nil {
			return fmt.Errorf("steps[%d]: value is required for select", index)
		}
	case StepBrush:
		if st.Selection == "" {
			return fmt.Errorf("steps[%d]: selection is required for brush", index)
		}
		for _, r := range [][]float64{st.X, st.Y} {
			if r != nil && len(r) != 2 {
				return fmt.Errorf("steps[%d]: brush extents need exactly two bounds", index)
			}
		}
	case StepClear:
		if st.Selection == "" {
			return fmt.Errorf("steps[%d]: selection is required for clear", index)
		}
	case StepReset, StepDestroy:
	case StepSetSpec, StepUpdateSpec:
		if hasNode(st.Spec) == (st.File != "") {
			return fmt.Errorf("steps[%d]: exactly one of spec and file is required for %s", index, st.Action)
		}
		if st.Mode != "" {
			if _, err := spec.ParseMode(st.Mode); err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertClauseCount, AssertChartCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertPredicate:
	case AssertLayerRows:
		if a.Chart == "" {
			return fmt.Errorf("assertions[%d]: chart is required for layer_rows", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for layer_rows", index)
		}
	case AssertDomainContains:
		if a.Chart == "" || a.Channel == "" {
			return fmt.Errorf("assertions[%d]: chart and channel are required for domain_contains", index)
		}
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values are required for domain_contains", index)
		}
	case AssertLayerError:
		if a.Chart == "" || a.Contains == "" {
			return fmt.Errorf("assertions[%d]: chart and contains are required for layer_error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
