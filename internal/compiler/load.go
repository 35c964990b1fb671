package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/crossplot/internal/spec"
)

// Spec file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCUE  = "cue"
)

// Document is a loaded spec file.
type Document struct {
	Name   string
	Format string
	// JSON is the document normalized to JSON. For JSON inputs it is the
	// file content unchanged.
	JSON []byte
	Spec spec.ChartSpec
}

// FormatFor returns the spec format implied by a file extension.
func FormatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".cue":
		return FormatCUE, nil
	}
	return "", fmt.Errorf("unsupported spec file extension %q", filepath.Ext(path))
}

// LoadSpec reads and decodes a spec file.
func LoadSpec(path string) (*Document, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return ParseSpec(filepath.Base(path), format, data)
}

// Normalize converts spec content in the given format to JSON.
func Normalize(name, format string, data []byte) ([]byte, error) {
	var (
		doc []byte
		err error
	)
	switch format {
	case FormatJSON:
		doc = data
	case FormatYAML:
		doc, err = yamlToJSON(data)
	case FormatCUE:
		doc, err = cueToJSON(name, data)
	default:
		err = fmt.Errorf("unsupported spec format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return doc, nil
}

// ParseSpec decodes spec content in the given format.
func ParseSpec(name, format string, data []byte) (*Document, error) {
	doc, err := Normalize(name, format, data)
	if err != nil {
		return nil, err
	}

	var s spec.ChartSpec
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return &Document{Name: name, Format: format, JSON: doc, Spec: s}, nil
}

// Validate checks the document. Line numbers are kept only for JSON
// inputs, where they refer to the file itself.
func (d *Document) Validate() []ValidationError {
	errs := Validate(d.Name, d.JSON)
	if d.Format != FormatJSON {
		for i := range errs {
			errs[i].Line = 0
		}
	}
	return errs
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	clean, err := stringKeys(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(clean)
}

// stringKeys converts YAML mappings into JSON objects.
func stringKeys(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			c, err := stringKeys(e)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("mapping key %v is not a string", k)
			}
			c, err := stringKeys(e)
			if err != nil {
				return nil, err
			}
			out[ks] = c
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			c, err := stringKeys(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return v, nil
}

func cueToJSON(name string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return v.MarshalJSON()
}

// ValidateFile loads and validates a spec file. Read failures are returned
// as errors; content that cannot be parsed is reported as an ErrParse
// validation error.
func ValidateFile(path string) ([]ValidationError, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	name := filepath.Base(path)
	doc, err := Normalize(name, format, data)
	if err != nil {
		return []ValidationError{{Message: err.Error(), Code: ErrParse}}, nil
	}
	d := &Document{Name: name, Format: format, JSON: doc}
	return d.Validate(), nil
}

// FindSpecFiles returns the spec files directly inside dir, sorted by name.
func FindSpecFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatFor(e.Name()); err == nil {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
