package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/crossplot/internal/spec"
)

// layoutDoc is the JSON shape of the snapshots.layout column.
type layoutDoc struct {
	Layout       any `json:"layout"`
	LayoutStates any `json:"layoutStates"`
}

// marshalCanonical converts v to canonical JSON TEXT for storage.
func marshalCanonical(what string, v any) (string, error) {
	data, err := spec.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// marshalChartState stores a nil state as an empty object.
func marshalChartState(state map[string]any) (string, error) {
	if state == nil {
		state = map[string]any{}
	}
	return marshalCanonical("chart state", state)
}

func unmarshalChartState(data string) (map[string]any, error) {
	state := map[string]any{}
	if data == "" {
		return state, nil
	}
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("unmarshal chart state: %w", err)
	}
	return state, nil
}

func unmarshalSpec(data string) (spec.ChartSpec, error) {
	var s spec.ChartSpec
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return spec.ChartSpec{}, fmt.Errorf("unmarshal spec: %w", err)
	}
	return s, nil
}

func unmarshalLayout(data string) (layoutDoc, error) {
	var doc layoutDoc
	if data == "" {
		return doc, nil
	}
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return layoutDoc{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	return doc, nil
}
