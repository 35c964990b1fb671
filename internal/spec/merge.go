package spec

import (
	"encoding/json"
	"fmt"
)

// Mode selects how an update combines with the current document.
type Mode string

const (
	// ModeMerge applies the update as a JSON merge patch: objects merge
	// recursively, null deletes a key, everything else replaces.
	ModeMerge Mode = "merge"
	// ModeReplace discards the current document.
	ModeReplace Mode = "replace"
)

// ParseMode validates a mode name. The empty string means merge.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown update mode %q", s)
}

// MergePatch applies patch to target following RFC 7386. Neither argument
// is modified.
func MergePatch(target, patch any) any {
	pm, ok := patch.(map[string]any)
	if !ok {
		return patch
	}
	tm, ok := target.(map[string]any)
	out := make(map[string]any, len(tm)+len(pm))
	if ok {
		for k, v := range tm {
			out[k] = v
		}
	}
	for k, v := range pm {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = MergePatch(out[k], v)
	}
	return out
}

// Apply returns the spec produced by applying an update document to s.
func (s ChartSpec) Apply(update []byte, mode Mode) (ChartSpec, error) {
	if mode == ModeReplace {
		var next ChartSpec
		if err := json.Unmarshal(update, &next); err != nil {
			return ChartSpec{}, fmt.Errorf("replace spec: %w", err)
		}
		return next, nil
	}

	var patch any
	if err := json.Unmarshal(update, &patch); err != nil {
		return ChartSpec{}, fmt.Errorf("merge spec: %w", err)
	}
	base, err := toGeneric(s)
	if err != nil {
		return ChartSpec{}, fmt.Errorf("merge spec: %w", err)
	}
	merged, err := json.Marshal(MergePatch(base, patch))
	if err != nil {
		return ChartSpec{}, fmt.Errorf("merge spec: %w", err)
	}
	var next ChartSpec
	if err := json.Unmarshal(merged, &next); err != nil {
		return ChartSpec{}, fmt.Errorf("merge spec: %w", err)
	}
	return next, nil
}

// ApplyState combines a chart's interaction state with an update. State is
// a free-form JSON object keyed by selection name.
func ApplyState(state map[string]any, update map[string]any, mode Mode) map[string]any {
	if mode == ModeReplace {
		out := make(map[string]any, len(update))
		for k, v := range update {
			if v != nil {
				out[k] = v
			}
		}
		return out
	}
	merged, _ := MergePatch(state, update).(map[string]any)
	return merged
}
