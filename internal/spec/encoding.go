package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// EncodingKind is the active tag of an Encoding.
type EncodingKind int

const (
	KindInvalid EncodingKind = iota
	KindField
	KindAggregate
	KindValue
)

func (k EncodingKind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindAggregate:
		return "aggregate"
	case KindValue:
		return "value"
	}
	return "invalid"
}

// Encoding maps one channel to data or a constant. Exactly one of Field,
// Aggregate and Value is non-nil for a well-formed encoding.
type Encoding struct {
	Field     *FieldEncoding
	Aggregate *AggregateEncoding
	Value     *ValueEncoding

	// raw and err hold a malformed encoding so it survives a round trip.
	raw json.RawMessage
	err error
}

// FieldEncoding reads a column, optionally discretized.
type FieldEncoding struct {
	Field string `json:"field"`
	Bin   *Bin   `json:"bin,omitempty"`
}

// AggregateEncoding computes an aggregate over the layer's groups.
type AggregateEncoding struct {
	Aggregate string   `json:"aggregate"`
	Field     string   `json:"field,omitempty"`
	Quantile  *float64 `json:"quantile,omitempty"`
	Normalize bool     `json:"normalize,omitempty"`
}

// ValueEncoding is a constant.
type ValueEncoding struct {
	Value any `json:"value"`
}

// Bin requests explicit binning. It decodes from either `true` or an
// object; Count of zero means the channel default.
type Bin struct {
	Count int `json:"count,omitempty"`
}

// Encoding decode errors.
var (
	ErrNoEncodingTag        = errors.New("encoding has no field, aggregate or value")
	ErrMultipleEncodingTags = errors.New("encoding has more than one of field, aggregate and value")
	ErrNormalizeWithBin     = errors.New("encoding cannot set both normalize and bin")
)

// FieldOf returns a raw field encoding.
func FieldOf(field string) Encoding {
	return Encoding{Field: &FieldEncoding{Field: field}}
}

// BinnedOf returns an explicitly binned field encoding. count <= 0 uses the
// channel default.
func BinnedOf(field string, count int) Encoding {
	if count < 0 {
		count = 0
	}
	return Encoding{Field: &FieldEncoding{Field: field, Bin: &Bin{Count: count}}}
}

// AggregateOf returns an aggregate encoding. field may be empty for count.
func AggregateOf(aggregate, field string) Encoding {
	return Encoding{Aggregate: &AggregateEncoding{Aggregate: aggregate, Field: field}}
}

// ValueOf returns a constant encoding.
func ValueOf(v any) Encoding {
	return Encoding{Value: &ValueEncoding{Value: v}}
}

// Kind returns the active tag.
func (e Encoding) Kind() EncodingKind {
	if e.err != nil {
		return KindInvalid
	}
	n := 0
	kind := KindInvalid
	if e.Field != nil {
		n++
		kind = KindField
	}
	if e.Aggregate != nil {
		n++
		kind = KindAggregate
	}
	if e.Value != nil {
		n++
		kind = KindValue
	}
	if n != 1 {
		return KindInvalid
	}
	return kind
}

// Err reports why an encoding is malformed, or nil.
func (e Encoding) Err() error {
	if e.err != nil {
		return e.err
	}
	switch {
	case e.Field == nil && e.Aggregate == nil && e.Value == nil:
		return ErrNoEncodingTag
	case e.Kind() == KindInvalid:
		return ErrMultipleEncodingTags
	}
	return nil
}

// IsBinned reports whether the encoding explicitly bins its field.
func (e Encoding) IsBinned() bool {
	return e.Field != nil && e.Field.Bin != nil
}

// FieldName returns the column the encoding reads, or "".
func (e Encoding) FieldName() string {
	switch {
	case e.Field != nil:
		return e.Field.Field
	case e.Aggregate != nil:
		return e.Aggregate.Field
	}
	return ""
}

// MarshalJSON emits the active variant. Malformed encodings are written back
// exactly as they were read.
func (e Encoding) MarshalJSON() ([]byte, error) {
	if e.err != nil && e.raw != nil {
		return e.raw, nil
	}
	switch e.Kind() {
	case KindField:
		return json.Marshal(e.Field)
	case KindAggregate:
		return json.Marshal(e.Aggregate)
	case KindValue:
		return json.Marshal(e.Value)
	}
	return nil, fmt.Errorf("marshal encoding: %w", e.Err())
}

// encodingKeys lists the keys each tag accepts.
var encodingKeys = map[EncodingKind]map[string]bool{
	KindField:     {"field": true, "bin": true},
	KindAggregate: {"aggregate": true, "field": true, "quantile": true, "normalize": true},
	KindValue:     {"value": true},
}

// UnmarshalJSON decodes the tagged union. A malformed object does not fail
// decoding of the surrounding document; it yields an encoding whose Err is
// set and which re-marshals to the original bytes.
func (e *Encoding) UnmarshalJSON(data []byte) error {
	*e = Encoding{}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	kind, err := encodingTag(keys)
	if err != nil {
		e.invalid(data, err)
		return nil
	}
	if err := checkKeys(kind, keys); err != nil {
		e.invalid(data, err)
		return nil
	}

	dec := func(into any) error {
		return json.Unmarshal(data, into)
	}
	switch kind {
	case KindField:
		var f FieldEncoding
		if err := dec(&f); err != nil {
			e.invalid(data, fmt.Errorf("field encoding: %w", err))
			return nil
		}
		if f.Field == "" {
			e.invalid(data, errors.New("field encoding requires a non-empty field"))
			return nil
		}
		e.Field = &f
	case KindAggregate:
		var a AggregateEncoding
		if err := dec(&a); err != nil {
			e.invalid(data, fmt.Errorf("aggregate encoding: %w", err))
			return nil
		}
		e.Aggregate = &a
	case KindValue:
		var v ValueEncoding
		if err := dec(&v); err != nil {
			e.invalid(data, fmt.Errorf("value encoding: %w", err))
			return nil
		}
		e.Value = &v
	}
	return nil
}

func (e *Encoding) invalid(data []byte, err error) {
	e.raw = append(json.RawMessage(nil), data...)
	e.err = err
}

func encodingTag(keys map[string]json.RawMessage) (EncodingKind, error) {
	_, hasValue := keys["value"]
	_, hasAgg := keys["aggregate"]
	_, hasField := keys["field"]
	_, hasBin := keys["bin"]
	_, hasNorm := keys["normalize"]

	if hasBin && hasNorm {
		return KindInvalid, ErrNormalizeWithBin
	}
	switch {
	case hasValue && (hasAgg || hasField):
		return KindInvalid, ErrMultipleEncodingTags
	case hasAgg && hasBin:
		return KindInvalid, ErrMultipleEncodingTags
	case hasValue:
		return KindValue, nil
	case hasAgg:
		return KindAggregate, nil
	case hasField:
		return KindField, nil
	}
	return KindInvalid, ErrNoEncodingTag
}

func checkKeys(kind EncodingKind, keys map[string]json.RawMessage) error {
	allowed := encodingKeys[kind]
	var unknown []string
	for k := range keys {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%s encoding: unknown keys %s", kind, strings.Join(unknown, ", "))
}

// MarshalJSON writes `true` for a default bin and an object otherwise.
func (b Bin) MarshalJSON() ([]byte, error) {
	if b.Count == 0 {
		return []byte("true"), nil
	}
	type plain Bin
	return json.Marshal(plain(b))
}

// UnmarshalJSON accepts `true`, `false` or `{"count": n}`. `false` decodes
// to the zero Bin; FieldEncoding drops it via binOrNil.
func (b *Bin) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true", "false":
		*b = Bin{}
		return nil
	}
	type plain Bin
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return fmt.Errorf("bin must be a boolean or an object: %w", err)
	}
	if p.Count < 0 {
		return fmt.Errorf("bin count must be positive, got %d", p.Count)
	}
	*b = Bin(p)
	return nil
}

// UnmarshalJSON treats `"bin": false` as no binning.
func (f *FieldEncoding) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field string          `json:"field"`
		Bin   json.RawMessage `json:"bin"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Field = raw.Field
	f.Bin = nil
	if len(raw.Bin) == 0 || string(bytes.TrimSpace(raw.Bin)) == "false" || string(bytes.TrimSpace(raw.Bin)) == "null" {
		return nil
	}
	var b Bin
	if err := json.Unmarshal(raw.Bin, &b); err != nil {
		return err
	}
	f.Bin = &b
	return nil
}
