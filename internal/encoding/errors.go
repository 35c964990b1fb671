package encoding

import (
	"errors"
	"fmt"

	"github.com/roach88/crossplot/internal/spec"
)

// SpecError is a chart specification problem found while compiling a layer.
// The offending encoding or layer is dropped and the rest of the chart
// continues.
type SpecError struct {
	// Code identifies the error category.
	Code SpecErrorCode

	// Message is a human-readable description.
	Message string

	// Layer is the index of the affected layer, or -1 when unknown.
	Layer int

	// Channel is the affected channel, if any.
	Channel spec.Channel
}

// SpecErrorCode categorizes specification errors.
type SpecErrorCode string

const (
	// ErrCodeInvalidEncoding indicates a malformed encoding object.
	ErrCodeInvalidEncoding SpecErrorCode = "INVALID_ENCODING"

	// ErrCodeInvalidMark indicates an unknown mark or a mark whose
	// encodings cannot be drawn.
	ErrCodeInvalidMark SpecErrorCode = "INVALID_MARK"

	// ErrCodeUnknownAggregate indicates an aggregate name outside the
	// supported set.
	ErrCodeUnknownAggregate SpecErrorCode = "UNKNOWN_AGGREGATE"

	// ErrCodeMissingField indicates an aggregate that needs a field but
	// has none.
	ErrCodeMissingField SpecErrorCode = "MISSING_FIELD"

	// ErrCodeUnsupportedField indicates a field whose storage type cannot
	// be binned.
	ErrCodeUnsupportedField SpecErrorCode = "UNSUPPORTED_FIELD"
)

// Error implements the error interface.
func (e *SpecError) Error() string {
	switch {
	case e.Layer >= 0 && e.Channel != "":
		return fmt.Sprintf("%s: %s (layer=%d, channel=%s)", e.Code, e.Message, e.Layer, e.Channel)
	case e.Layer >= 0:
		return fmt.Sprintf("%s: %s (layer=%d)", e.Code, e.Message, e.Layer)
	case e.Channel != "":
		return fmt.Sprintf("%s: %s (channel=%s)", e.Code, e.Message, e.Channel)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSpecError creates a SpecError for a channel. The layer is filled in by
// the layer builder.
func NewSpecError(code SpecErrorCode, ch spec.Channel, format string, args ...any) *SpecError {
	return &SpecError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Layer:   -1,
		Channel: ch,
	}
}

// IsSpecError returns true if err is or wraps a SpecError.
func IsSpecError(err error) bool {
	var se *SpecError
	return errors.As(err, &se)
}

// SpecErrorCodeOf returns the code of a wrapped SpecError, or "".
func SpecErrorCodeOf(err error) SpecErrorCode {
	var se *SpecError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
