package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned by Parse for event kinds outside the catalogue.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrEmptyEventType is reported when an event arrives without a type.
	ErrEmptyEventType = errors.New("empty event type")
)

// ValidationError describes why a payload does not match the shape required
// by its event kind.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.Kind, e.Reason)
}

func invalid(kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// ParseErrorCategory groups parse errors by the stage that produced them.
type ParseErrorCategory string

const (
	// CategoryLine is a malformed SSE line (empty event name, data without event).
	CategoryLine ParseErrorCategory = "line"

	// CategoryJSON is a data payload that is not valid JSON.
	CategoryJSON ParseErrorCategory = "json"

	// CategoryValidation is a payload that failed its kind's validator.
	CategoryValidation ParseErrorCategory = "validation"

	// CategoryCallback is an error returned, or a panic raised, by a Sink.
	CategoryCallback ParseErrorCategory = "callback"
)

// ParseError is a non-fatal problem found while consuming the stream. The
// offending line or event is dropped and processing continues.
type ParseError struct {
	Category ParseErrorCategory

	// Kind is the event kind involved, empty for line level errors.
	Kind Kind

	// Message is the human readable description handed to OnParseError.
	Message string

	Err error
}

func (e *ParseError) Error() string {
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
