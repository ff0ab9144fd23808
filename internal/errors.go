package internal

import (
	"errors"
	"fmt"
)

// Error kinds returned by the rule parser and loaders. Test for them with errors.Is.
var (
	ErrUnrecognizedProtocol = errors.New("unrecognized protocol")
	ErrUnhandledFieldName   = errors.New("unhandled field name")
	ErrInvalidFieldValue    = errors.New("invalid field value")
	ErrMalformedLine        = errors.New("malformed line")
)

// FieldError reports a field/value pair that a rule refused.
type FieldError struct {
	Kind  error
	Field string
	Value string
	Cause error
}

func (e *FieldError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%v: %s %q", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: %s %q: %v", e.Kind, e.Field, e.Value, e.Cause)
}

func (e *FieldError) Is(target error) bool { return e.Kind == target }

func (e *FieldError) Unwrap() error { return e.Cause }

// ParseError reports a line that could not be split into a tier and field pairs.
type ParseError struct {
	Kind  error
	Line  string
	Token string
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Token == "" {
		return fmt.Sprintf("%v: %q", e.Kind, e.Line)
	}
	return fmt.Sprintf("%v %q: %q", e.Kind, e.Token, e.Line)
}

func (e *ParseError) Is(target error) bool { return e.Kind == target }

// LoadError attaches the source position to an error raised while loading
// several lines. Line is 1-based.
type LoadError struct {
	Line int
	Text string
	Err  error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func fieldError(kind error, field, value string, cause error) *FieldError {
	return &FieldError{Kind: kind, Field: field, Value: value, Cause: cause}
}
