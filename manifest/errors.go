package manifest

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the ways a manifest can fail validation.
type ErrorKind string

const (
	MissingField        ErrorKind = "missing_field"
	BadType             ErrorKind = "bad_type"
	BadVersion          ErrorKind = "bad_version"
	UnknownCapability   ErrorKind = "unknown_capability"
	IncompatibleVersion ErrorKind = "incompatible_version"
	BadSchema           ErrorKind = "bad_schema"
)

// Error is a manifest validation failure with a precise kind for UI display.
type Error struct {
	Kind   ErrorKind
	Field  string
	Detail string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest: %s: field %q: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("manifest: %s: %s", e.Kind, e.Detail)
}

func errf(kind ErrorKind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err if it is a manifest *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
