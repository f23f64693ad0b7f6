package installer

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the ways an install can fail.
type ErrorKind string

const (
	BadArchive          ErrorKind = "bad_archive"
	InvalidManifest     ErrorKind = "invalid_manifest"
	IncompatibleVersion ErrorKind = "incompatible_version"
	DependencyFailed    ErrorKind = "dependency_resolution_failed"
	ContractViolation   ErrorKind = "contract_violation"
	CoreConflict        ErrorKind = "core_conflict"
)

// Error is a terminal install failure. Whatever the kind, the filesystem
// and registry are left exactly as they were before the call began.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("install: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errKind(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the ErrorKind of err if it is an install *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
