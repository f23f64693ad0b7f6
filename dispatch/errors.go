package dispatch

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates dispatch failures.
type ErrorKind string

const (
	UnknownPlugin         ErrorKind = "unknown_plugin"
	PluginDisabled        ErrorKind = "plugin_disabled"
	UnsupportedCapability ErrorKind = "unsupported_capability"
	InvalidConfig         ErrorKind = "invalid_config"
	AdapterFailure        ErrorKind = "adapter_failure"
)

// Error is a normalized dispatch failure. Adapter faults never reach the
// caller raw; they arrive as AdapterFailure with the cause wrapped.
type Error struct {
	Kind   ErrorKind
	Plugin string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("dispatch: %s: plugin %q", e.Kind, e.Plugin)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err if it is a dispatch *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
