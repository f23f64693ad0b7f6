// Package media defines the contract every media-service adapter must
// satisfy and the unified records adapter calls are normalized into.
package media

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by adapters for operations their service does
// not implement. It is distinguished from operation failure so callers can
// tell "feature absent" apart from "feature failed".
var ErrNotSupported = errors.New("media: operation not supported")

// IsNotSupported reports whether err signals an unimplemented operation.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// Service is the capability contract. Every adapter, compiled-in or
// interpreted, is polymorphic over this method set. Calls must be pure with
// respect to the adapter's declared inputs: no reliance on the registry or
// on other adapters.
type Service interface {
	// TestConnection verifies the instance is reachable and authenticated.
	TestConnection(ctx context.Context) (ConnectionTestResult, error)

	// Libraries enumerates the service's libraries.
	Libraries(ctx context.Context) ([]Library, error)

	// Users enumerates the service's users.
	Users(ctx context.Context) ([]User, error)

	// CreateUser provisions a user on the service.
	CreateUser(ctx context.Context, u NewUser) (User, error)

	// UpdateUserAccess replaces a user's library access.
	UpdateUserAccess(ctx context.Context, userID string, access UserAccess) error

	// DeleteUser removes a user from the service.
	DeleteUser(ctx context.Context, userID string) error

	// ActiveSessions enumerates currently playing sessions.
	ActiveSessions(ctx context.Context) ([]Session, error)

	// TerminateSession stops an active session, optionally with a message
	// shown to the viewer.
	TerminateSession(ctx context.Context, sessionID, reason string) error
}
