// Package capability defines the fixed set of features a media-service
// plugin may declare, and set operations over them.
package capability

import (
	"fmt"
	"sort"
)

// Capability identifies one named unit of adapter functionality.
type Capability string

const (
	UserManagement Capability = "user_management"
	LibraryAccess  Capability = "library_access"
	ActiveSessions Capability = "active_sessions"
	Downloads      Capability = "downloads"
	Transcoding    Capability = "transcoding"
	Sharing        Capability = "sharing"
	Invitations    Capability = "invitations"
)

// all is the global capability enumeration. Declared capability sets must be
// a subset of it; unknown entries are rejected, never dropped.
var all = map[Capability]bool{
	UserManagement: true,
	LibraryAccess:  true,
	ActiveSessions: true,
	Downloads:      true,
	Transcoding:    true,
	Sharing:        true,
	Invitations:    true,
}

// IsKnown reports whether c belongs to the global enumeration.
func IsKnown(c Capability) bool {
	return all[c]
}

// All returns the global enumeration in stable (sorted) order.
func All() []Capability {
	out := make([]Capability, 0, len(all))
	for c := range all {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Set is a declared capability set.
type Set map[Capability]bool

// NewSet builds a Set from the given capabilities. It does not validate
// membership in the global enumeration; use Validate for that.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has reports whether the set contains c.
func (s Set) Has(c Capability) bool {
	return s[c]
}

// Validate returns an error naming the first capability not drawn from the
// global enumeration.
func (s Set) Validate() error {
	for _, c := range s.List() {
		if !IsKnown(c) {
			return fmt.Errorf("capability: unknown capability %q", c)
		}
	}
	return nil
}

// List returns the set's members in stable (sorted) order.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
