package registry

import (
	"time"

	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/media"
)

// State is a plugin's lifecycle state.
type State string

const (
	StateDisabled State = "disabled"
	StateEnabled  State = "enabled"
	StateActive   State = "active"
	StateError    State = "error"
)

// Kind classifies where a plugin came from. Core plugins are compiled in
// and cannot be uninstalled or overridden.
type Kind string

const (
	KindCore      Kind = "core"
	KindOfficial  Kind = "official"
	KindCommunity Kind = "community"
	KindCustom    Kind = "custom"
)

// Factory builds an adapter bound to one configured service instance.
type Factory func(inst media.Instance) (media.Service, error)

// Record is a registered plugin: manifest, lifecycle state, and the loaded
// adapter factory. Records are immutable once published; every transition
// replaces the record in the registry snapshot.
type Record struct {
	Manifest  *manifest.Manifest
	Kind      Kind
	State     State
	LastError string
	SourceDir string

	InstalledAt time.Time
	UpdatedAt   time.Time

	factory Factory
	seq     int
}

// ID returns the plugin identifier.
func (r *Record) ID() string {
	return r.Manifest.PluginID
}

// Factory returns the adapter factory loaded for this plugin.
func (r *Record) Factory() Factory {
	return r.factory
}

// clone returns a shallow copy safe to mutate before republication.
func (r *Record) clone() *Record {
	c := *r
	return &c
}
