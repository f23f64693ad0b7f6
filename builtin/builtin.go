// Package builtin holds the table of compiled-in core adapters. Each
// adapter subpackage registers itself from init, and the application
// imports builtin/all to pull the full set in.
package builtin

import (
	"fmt"
	"sync"

	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/manifest"
	"github.com/themaluxis/MUM/registry"
)

// Entry pairs a core plugin manifest with its adapter factory.
type Entry struct {
	Manifest *manifest.Manifest
	Factory  registry.Factory
}

var (
	mu      sync.Mutex
	entries []Entry
	byID    = map[string]bool{}
)

// Register adds a core adapter to the table. It panics on a duplicate
// identifier because that is a programming error, not a runtime condition.
func Register(m *manifest.Manifest, f registry.Factory) {
	mu.Lock()
	defer mu.Unlock()
	if byID[m.PluginID] {
		panic(fmt.Sprintf("builtin: duplicate core plugin %q", m.PluginID))
	}
	byID[m.PluginID] = true
	entries = append(entries, Entry{Manifest: m, Factory: f})
}

// All returns the registered core adapters in registration order.
func All() []Entry {
	mu.Lock()
	defer mu.Unlock()
	return append([]Entry(nil), entries...)
}

// RegisterAll installs every core adapter into the registry at the core
// kind. Call it once at startup before restoring persisted state.
func RegisterAll(reg *registry.Registry) error {
	for _, e := range All() {
		if _, err := reg.Register(e.Manifest, registry.KindCore, e.Factory, ""); err != nil {
			return fmt.Errorf("register core plugin %q: %w", e.Manifest.PluginID, err)
		}
	}
	return nil
}

// CoreManifest builds the descriptor for a compiled-in adapter. Core
// manifests share a fixed author, license, and version.
func CoreManifest(id, name, description string, features []capability.Capability, schema manifest.ConfigSchema, defaults map[string]any) *manifest.Manifest {
	return &manifest.Manifest{
		PluginID:          id,
		Name:              name,
		Description:       description,
		Version:           "1.0.0",
		Author:            "MUM Team",
		License:           "MIT",
		ModulePath:        "builtin",
		ServiceClass:      "New",
		SupportedFeatures: features,
		ConfigSchema:      schema,
		DefaultConfig:     defaults,
	}
}
