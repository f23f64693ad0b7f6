// Package manifest defines the plugin descriptor document and its
// fail-closed validation.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/themaluxis/MUM/capability"
)

// Manifest describes a plugin's identity, capabilities, compatibility
// range, configuration shape, and declared package dependencies.
type Manifest struct {
	PluginID    string `json:"plugin_id" yaml:"plugin_id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	Homepage    string `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	License     string `json:"license,omitempty" yaml:"license,omitempty"`

	// ModulePath is the source file within the plugin directory that
	// implements the adapter; ServiceClass is the constructor symbol it
	// exports. Informational for compiled-in plugins.
	ModulePath   string `json:"module_path" yaml:"module_path"`
	ServiceClass string `json:"service_class" yaml:"service_class"`

	SupportedFeatures []capability.Capability `json:"supported_features" yaml:"supported_features"`

	MinCoreVersion string `json:"min_core_version,omitempty" yaml:"min_core_version,omitempty"`
	MaxCoreVersion string `json:"max_core_version,omitempty" yaml:"max_core_version,omitempty"`

	// Dependencies lists external package requirement strings handed to the
	// dependency installer collaborator.
	Dependencies []string `json:"dependency_list,omitempty" yaml:"dependency_list,omitempty"`

	ConfigSchema  ConfigSchema   `json:"config_schema,omitempty" yaml:"config_schema,omitempty"`
	DefaultConfig map[string]any `json:"default_config,omitempty" yaml:"default_config,omitempty"`
}

// Features returns the declared capability set.
func (m *Manifest) Features() capability.Set {
	return capability.NewSet(m.SupportedFeatures...)
}

// Supports reports whether the manifest declares the capability.
func (m *Manifest) Supports(c capability.Capability) bool {
	return m.Features().Has(c)
}

var pluginIDRe = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)

func isValidPluginID(id string) bool {
	if len(id) < 2 {
		return len(id) == 1 && id[0] >= 'a' && id[0] <= 'z'
	}
	return pluginIDRe.MatchString(id)
}

// Validator checks manifests against the hosting core version.
type Validator struct {
	CoreVersion Semver
}

// NewValidator creates a Validator for the given core version string.
func NewValidator(coreVersion string) (*Validator, error) {
	v, err := ParseSemver(coreVersion)
	if err != nil {
		return nil, fmt.Errorf("manifest: invalid core version %q: %w", coreVersion, err)
	}
	return &Validator{CoreVersion: v}, nil
}

// Validate checks required fields, capability membership, version
// compatibility, and the config schema. The first violation rejects the
// whole manifest; nothing is silently dropped or partially accepted.
func (v *Validator) Validate(m *Manifest) error {
	if m == nil {
		return errf(MissingField, "", "manifest is required")
	}
	if m.PluginID == "" {
		return errf(MissingField, "plugin_id", "plugin_id is required")
	}
	if !isValidPluginID(m.PluginID) {
		return errf(BadType, "plugin_id", "%q must be lowercase alphanumeric with hyphens", m.PluginID)
	}
	if m.Name == "" {
		return errf(MissingField, "name", "name is required")
	}
	if m.Version == "" {
		return errf(MissingField, "version", "version is required")
	}
	if _, err := ParseSemver(m.Version); err != nil {
		return errf(BadVersion, "version", "invalid version %q: %v", m.Version, err)
	}
	if m.ModulePath == "" {
		return errf(MissingField, "module_path", "module_path is required")
	}
	if m.ServiceClass == "" {
		return errf(MissingField, "service_class", "service_class is required")
	}
	if len(m.SupportedFeatures) == 0 {
		return errf(MissingField, "supported_features", "at least one supported feature is required")
	}
	for _, c := range m.SupportedFeatures {
		if !capability.IsKnown(c) {
			return errf(UnknownCapability, "supported_features", "unknown capability %q", c)
		}
	}

	if err := v.checkCoreRange(m); err != nil {
		return err
	}

	if err := validateSchema(m.ConfigSchema); err != nil {
		return err
	}
	if m.DefaultConfig != nil {
		if err := m.ValidateConfig(m.DefaultConfig); err != nil {
			return err
		}
	}
	return nil
}

// checkCoreRange verifies the hosting core version falls inside
// [min_core_version, max_core_version]. An absent max means unbounded.
func (v *Validator) checkCoreRange(m *Manifest) error {
	var min, max Semver
	var err error
	if m.MinCoreVersion != "" {
		if min, err = ParseSemver(m.MinCoreVersion); err != nil {
			return errf(BadVersion, "min_core_version", "invalid version %q: %v", m.MinCoreVersion, err)
		}
	}
	if m.MaxCoreVersion != "" {
		if max, err = ParseSemver(m.MaxCoreVersion); err != nil {
			return errf(BadVersion, "max_core_version", "invalid version %q: %v", m.MaxCoreVersion, err)
		}
	}
	if !v.CoreVersion.InRange(min, max) {
		return errf(IncompatibleVersion, "",
			"plugin %q requires core %s..%s, running %s",
			m.PluginID, orAny(m.MinCoreVersion), orAny(m.MaxCoreVersion), v.CoreVersion)
	}
	return nil
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

// ManifestFileNames are the descriptor filenames looked up inside a plugin
// directory, in priority order.
var ManifestFileNames = []string{"plugin.json", "plugin.yaml", "plugin.yml"}

// Load reads a manifest from a JSON or YAML file, chosen by extension.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return Parse(data)
	}
}

// FindAndLoad locates the manifest file inside dir and loads it.
func FindAndLoad(dir string) (*Manifest, error) {
	for _, name := range ManifestFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return nil, errf(MissingField, "", "no manifest file found in %s", dir)
}

// Parse decodes a JSON manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errf(BadType, "", "parse manifest: %v", err)
	}
	return &m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errf(BadType, "", "parse manifest: %v", err)
	}
	return &m, nil
}

// Save writes a manifest to a JSON file.
func Save(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
