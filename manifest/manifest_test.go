package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/themaluxis/MUM/capability"
)

func validManifest() *Manifest {
	return &Manifest{
		PluginID:          "acme-media",
		Name:              "Acme Media",
		Version:           "1.2.3",
		ModulePath:        "adapter.go",
		ServiceClass:      "New",
		SupportedFeatures: []capability.Capability{capability.LibraryAccess},
	}
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator("1.0.0")
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidateAccepts(t *testing.T) {
	if err := newTestValidator(t).Validate(validManifest()); err != nil {
		t.Fatalf("valid manifest rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Manifest)
		kind   ErrorKind
	}{
		{"missing id", func(m *Manifest) { m.PluginID = "" }, MissingField},
		{"bad id", func(m *Manifest) { m.PluginID = "Bad_ID" }, BadType},
		{"missing name", func(m *Manifest) { m.Name = "" }, MissingField},
		{"missing version", func(m *Manifest) { m.Version = "" }, MissingField},
		{"bad version", func(m *Manifest) { m.Version = "one.two" }, BadVersion},
		{"missing module path", func(m *Manifest) { m.ModulePath = "" }, MissingField},
		{"missing service class", func(m *Manifest) { m.ServiceClass = "" }, MissingField},
		{"no features", func(m *Manifest) { m.SupportedFeatures = nil }, MissingField},
		{"unknown feature", func(m *Manifest) {
			m.SupportedFeatures = []capability.Capability{"mind_reading"}
		}, UnknownCapability},
		{"core too old", func(m *Manifest) { m.MinCoreVersion = "2.0.0" }, IncompatibleVersion},
		{"core too new", func(m *Manifest) { m.MaxCoreVersion = "0.9.0" }, IncompatibleVersion},
		{"bad min version", func(m *Manifest) { m.MinCoreVersion = "abc" }, BadVersion},
	}
	v := newTestValidator(t)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := validManifest()
			c.mutate(m)
			err := v.Validate(m)
			if err == nil {
				t.Fatal("expected validation error")
			}
			kind, ok := KindOf(err)
			if !ok {
				t.Fatalf("error %v is not a manifest error", err)
			}
			if kind != c.kind {
				t.Errorf("kind = %v, want %v", kind, c.kind)
			}
		})
	}
}

func TestValidateMaxVersionAbsentIsUnbounded(t *testing.T) {
	m := validManifest()
	m.MinCoreVersion = "0.5.0"
	v, err := NewValidator("99.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(m); err != nil {
		t.Errorf("absent max_core_version must not bound the range: %v", err)
	}
}

func TestConfigSchemaValidation(t *testing.T) {
	min, max := 5.0, 60.0
	m := validManifest()
	m.ConfigSchema = ConfigSchema{
		"timeout": {Type: FieldTypeInt, Default: 10, Min: &min, Max: &max},
		"quality": {Type: FieldTypeString, Enum: []string{"low", "high"}},
		"verify":  {Type: FieldTypeBool},
	}
	if err := newTestValidator(t).Validate(m); err != nil {
		t.Fatalf("valid schema rejected: %v", err)
	}

	cases := []struct {
		name string
		cfg  map[string]any
	}{
		{"unknown key", map[string]any{"color": "red"}},
		{"wrong type", map[string]any{"timeout": "ten"}},
		{"below min", map[string]any{"timeout": 1}},
		{"above max", map[string]any{"timeout": 600}},
		{"not integer", map[string]any{"timeout": 10.5}},
		{"enum miss", map[string]any{"quality": "medium"}},
		{"bool type", map[string]any{"verify": "yes"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := m.ValidateConfig(c.cfg)
			if err == nil {
				t.Fatal("expected config rejection")
			}
			if kind, _ := KindOf(err); kind != BadSchema {
				t.Errorf("kind = %v, want BadSchema", kind)
			}
		})
	}

	ok := map[string]any{"timeout": 30, "quality": "high", "verify": true}
	if err := m.ValidateConfig(ok); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestSchemaRejectsBadDeclarations(t *testing.T) {
	min, max := 10.0, 5.0
	cases := []struct {
		name   string
		schema ConfigSchema
	}{
		{"missing type", ConfigSchema{"x": {}}},
		{"unknown type", ConfigSchema{"x": {Type: "duration"}}},
		{"inverted bounds", ConfigSchema{"x": {Type: FieldTypeInt, Min: &min, Max: &max}}},
		{"bounds on string", ConfigSchema{"x": {Type: FieldTypeString, Min: &min}}},
		{"bad default", ConfigSchema{"x": {Type: FieldTypeInt, Default: "ten"}}},
	}
	v := newTestValidator(t)
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := validManifest()
			m.ConfigSchema = c.schema
			if err := v.Validate(m); err == nil {
				t.Error("expected schema declaration rejection")
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	m := validManifest()
	m.ConfigSchema = ConfigSchema{
		"timeout": {Type: FieldTypeInt, Default: 10},
		"verify":  {Type: FieldTypeBool, Default: true},
	}
	m.DefaultConfig = map[string]any{"verify": false}

	got := m.ConfigWithDefaults(map[string]any{"timeout": 30})
	if got["timeout"] != 30 {
		t.Errorf("timeout = %v, want instance value 30", got["timeout"])
	}
	if got["verify"] != false {
		t.Errorf("verify = %v, want default_config override", got["verify"])
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonDoc := `{
		"plugin_id": "acme-media",
		"name": "Acme Media",
		"version": "1.0.0",
		"module_path": "adapter.go",
		"service_class": "New",
		"supported_features": ["library_access"],
		"dependency_list": ["left-pad>=1.0"]
	}`
	jsonPath := filepath.Join(dir, "plugin.json")
	if err := os.WriteFile(jsonPath, []byte(jsonDoc), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m.PluginID != "acme-media" || len(m.Dependencies) != 1 {
		t.Errorf("unexpected manifest: %+v", m)
	}

	yamlDoc := `
plugin_id: acme-yaml
name: Acme YAML
version: 2.0.0
module_path: adapter.go
service_class: New
supported_features:
  - library_access
`
	yamlPath := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}
	m, err = Load(yamlPath)
	if err != nil {
		t.Fatalf("Load yaml: %v", err)
	}
	if m.PluginID != "acme-yaml" {
		t.Errorf("PluginID = %q", m.PluginID)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	if _, err := FindAndLoad(t.TempDir()); err == nil {
		t.Error("expected error for directory without manifest")
	}
}
