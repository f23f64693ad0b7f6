package manifest

// FieldType describes the expected type of a configuration key.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "integer"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "boolean"
)

// FieldSpec declares type, bounds, and default for one configuration key.
// Min, Max, and Enum are optional; numeric bounds apply only to integer and
// float fields.
type FieldSpec struct {
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Min         *float64  `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Max         *float64  `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Enum        []string  `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ConfigSchema maps configuration keys to their specs.
type ConfigSchema map[string]FieldSpec

// validateSchema checks the schema itself: every entry must declare a known
// type, numeric bounds must satisfy min <= default <= max, and string
// defaults must be drawn from the enum when one is declared. Any violation
// rejects the whole manifest.
func validateSchema(schema ConfigSchema) error {
	for key, spec := range schema {
		switch spec.Type {
		case FieldTypeString, FieldTypeInt, FieldTypeFloat, FieldTypeBool:
		case "":
			return errf(BadSchema, key, "config schema entry has no type")
		default:
			return errf(BadSchema, key, "unknown config type %q", spec.Type)
		}

		if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
			return errf(BadSchema, key, "minimum %v exceeds maximum %v", *spec.Min, *spec.Max)
		}
		if (spec.Min != nil || spec.Max != nil) && spec.Type != FieldTypeInt && spec.Type != FieldTypeFloat {
			return errf(BadSchema, key, "numeric bounds on non-numeric type %q", spec.Type)
		}

		if spec.Default != nil {
			if err := checkValue(key, spec, spec.Default); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateConfig checks a per-instance configuration value against the
// schema. Unknown keys are rejected so that typos surface instead of being
// silently ignored.
func (m *Manifest) ValidateConfig(cfg map[string]any) error {
	for key, val := range cfg {
		spec, ok := m.ConfigSchema[key]
		if !ok {
			return errf(BadSchema, key, "key not declared in config schema")
		}
		if err := checkValue(key, spec, val); err != nil {
			return err
		}
	}
	return nil
}

// ConfigWithDefaults merges an instance config over the manifest defaults
// and the schema defaults. The input map is not mutated.
func (m *Manifest) ConfigWithDefaults(cfg map[string]any) map[string]any {
	out := make(map[string]any)
	for key, spec := range m.ConfigSchema {
		if spec.Default != nil {
			out[key] = spec.Default
		}
	}
	for k, v := range m.DefaultConfig {
		out[k] = v
	}
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

func checkValue(key string, spec FieldSpec, val any) error {
	switch spec.Type {
	case FieldTypeString:
		s, ok := val.(string)
		if !ok {
			return errf(BadSchema, key, "expected string, got %T", val)
		}
		if len(spec.Enum) > 0 {
			for _, e := range spec.Enum {
				if s == e {
					return nil
				}
			}
			return errf(BadSchema, key, "value %q not in enum %v", s, spec.Enum)
		}
	case FieldTypeBool:
		if _, ok := val.(bool); !ok {
			return errf(BadSchema, key, "expected boolean, got %T", val)
		}
	case FieldTypeInt, FieldTypeFloat:
		n, ok := asNumber(val)
		if !ok {
			return errf(BadSchema, key, "expected number, got %T", val)
		}
		if spec.Type == FieldTypeInt && n != float64(int64(n)) {
			return errf(BadSchema, key, "expected integer, got %v", val)
		}
		if spec.Min != nil && n < *spec.Min {
			return errf(BadSchema, key, "value %v below minimum %v", n, *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			return errf(BadSchema, key, "value %v above maximum %v", n, *spec.Max)
		}
	default:
		return errf(BadSchema, key, "unknown config type %q", spec.Type)
	}
	return nil
}

// asNumber widens the numeric types JSON and YAML decoding produce.
func asNumber(val any) (float64, bool) {
	switch n := val.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
