package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseProfileYAML parses a Profile from YAML bytes, applies defaults, expands
// range-valued fields and validates the result.
// This is used for APIs where the profile is provided as payload (not via filesystem).
func ParseProfileYAML(data []byte) (*Profile, error) {
	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile yaml: %w", err)
	}

	profile.applyDefaults()
	if err := expandProfile(&profile); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if err := validateProfile(&profile); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}

	return &profile, nil
}

// ParseProfileYAMLString parses a Profile from a YAML string.
func ParseProfileYAMLString(yamlText string) (*Profile, error) {
	return ParseProfileYAML([]byte(yamlText))
}

// MarshalProfileYAML renders a profile back to YAML
func MarshalProfileYAML(profile *Profile) (string, error) {
	out, err := yaml.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to marshal profile yaml: %w", err)
	}
	return string(out), nil
}

// expandProfile normalizes and expands the range-valued fields of every model
func expandProfile(p *Profile) error {
	for i := range p.Models {
		m := &p.Models[i]
		for name, raw := range m.Parameters {
			if name != concurrencyParameter {
				return &ValidationError{
					Field:  fmt.Sprintf("profile_models[%s].parameters.%s", m.Name, name),
					Reason: "unsupported parameter (only concurrency may be set)",
				}
			}
			values, err := NormalizeAndExpand(fmt.Sprintf("profile_models[%s].parameters.%s", m.Name, name), raw)
			if err != nil {
				return err
			}
			m.Concurrency = values
		}

		if len(m.ModelConfigParameters) == 0 {
			continue
		}
		m.ParameterGrid = make(map[string][]int, len(m.ModelConfigParameters))
		for name, raw := range m.ModelConfigParameters {
			values, err := NormalizeAndExpand(fmt.Sprintf("profile_models[%s].model_config_parameters.%s", m.Name, name), raw)
			if err != nil {
				return err
			}
			m.ParameterGrid[name] = values
		}
	}
	return nil
}
