package config

import (
	"fmt"
	"math/bits"
	"os"
)

// LoadProfile loads and parses a profile file
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}
	profile, err := ParseProfileYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	return profile, nil
}

// validateProfile performs validation on the profile
func validateProfile(p *Profile) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[p.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", p.LogLevel)
	}

	if err := validateSearch(&p.Search); err != nil {
		return fmt.Errorf("run_config_search validation failed: %w", err)
	}
	if err := validateObjectives("objectives", p.Objectives); err != nil {
		return err
	}
	if err := validateConstraints("constraints", p.Constraints); err != nil {
		return err
	}

	if len(p.Models) == 0 {
		return fmt.Errorf("at least one model must be listed in profile_models")
	}
	names := make(map[string]bool)
	for _, m := range p.Models {
		if m.Name == "" {
			return fmt.Errorf("model name cannot be empty")
		}
		if names[m.Name] {
			return fmt.Errorf("duplicate model name: %s", m.Name)
		}
		names[m.Name] = true
		if m.Weight < 0 {
			return fmt.Errorf("model %s: weight cannot be negative", m.Name)
		}
		if err := validateObjectives("profile_models["+m.Name+"].objectives", m.Objectives); err != nil {
			return err
		}
		if err := validateConstraints("profile_models["+m.Name+"].constraints", m.Constraints); err != nil {
			return err
		}
		for _, c := range m.Concurrency {
			if c <= 0 {
				return fmt.Errorf("model %s: concurrency values must be positive, got %d", m.Name, c)
			}
		}
		variants := 1
		for name, values := range m.ParameterGrid {
			if len(values) == 0 {
				return fmt.Errorf("model %s: model_config_parameters.%s is empty", m.Name, name)
			}
			variants *= len(values)
			if variants > MaxRangeValues {
				return fmt.Errorf("model %s: model_config_parameters span more than %d variants", m.Name, MaxRangeValues)
			}
		}
	}

	return nil
}

// validateSearch validates the search tunables: all positive, min <= max
func validateSearch(s *SearchConfig) error {
	if s.Mode != SearchModeBrute && s.Mode != SearchModeQuick {
		return fmt.Errorf("invalid mode: %s (must be brute or quick)", s.Mode)
	}
	positives := []struct {
		name  string
		value int
	}{
		{"min_concurrency", s.MinConcurrency},
		{"max_concurrency", s.MaxConcurrency},
		{"max_binary_search_steps", s.MaxBinarySearchSteps},
		{"min_model_batch_size", s.MinModelBatchSize},
		{"max_model_batch_size", s.MaxModelBatchSize},
		{"max_instance_count", s.MaxInstanceCount},
		{"max_steps", s.MaxSteps},
		{"min_consecutive_tries", s.MinConsecutiveTries},
		{"num_configs_per_model", s.NumConfigsPerModel},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if s.MaxInstanceCount > MaxRangeValues {
		return fmt.Errorf("max_instance_count (%d) cannot exceed %d", s.MaxInstanceCount, MaxRangeValues)
	}
	if s.MinConcurrency > s.MaxConcurrency {
		return fmt.Errorf("min_concurrency (%d) cannot exceed max_concurrency (%d)", s.MinConcurrency, s.MaxConcurrency)
	}
	if s.MinModelBatchSize > s.MaxModelBatchSize {
		return fmt.Errorf("min_model_batch_size (%d) cannot exceed max_model_batch_size (%d)", s.MinModelBatchSize, s.MaxModelBatchSize)
	}
	if s.MinGain <= 0 {
		return fmt.Errorf("min_gain must be positive, got %f", s.MinGain)
	}
	return nil
}

func validateObjectives(field string, objectives map[string]float64) error {
	for metric, weight := range objectives {
		if weight <= 0 {
			return fmt.Errorf("%s.%s: weight must be positive, got %f", field, metric, weight)
		}
	}
	return nil
}

func validateConstraints(field string, constraints map[string]Constraint) error {
	for metric, c := range constraints {
		if c.Min == nil && c.Max == nil {
			return fmt.Errorf("%s.%s: constraint needs min or max", field, metric)
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return fmt.Errorf("%s.%s: min (%f) cannot exceed max (%f)", field, metric, *c.Min, *c.Max)
		}
	}
	return nil
}

// Log2Floor returns floor(log2(n)) for positive n
func Log2Floor(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}

// ConcurrencyExponents returns the sweep bounds as exponents of two
func (s SearchConfig) ConcurrencyExponents() (minIndex, maxIndex int) {
	return Log2Floor(s.MinConcurrency), Log2Floor(s.MaxConcurrency)
}

// BatchSizeExponents returns the model batch size bounds as exponents of two
func (s SearchConfig) BatchSizeExponents() (minIndex, maxIndex int) {
	return Log2Floor(s.MinModelBatchSize), Log2Floor(s.MaxModelBatchSize)
}
