package models

import (
	"fmt"
	"sort"
	"strings"
)

// Well-known model config parameter names
const (
	ParamMaxBatchSize  = "max_batch_size"
	ParamInstanceCount = "instance_count"
)

// ModelRunConfig is the per-model part of a RunConfig
type ModelRunConfig struct {
	ModelName   string         `json:"model_name"`
	VariantName string         `json:"variant_name"`
	Parameters  map[string]int `json:"parameters,omitempty"`
	Concurrency int            `json:"concurrency"`
	Default     bool           `json:"default,omitempty"`
}

// RunConfig is a single point in the search space handed to the caller for measurement.
// It holds one ModelRunConfig per model that is measured together.
type RunConfig struct {
	Models []ModelRunConfig `json:"models"`
}

// NewRunConfig creates a RunConfig for a single model
func NewRunConfig(model ModelRunConfig) RunConfig {
	return RunConfig{Models: []ModelRunConfig{model}}
}

// Clone returns a deep copy of the run config
func (rc RunConfig) Clone() RunConfig {
	cloned := RunConfig{Models: make([]ModelRunConfig, len(rc.Models))}
	for i, m := range rc.Models {
		cloned.Models[i] = m
		if m.Parameters != nil {
			cloned.Models[i].Parameters = make(map[string]int, len(m.Parameters))
			for k, v := range m.Parameters {
				cloned.Models[i].Parameters[k] = v
			}
		}
	}
	return cloned
}

// WithConcurrency returns a copy with every model's concurrency set to c
func (rc RunConfig) WithConcurrency(c int) RunConfig {
	cloned := rc.Clone()
	for i := range cloned.Models {
		cloned.Models[i].Concurrency = c
	}
	return cloned
}

// Concurrency returns the concurrency of the first model, or 0 for an empty config
func (rc RunConfig) Concurrency() int {
	if len(rc.Models) == 0 {
		return 0
	}
	return rc.Models[0].Concurrency
}

// IsDefault reports whether every model runs its default variant
func (rc RunConfig) IsDefault() bool {
	if len(rc.Models) == 0 {
		return false
	}
	for _, m := range rc.Models {
		if !m.Default {
			return false
		}
	}
	return true
}

// VariantKey identifies the model variants of the run config, ignoring concurrency
func (rc RunConfig) VariantKey() string {
	parts := make([]string, 0, len(rc.Models))
	for _, m := range rc.Models {
		parts = append(parts, m.ModelName+"/"+m.VariantName)
	}
	return strings.Join(parts, ",")
}

// Key identifies the run config including concurrency
func (rc RunConfig) Key() string {
	parts := make([]string, 0, len(rc.Models))
	for _, m := range rc.Models {
		parts = append(parts, fmt.Sprintf("%s/%s@%d", m.ModelName, m.VariantName, m.Concurrency))
	}
	return strings.Join(parts, ",")
}

// String renders the run config for logs
func (rc RunConfig) String() string {
	parts := make([]string, 0, len(rc.Models))
	for _, m := range rc.Models {
		parts = append(parts, fmt.Sprintf("%s[%s] concurrency=%d", m.VariantName, FormatParameters(m.Parameters), m.Concurrency))
	}
	return strings.Join(parts, "; ")
}

// FormatParameters renders parameters in a stable key order
func FormatParameters(params map[string]int) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, params[k]))
	}
	return strings.Join(parts, ",")
}

// ModelMeasurement holds the metrics measured for one model
type ModelMeasurement struct {
	ModelName string             `json:"model_name"`
	Metrics   map[string]float64 `json:"metrics"`
}

// Measurement is the outcome of measuring a RunConfig.
// A nil *Measurement means the run produced no usable result.
type Measurement struct {
	Models []ModelMeasurement `json:"models"`
}

// NewMeasurement creates a single-model measurement
func NewMeasurement(modelName string, metrics map[string]float64) *Measurement {
	return &Measurement{Models: []ModelMeasurement{{ModelName: modelName, Metrics: metrics}}}
}

// Metric returns the value of a metric for the model at index i
func (m *Measurement) Metric(i int, name string) (float64, bool) {
	if m == nil || i < 0 || i >= len(m.Models) {
		return 0, false
	}
	v, ok := m.Models[i].Metrics[name]
	return v, ok
}

// Representative returns the measurement the search logic should use for a batch
// of measurements reported for one proposal: the last one.
func Representative(measurements []*Measurement) *Measurement {
	if len(measurements) == 0 {
		return nil
	}
	return measurements[len(measurements)-1]
}
