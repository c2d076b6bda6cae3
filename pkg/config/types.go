package config

// Search modes for the exploration phase
const (
	SearchModeBrute = "brute"
	SearchModeQuick = "quick"
)

// Defaults applied to an unset search configuration
const (
	DefaultMinConcurrency        = 1
	DefaultMaxConcurrency        = 1024
	DefaultMaxBinarySearchSteps  = 5
	DefaultMinModelBatchSize     = 1
	DefaultMaxModelBatchSize     = 128
	DefaultMaxInstanceCount      = 5
	DefaultMaxSteps              = 10
	DefaultMinConsecutiveTries   = 4
	DefaultMinGain               = 0.05
	DefaultNumConfigsPerModel    = 3
	DefaultObjectiveMetric       = "perf_throughput"
	DefaultLogLevel              = "info"
	concurrencyParameter         = "concurrency"
	defaultObjectiveMetricWeight = 1.0
)

// Profile represents a profiling request: which models to profile, how to search
// and how measurements are judged
type Profile struct {
	LogLevel    string                `yaml:"log_level"`
	Search      SearchConfig          `yaml:"run_config_search"`
	Objectives  map[string]float64    `yaml:"objectives,omitempty"`
	Constraints map[string]Constraint `yaml:"constraints,omitempty"`
	Models      []ModelProfile        `yaml:"profile_models"`
}

// SearchConfig holds the tunables of the configuration search
type SearchConfig struct {
	Mode                 string  `yaml:"mode"` // brute or quick
	MinConcurrency       int     `yaml:"min_concurrency"`
	MaxConcurrency       int     `yaml:"max_concurrency"`
	MaxBinarySearchSteps int     `yaml:"max_binary_search_steps"`
	MinModelBatchSize    int     `yaml:"min_model_batch_size"`
	MaxModelBatchSize    int     `yaml:"max_model_batch_size"`
	MaxInstanceCount     int     `yaml:"max_instance_count"`
	MaxSteps             int     `yaml:"max_steps"`
	MinConsecutiveTries  int     `yaml:"min_consecutive_tries"`
	MinGain              float64 `yaml:"min_gain"`
	NumConfigsPerModel   int     `yaml:"num_configs_per_model"`
	EarlyExitEnable      *bool   `yaml:"early_exit_enable,omitempty"`
}

// EarlyExit reports whether plateau early exit is enabled (default true)
func (s SearchConfig) EarlyExit() bool {
	return s.EarlyExitEnable == nil || *s.EarlyExitEnable
}

// Constraint bounds a metric; either side may be omitted
type Constraint struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// ModelProfile describes one model to profile
type ModelProfile struct {
	Name                  string                `yaml:"name"`
	Weight                float64               `yaml:"weight,omitempty"`
	Objectives            map[string]float64    `yaml:"objectives,omitempty"`
	Constraints           map[string]Constraint `yaml:"constraints,omitempty"`
	Parameters            map[string]any        `yaml:"parameters,omitempty"`
	ModelConfigParameters map[string]any        `yaml:"model_config_parameters,omitempty"`

	// Concurrency is the expanded parameters.concurrency list, empty when unset
	Concurrency []int `yaml:"-"`
	// ParameterGrid is the expanded model_config_parameters, one value list per parameter
	ParameterGrid map[string][]int `yaml:"-"`
}

// PinsModelConfig reports whether the model declares an explicit model config grid
func (m ModelProfile) PinsModelConfig() bool {
	return len(m.ModelConfigParameters) > 0
}

// IsAutomaticSearch reports whether no model pins an explicit model config grid
func (p *Profile) IsAutomaticSearch() bool {
	for _, m := range p.Models {
		if m.PinsModelConfig() {
			return false
		}
	}
	return true
}

// ModelNames returns the profiled model names in declaration order
func (p *Profile) ModelNames() []string {
	names := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		names = append(names, m.Name)
	}
	return names
}

// applyDefaults fills unset fields with their defaults
func (p *Profile) applyDefaults() {
	if p.LogLevel == "" {
		p.LogLevel = DefaultLogLevel
	}
	s := &p.Search
	if s.Mode == "" {
		s.Mode = SearchModeBrute
	}
	if s.MinConcurrency == 0 {
		s.MinConcurrency = DefaultMinConcurrency
	}
	if s.MaxConcurrency == 0 {
		s.MaxConcurrency = DefaultMaxConcurrency
	}
	if s.MaxBinarySearchSteps == 0 {
		s.MaxBinarySearchSteps = DefaultMaxBinarySearchSteps
	}
	if s.MinModelBatchSize == 0 {
		s.MinModelBatchSize = DefaultMinModelBatchSize
	}
	if s.MaxModelBatchSize == 0 {
		s.MaxModelBatchSize = DefaultMaxModelBatchSize
	}
	if s.MaxInstanceCount == 0 {
		s.MaxInstanceCount = DefaultMaxInstanceCount
	}
	if s.MaxSteps == 0 {
		s.MaxSteps = DefaultMaxSteps
	}
	if s.MinConsecutiveTries == 0 {
		s.MinConsecutiveTries = DefaultMinConsecutiveTries
	}
	if s.MinGain == 0 {
		s.MinGain = DefaultMinGain
	}
	if s.NumConfigsPerModel == 0 {
		s.NumConfigsPerModel = DefaultNumConfigsPerModel
	}
	if len(p.Objectives) == 0 {
		p.Objectives = map[string]float64{DefaultObjectiveMetric: defaultObjectiveMetricWeight}
	}
	for i := range p.Models {
		if p.Models[i].Weight == 0 {
			p.Models[i].Weight = 1
		}
	}
}
