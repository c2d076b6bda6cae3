package results

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// Ranker orders measurements and checks them against constraints
type Ranker interface {
	Passes(m *models.Measurement) bool
	Compare(a, b *models.Measurement) int
}

// Result is a measured run config
type Result struct {
	RunConfig   models.RunConfig    `json:"run_config"`
	Measurement *models.Measurement `json:"measurement"`
	Passing     bool                `json:"passing"`
}

// IsDefault reports whether the result was measured on the default variant
func (r Result) IsDefault() bool {
	return r.RunConfig.IsDefault()
}

// Store keeps the best measurement of every model variant, grouped by model.
// It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	ranker Ranker
	order  []string
	// model key -> variant key -> best result
	best map[string]map[string]*Result
	// number of measurements added per model key
	counts map[string]int
}

// NewStore creates an empty result store
func NewStore(ranker Ranker) *Store {
	return &Store{
		ranker: ranker,
		best:   make(map[string]map[string]*Result),
		counts: make(map[string]int),
	}
}

// ModelKey identifies the models of a run config
func ModelKey(rc models.RunConfig) string {
	names := make([]string, 0, len(rc.Models))
	for _, m := range rc.Models {
		names = append(names, m.ModelName)
	}
	return strings.Join(names, ",")
}

// Add records a measurement. Absent measurements are not stored; Add reports
// whether the measurement became the best of its variant.
func (s *Store) Add(rc models.RunConfig, m *models.Measurement) (bool, error) {
	if len(rc.Models) == 0 {
		return false, fmt.Errorf("run config has no models")
	}
	if m == nil {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	model := ModelKey(rc)
	variants, ok := s.best[model]
	if !ok {
		variants = make(map[string]*Result)
		s.best[model] = variants
		s.order = append(s.order, model)
	}
	s.counts[model]++

	candidate := &Result{RunConfig: rc.Clone(), Measurement: m, Passing: s.ranker.Passes(m)}
	current, ok := variants[rc.VariantKey()]
	if ok && !s.better(candidate, current) {
		return false, nil
	}
	variants[rc.VariantKey()] = candidate
	return true, nil
}

// better ranks passing results before failing ones, then by measurement
func (s *Store) better(a, b *Result) bool {
	if a.Passing != b.Passing {
		return a.Passing
	}
	return s.ranker.Compare(a.Measurement, b.Measurement) > 0
}

// ModelNames returns the model keys in the order they were first measured
func (s *Store) ModelNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Results returns every variant of a model, best first
func (s *Store) Results(model string) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranked(model)
}

func (s *Store) ranked(model string) []Result {
	variants := s.best[model]
	out := make([]Result, 0, len(variants))
	for _, r := range variants {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if s.better(&out[i], &out[j]) {
			return true
		}
		if s.better(&out[j], &out[i]) {
			return false
		}
		return out[i].RunConfig.VariantKey() < out[j].RunConfig.VariantKey()
	})
	return out
}

// TopN returns up to n of the best results of a model. With includeDefault the
// default variant is appended when it was measured but did not make the cut.
func (s *Store) TopN(model string, n int, includeDefault bool) []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranked := s.ranked(model)
	if n < 0 {
		n = 0
	}
	top := make([]Result, 0, n+1)
	for _, r := range ranked {
		if len(top) == n {
			break
		}
		top = append(top, r)
	}
	if !includeDefault {
		return top
	}
	for _, r := range top {
		if r.IsDefault() {
			return top
		}
	}
	for _, r := range ranked {
		if r.IsDefault() {
			return append(top, r)
		}
	}
	return top
}

// Best returns the best result of a model
func (s *Store) Best(model string) (Result, bool) {
	top := s.TopN(model, 1, false)
	if len(top) == 0 {
		return Result{}, false
	}
	return top[0], true
}

// Count returns how many present measurements were added for a model
func (s *Store) Count(model string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[model]
}
