package search

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

var (
	// ErrProtocolViolation is returned when measurements and proposals get out of lockstep.
	// It is fatal for the search that returned it.
	ErrProtocolViolation = errors.New("measurement count does not match proposal count")
	// ErrInvalidParams is returned for search tunables outside their valid range
	ErrInvalidParams = errors.New("invalid search parameters")
)

// Comparator is the capability the search needs to judge measurements.
// Implementations must accept nil (absent) measurements.
type Comparator interface {
	// Passes reports whether the measurement satisfies the constraints
	Passes(m *models.Measurement) bool
	// Compare returns a positive value when a is better than b, negative when worse, 0 when equal
	Compare(a, b *models.Measurement) int
	// Gain returns the fractional improvement of candidate over baseline
	Gain(baseline, candidate *models.Measurement) float64
	// Best returns the best measurement of a set, or nil when all are absent
	Best(ms []*models.Measurement) *models.Measurement
}

// Params holds the tunables of a ConcurrencySearch
type Params struct {
	// MinIndex and MaxIndex bound the sweep as exponents of two
	MinIndex int
	MaxIndex int
	// MaxBinarySteps caps the binary search around a constraint boundary
	MaxBinarySteps int
	// MinConsecutiveTries is the window size of the plateau check
	MinConsecutiveTries int
	// MinGain is the fractional gain the window must exceed to keep sweeping
	MinGain float64
}

// DefaultParams returns the tunables derived from the configuration defaults
func DefaultParams() Params {
	return ParamsFromConfig(config.SearchConfig{
		MinConcurrency:       config.DefaultMinConcurrency,
		MaxConcurrency:       config.DefaultMaxConcurrency,
		MaxBinarySearchSteps: config.DefaultMaxBinarySearchSteps,
		MinConsecutiveTries:  config.DefaultMinConsecutiveTries,
		MinGain:              config.DefaultMinGain,
	})
}

// ParamsFromConfig converts the run_config_search section of a profile
func ParamsFromConfig(s config.SearchConfig) Params {
	minIndex, maxIndex := s.ConcurrencyExponents()
	return Params{
		MinIndex:            minIndex,
		MaxIndex:            maxIndex,
		MaxBinarySteps:      s.MaxBinarySearchSteps,
		MinConsecutiveTries: s.MinConsecutiveTries,
		MinGain:             s.MinGain,
	}
}

// Validate checks the tunables
func (p Params) Validate() error {
	if p.MinIndex < 0 {
		return fmt.Errorf("%w: min index must not be negative, got %d", ErrInvalidParams, p.MinIndex)
	}
	if p.MaxIndex < p.MinIndex {
		return fmt.Errorf("%w: min index (%d) cannot exceed max index (%d)", ErrInvalidParams, p.MinIndex, p.MaxIndex)
	}
	if p.MaxIndex > 30 {
		return fmt.Errorf("%w: max index %d overflows concurrency", ErrInvalidParams, p.MaxIndex)
	}
	if p.MaxBinarySteps <= 0 {
		return fmt.Errorf("%w: max binary steps must be positive, got %d", ErrInvalidParams, p.MaxBinarySteps)
	}
	if p.MinConsecutiveTries <= 0 {
		return fmt.Errorf("%w: min consecutive tries must be positive, got %d", ErrInvalidParams, p.MinConsecutiveTries)
	}
	if p.MinGain <= 0 {
		return fmt.Errorf("%w: min gain must be positive, got %f", ErrInvalidParams, p.MinGain)
	}
	return nil
}

// MaxProposals is the upper bound on the number of values one search proposes
func (p Params) MaxProposals() int {
	return (p.MaxIndex - p.MinIndex + 1) + p.MaxBinarySteps + 1
}
