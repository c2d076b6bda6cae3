package search

import (
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// SkipConcurrency is proposed when the previous binary step could not be measured
const SkipConcurrency = 0

type phase int

const (
	phaseSweep phase = iota
	phaseBinary
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseSweep:
		return "sweep"
	case phaseBinary:
		return "binary"
	default:
		return "done"
	}
}

// ConcurrencySearch proposes concurrency values for one model configuration.
//
// It sweeps powers of two from 2^MinIndex to 2^MaxIndex and stops early once the
// objective gain over the last MinConsecutiveTries measurements saturates. If a
// constraint starts failing during the sweep it then binary searches the boundary
// between the last passing and the first failing concurrency.
//
// The caller must alternate Next and AddMeasurement. A ConcurrencySearch is not
// safe for concurrent use.
type ConcurrencySearch struct {
	params Params
	cmp    Comparator
	log    *slog.Logger

	configs      []int
	measurements []*models.Measurement
	anchored     bool

	lastFailing int
	lastPassing int

	phase       phase
	sweepIndex  int
	binarySteps int
	err         error
}

// NewConcurrencySearch creates a search with validated tunables
func NewConcurrencySearch(params Params, cmp Comparator) (*ConcurrencySearch, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cmp == nil {
		return nil, fmt.Errorf("%w: comparator is nil", ErrInvalidParams)
	}
	return &ConcurrencySearch{
		params:     params,
		cmp:        cmp,
		log:        logger.Component("concurrency_search"),
		sweepIndex: params.MinIndex,
	}, nil
}

// Next returns the next concurrency to measure. ok is false once the search is exhausted.
// A returned value of SkipConcurrency still needs a (typically absent) measurement.
func (s *ConcurrencySearch) Next() (concurrency int, ok bool, err error) {
	if s.err != nil {
		return 0, false, s.err
	}
	if err := s.checkMeasurementCount(0); err != nil {
		return 0, false, err
	}

	if s.phase == phaseSweep {
		if c, ok := s.nextSweep(); ok {
			return c, true, nil
		}
		if !s.findConstraintBoundary() {
			s.phase = phaseDone
			return 0, false, nil
		}
		s.log.Debug("constraint boundary found",
			"last_passing", s.lastPassing,
			"last_failing", s.lastFailing)
		s.configs = append(s.configs, s.lastFailing)
		s.anchored = true
		s.phase = phaseBinary
	}

	if s.phase == phaseBinary {
		if c, ok := s.nextBinary(); ok {
			return c, true, nil
		}
		s.phase = phaseDone
	}
	return 0, false, nil
}

// AddMeasurement feeds back the measurement of the last proposal. nil means the
// proposal could not be measured.
func (s *ConcurrencySearch) AddMeasurement(m *models.Measurement) error {
	if s.err != nil {
		return s.err
	}
	if err := s.checkMeasurementCount(1); err != nil {
		return err
	}
	s.measurements = append(s.measurements, m)
	return nil
}

// checkMeasurementCount verifies that exactly pending proposals await a measurement
func (s *ConcurrencySearch) checkMeasurementCount(pending int) error {
	proposed := len(s.configs)
	if s.anchored {
		proposed--
	}
	if proposed-len(s.measurements) != pending {
		s.err = fmt.Errorf("%w: %d proposals, %d measurements", ErrProtocolViolation, proposed, len(s.measurements))
		return s.err
	}
	return nil
}

func (s *ConcurrencySearch) nextSweep() (int, bool) {
	if s.sweepIndex > s.params.MaxIndex {
		return 0, false
	}
	if saturated, gain := Saturated(s.cmp, s.measurements, s.params.MinConsecutiveTries, s.params.MinGain); saturated {
		s.log.Info("terminating concurrency sweep, objective gain saturated",
			"gain", gain,
			"min_gain", s.params.MinGain,
			"last_concurrency", s.configs[len(s.configs)-1])
		return 0, false
	}
	c := 1 << s.sweepIndex
	s.sweepIndex++
	s.configs = append(s.configs, c)
	return c, true
}

// findConstraintBoundary scans the sweep backward for the most recent pair where a
// passing measurement is followed by a failing one
func (s *ConcurrencySearch) findConstraintBoundary() bool {
	for i := len(s.measurements) - 1; i >= 1; i-- {
		if s.atFailureBoundary(i) {
			s.lastFailing = s.configs[i]
			s.lastPassing = s.configs[i-1]
			return true
		}
	}
	if len(s.measurements) > 0 && s.measurements[0] != nil && !s.cmp.Passes(s.measurements[0]) {
		s.lastFailing = s.configs[0]
		s.lastPassing = 0
		return true
	}
	return false
}

func (s *ConcurrencySearch) atFailureBoundary(i int) bool {
	prev, cur := s.measurements[i-1], s.measurements[i]
	if prev == nil || cur == nil {
		return false
	}
	return s.cmp.Passes(prev) && !s.cmp.Passes(cur)
}

func (s *ConcurrencySearch) nextBinary() (int, bool) {
	if s.binarySteps >= s.params.MaxBinarySteps {
		return 0, false
	}
	s.binarySteps++

	c := s.nextBinaryConcurrency()
	if c == s.configs[len(s.configs)-1] {
		s.log.Debug("binary search converged", "concurrency", c)
		return 0, false
	}
	s.configs = append(s.configs, c)
	return c, true
}

func (s *ConcurrencySearch) nextBinaryConcurrency() int {
	latest := s.measurements[len(s.measurements)-1]
	if latest == nil {
		return SkipConcurrency
	}
	last := s.configs[len(s.configs)-1]
	if s.cmp.Passes(latest) {
		s.lastPassing = last
		return (s.lastFailing + last) / 2
	}
	s.lastFailing = last
	return (s.lastPassing + last) / 2
}

// Configs returns the proposed concurrencies, including the binary search anchor
func (s *ConcurrencySearch) Configs() []int {
	out := make([]int, len(s.configs))
	copy(out, s.configs)
	return out
}

// Bounds returns the current failing and passing concurrency bounds
func (s *ConcurrencySearch) Bounds() (lastFailing, lastPassing int) {
	return s.lastFailing, s.lastPassing
}

// Phase returns the current phase name
func (s *ConcurrencySearch) Phase() string {
	return s.phase.String()
}

// Done reports whether the search is exhausted or failed
func (s *ConcurrencySearch) Done() bool {
	return s.phase == phaseDone || s.err != nil
}
