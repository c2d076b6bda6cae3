package generate

import (
	"fmt"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/search"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// ErrProtocolViolation is returned when proposals and measurements get out of lockstep
var ErrProtocolViolation = search.ErrProtocolViolation

// Generator proposes run configs one at a time. Every proposal returned by Next
// must be answered with Feed before Next is called again.
type Generator interface {
	// Next returns the next run config to measure; ok is false once exhausted
	Next() (rc models.RunConfig, ok bool, err error)
	// Feed supplies the measurements of the last proposal. A nil entry is an absent measurement.
	Feed(measurements []*models.Measurement) error
}

// lockstep enforces one outstanding proposal at a time. Violations are sticky.
type lockstep struct {
	outstanding bool
	err         error
}

func (l *lockstep) checkNext() error {
	if l.err != nil {
		return l.err
	}
	if l.outstanding {
		l.err = fmt.Errorf("%w: previous proposal has not been measured", ErrProtocolViolation)
		return l.err
	}
	return nil
}

func (l *lockstep) checkFeed(measurements []*models.Measurement) error {
	if l.err != nil {
		return l.err
	}
	if !l.outstanding {
		l.err = fmt.Errorf("%w: no proposal awaiting measurement", ErrProtocolViolation)
		return l.err
	}
	if len(measurements) == 0 {
		l.err = fmt.Errorf("%w: empty measurement batch", ErrProtocolViolation)
		return l.err
	}
	l.outstanding = false
	return nil
}

func (l *lockstep) propose() {
	l.outstanding = true
}

// Err returns the error that stopped the generator, if any
func (l *lockstep) Err() error {
	return l.err
}

func (l *lockstep) fail(err error) error {
	if l.err == nil {
		l.err = err
	}
	return l.err
}
