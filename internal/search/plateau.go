package search

import "github.com/GoSim-25-26J-441/serving-profiler/pkg/models"

// Fallback gains used when the window endpoints were not measured
const (
	gainBothAbsent  = 0.0
	gainFirstAbsent = 1.0
	gainBestAbsent  = -1.0
)

// WindowGain returns the gain of the best measurement of the window over its first entry
func WindowGain(cmp Comparator, window []*models.Measurement) float64 {
	if len(window) == 0 {
		return gainBothAbsent
	}
	first := window[0]
	best := cmp.Best(window)
	switch {
	case first == nil && best == nil:
		return gainBothAbsent
	case first == nil:
		return gainFirstAbsent
	case best == nil:
		return gainBestAbsent
	}
	return cmp.Gain(first, best)
}

// Saturated reports whether the last tries measurements of history gained no more
// than minGain. Histories shorter than tries never saturate.
func Saturated(cmp Comparator, history []*models.Measurement, tries int, minGain float64) (bool, float64) {
	if tries <= 0 || len(history) < tries {
		return false, 0
	}
	gain := WindowGain(cmp, history[len(history)-tries:])
	return gain <= minGain, gain
}
