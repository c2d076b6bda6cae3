package objective

import (
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// Comparator judges measurements against the objectives and constraints of a profile.
// It orders measurements, computes the fractional gain between two of them and
// decides whether a measurement satisfies the constraints.
type Comparator struct {
	objectives       map[string]float64
	constraints      map[string]config.Constraint
	modelObjectives  map[string]map[string]float64
	modelConstraints map[string]map[string]config.Constraint
	modelWeights     map[string]float64
}

// New builds a comparator from a parsed profile. Per-model objectives replace the
// global ones; per-model constraints override global constraints metric by metric.
func New(p *config.Profile) (*Comparator, error) {
	if p == nil {
		return nil, fmt.Errorf("profile is nil")
	}
	c := &Comparator{
		objectives:       p.Objectives,
		constraints:      p.Constraints,
		modelObjectives:  make(map[string]map[string]float64),
		modelConstraints: make(map[string]map[string]config.Constraint),
		modelWeights:     make(map[string]float64),
	}
	if len(c.objectives) == 0 {
		c.objectives = map[string]float64{MetricThroughput: 1}
	}
	if err := checkMetrics(c.objectives, c.constraints); err != nil {
		return nil, err
	}

	for _, m := range p.Models {
		if err := checkMetrics(m.Objectives, m.Constraints); err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		if len(m.Objectives) > 0 {
			c.modelObjectives[m.Name] = m.Objectives
		}
		if len(m.Constraints) > 0 {
			merged := make(map[string]config.Constraint, len(c.constraints)+len(m.Constraints))
			for metric, con := range c.constraints {
				merged[metric] = con
			}
			for metric, con := range m.Constraints {
				merged[metric] = con
			}
			c.modelConstraints[m.Name] = merged
		}
		if m.Weight > 0 {
			c.modelWeights[m.Name] = m.Weight
		}
	}
	return c, nil
}

// NewDefault returns a comparator that maximizes throughput without constraints
func NewDefault() *Comparator {
	c, _ := New(&config.Profile{})
	return c
}

func checkMetrics(objectives map[string]float64, constraints map[string]config.Constraint) error {
	for metric := range objectives {
		if _, err := DirectionOf(metric); err != nil {
			return err
		}
	}
	for metric := range constraints {
		if _, err := DirectionOf(metric); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comparator) objectivesFor(model string) map[string]float64 {
	if objs, ok := c.modelObjectives[model]; ok {
		return objs
	}
	return c.objectives
}

func (c *Comparator) constraintsFor(model string) map[string]config.Constraint {
	if cons, ok := c.modelConstraints[model]; ok {
		return cons
	}
	return c.constraints
}

func (c *Comparator) weightOf(model string) float64 {
	if w, ok := c.modelWeights[model]; ok {
		return w
	}
	return 1
}

// Passes reports whether every model of the measurement satisfies its constraints.
// An absent measurement never passes; a constrained metric that was not measured fails.
func (c *Comparator) Passes(m *models.Measurement) bool {
	if m == nil {
		return false
	}
	for _, mm := range m.Models {
		for metric, con := range c.constraintsFor(mm.ModelName) {
			v, ok := mm.Metrics[metric]
			if !ok {
				return false
			}
			if con.Min != nil && v < *con.Min {
				return false
			}
			if con.Max != nil && v > *con.Max {
				return false
			}
		}
	}
	return true
}

// Gain returns the weighted fractional improvement of candidate over baseline,
// normalized by the baseline so that it does not depend on the metric scale.
// Metrics missing from either side, or with a zero baseline, are ignored.
func (c *Comparator) Gain(baseline, candidate *models.Measurement) float64 {
	return c.combine(baseline, candidate, func(b, v float64) (float64, bool) {
		if b == 0 {
			return 0, false
		}
		return (v - b) / math.Abs(b), true
	})
}

// Compare returns 1 if a is better than b, -1 if worse and 0 if equivalent.
// Differences are normalized by the pair average, which keeps the order antisymmetric.
// An absent measurement ranks below any present one.
func (c *Comparator) Compare(a, b *models.Measurement) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	score := c.combine(b, a, func(bv, av float64) (float64, bool) {
		avg := (math.Abs(av) + math.Abs(bv)) / 2
		if avg == 0 {
			return 0, false
		}
		return (av - bv) / avg, true
	})
	switch {
	case score > 0:
		return 1
	case score < 0:
		return -1
	default:
		return 0
	}
}

// Best returns the best of a set of measurements, ignoring absent ones.
// It returns nil when every measurement is absent.
func (c *Comparator) Best(ms []*models.Measurement) *models.Measurement {
	var best *models.Measurement
	for _, m := range ms {
		if m == nil {
			continue
		}
		if best == nil || c.Compare(m, best) > 0 {
			best = m
		}
	}
	return best
}

// combine reduces a per-metric delta over objectives and models. delta receives the
// reference and the other value and returns the raw improvement for a metric
// where higher is better; the sign is flipped for metrics where lower is better.
func (c *Comparator) combine(ref, other *models.Measurement, delta func(ref, other float64) (float64, bool)) float64 {
	if ref == nil || other == nil {
		return 0
	}
	var sum, total float64
	for i, om := range other.Models {
		rm, ok := matchModel(ref, i, om.ModelName)
		if !ok {
			continue
		}
		g, ok := c.modelDelta(om.ModelName, rm.Metrics, om.Metrics, delta)
		if !ok {
			continue
		}
		w := c.weightOf(om.ModelName)
		sum += w * g
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (c *Comparator) modelDelta(model string, ref, other map[string]float64, delta func(ref, other float64) (float64, bool)) (float64, bool) {
	objs := c.objectivesFor(model)
	metrics := make([]string, 0, len(objs))
	for metric := range objs {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	var sum, total float64
	for _, metric := range metrics {
		rv, ok := ref[metric]
		if !ok {
			continue
		}
		ov, ok := other[metric]
		if !ok {
			continue
		}
		d, ok := delta(rv, ov)
		if !ok {
			continue
		}
		if catalogue[metric] == LowerIsBetter {
			d = -d
		}
		w := objs[metric]
		sum += w * d
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return sum / total, true
}

func matchModel(m *models.Measurement, i int, name string) (models.ModelMeasurement, bool) {
	if i < len(m.Models) && m.Models[i].ModelName == name {
		return m.Models[i], true
	}
	for _, mm := range m.Models {
		if mm.ModelName == name {
			return mm, true
		}
	}
	return models.ModelMeasurement{}, false
}
