package objective

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func throughput(v float64) *models.Measurement {
	return models.NewMeasurement("m", map[string]float64{MetricThroughput: v})
}

func TestGainThroughput(t *testing.T) {
	c := NewDefault()

	assert.Equal(t, 0.05, c.Gain(throughput(50), throughput(52.5)))
	assert.Greater(t, c.Gain(throughput(50), throughput(52.51)), 0.05)
	assert.Equal(t, 3.0, c.Gain(throughput(1), throughput(4)))
	assert.Equal(t, -0.5, c.Gain(throughput(4), throughput(2)))
	assert.Equal(t, 0.0, c.Gain(throughput(0), throughput(4)), "zero baseline is ignored")
	assert.Equal(t, 0.0, c.Gain(nil, throughput(4)))
}

func TestGainIsScaleIndependent(t *testing.T) {
	c := NewDefault()
	assert.InDelta(t, c.Gain(throughput(10), throughput(12)), c.Gain(throughput(1000), throughput(1200)), 1e-12)
}

func TestGainLatencyObjective(t *testing.T) {
	c, err := New(&config.Profile{Objectives: map[string]float64{MetricLatencyP99: 1}})
	require.NoError(t, err)

	slow := models.NewMeasurement("m", map[string]float64{MetricLatencyP99: 100})
	fast := models.NewMeasurement("m", map[string]float64{MetricLatencyP99: 80})

	assert.InDelta(t, 0.2, c.Gain(slow, fast), 1e-12)
	assert.Equal(t, 1, c.Compare(fast, slow))
	assert.Equal(t, -1, c.Compare(slow, fast))
}

func TestGainWeightedObjectives(t *testing.T) {
	c, err := New(&config.Profile{Objectives: map[string]float64{
		MetricThroughput: 3,
		MetricLatencyAvg: 1,
	}})
	require.NoError(t, err)

	base := models.NewMeasurement("m", map[string]float64{MetricThroughput: 100, MetricLatencyAvg: 10})
	cand := models.NewMeasurement("m", map[string]float64{MetricThroughput: 120, MetricLatencyAvg: 12})

	// throughput +20% weighted 3, latency -20% weighted 1
	assert.InDelta(t, (3*0.2+1*-0.2)/4, c.Gain(base, cand), 1e-12)
}

func TestGainModelWeights(t *testing.T) {
	c, err := New(&config.Profile{Models: []config.ModelProfile{
		{Name: "a", Weight: 3},
		{Name: "b", Weight: 1},
	}})
	require.NoError(t, err)

	base := &models.Measurement{Models: []models.ModelMeasurement{
		{ModelName: "a", Metrics: map[string]float64{MetricThroughput: 10}},
		{ModelName: "b", Metrics: map[string]float64{MetricThroughput: 10}},
	}}
	cand := &models.Measurement{Models: []models.ModelMeasurement{
		{ModelName: "a", Metrics: map[string]float64{MetricThroughput: 11}},
		{ModelName: "b", Metrics: map[string]float64{MetricThroughput: 15}},
	}}

	assert.InDelta(t, (3*0.1+1*0.5)/4, c.Gain(base, cand), 1e-12)
}

func TestCompareIsAntisymmetric(t *testing.T) {
	c := NewDefault()
	values := []float64{0, 1, 2.5, 50, 52.5, 1000}
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, -c.Compare(throughput(a), throughput(b)), c.Compare(throughput(b), throughput(a)), "a=%v b=%v", a, b)
		}
	}
	assert.Equal(t, 0, c.Compare(throughput(7), throughput(7)))
}

func TestCompareAbsent(t *testing.T) {
	c := NewDefault()
	assert.Equal(t, 0, c.Compare(nil, nil))
	assert.Equal(t, -1, c.Compare(nil, throughput(1)))
	assert.Equal(t, 1, c.Compare(throughput(1), nil))
}

func TestBest(t *testing.T) {
	c := NewDefault()
	best := c.Best([]*models.Measurement{throughput(3), nil, throughput(9), throughput(4)})
	require.NotNil(t, best)
	v, _ := best.Metric(0, MetricThroughput)
	assert.Equal(t, 9.0, v)

	assert.Nil(t, c.Best([]*models.Measurement{nil, nil}))
	assert.Nil(t, c.Best(nil))
}

func TestPasses(t *testing.T) {
	c, err := New(&config.Profile{
		Constraints: map[string]config.Constraint{
			MetricLatencyP99: {Max: floatPtr(100)},
		},
		Models: []config.ModelProfile{
			{Name: "strict", Constraints: map[string]config.Constraint{
				MetricThroughput: {Min: floatPtr(50)},
			}},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		m    *models.Measurement
		want bool
	}{
		{"absent", nil, false},
		{"within max", models.NewMeasurement("loose", map[string]float64{MetricLatencyP99: 90}), true},
		{"at max", models.NewMeasurement("loose", map[string]float64{MetricLatencyP99: 100}), true},
		{"above max", models.NewMeasurement("loose", map[string]float64{MetricLatencyP99: 101}), false},
		{"missing constrained metric", models.NewMeasurement("loose", map[string]float64{MetricThroughput: 10}), false},
		{"model override passes", models.NewMeasurement("strict", map[string]float64{MetricLatencyP99: 90, MetricThroughput: 60}), true},
		{"model override below min", models.NewMeasurement("strict", map[string]float64{MetricLatencyP99: 90, MetricThroughput: 40}), false},
		{"model keeps global constraint", models.NewMeasurement("strict", map[string]float64{MetricLatencyP99: 200, MetricThroughput: 60}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Passes(tt.m))
		})
	}
}

func TestPassesWithoutConstraints(t *testing.T) {
	c := NewDefault()
	assert.True(t, c.Passes(throughput(0)))
	assert.False(t, c.Passes(nil))
}

func TestNewRejectsUnknownMetric(t *testing.T) {
	_, err := New(&config.Profile{Objectives: map[string]float64{"perf_magic": 1}})
	var unknown *UnknownMetricError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "perf_magic", unknown.Metric)

	_, err = New(&config.Profile{Models: []config.ModelProfile{{
		Name:        "m",
		Constraints: map[string]config.Constraint{"bogus": {Max: floatPtr(1)}},
	}}})
	require.ErrorAs(t, err, &unknown)

	_, err = New(nil)
	require.Error(t, err)
}

func TestDirectionOf(t *testing.T) {
	d, err := DirectionOf(MetricThroughput)
	require.NoError(t, err)
	assert.Equal(t, HigherIsBetter, d)

	d, err = DirectionOf(MetricGPUUsedMemory)
	require.NoError(t, err)
	assert.Equal(t, LowerIsBetter, d)
	assert.Equal(t, "lower_is_better", d.String())

	assert.Len(t, KnownMetrics(), 8)
}
