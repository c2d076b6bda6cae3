package objective

// Direction tells whether larger or smaller values of a metric are better
type Direction int

const (
	// HigherIsBetter marks metrics to maximize
	HigherIsBetter Direction = iota
	// LowerIsBetter marks metrics to minimize
	LowerIsBetter
)

func (d Direction) String() string {
	if d == LowerIsBetter {
		return "lower_is_better"
	}
	return "higher_is_better"
}

// Metric names understood by the comparator
const (
	// MetricThroughput is inferences per second
	MetricThroughput = "perf_throughput"
	// MetricLatencyAvg is the mean request latency
	MetricLatencyAvg = "perf_latency_avg"
	// MetricLatencyP90 is the 90th percentile request latency
	MetricLatencyP90 = "perf_latency_p90"
	// MetricLatencyP95 is the 95th percentile request latency
	MetricLatencyP95 = "perf_latency_p95"
	// MetricLatencyP99 is the 99th percentile request latency
	MetricLatencyP99 = "perf_latency_p99"
	// MetricGPUUsedMemory is GPU memory in use
	MetricGPUUsedMemory = "gpu_used_memory"
	// MetricGPUUtilization is GPU utilization
	MetricGPUUtilization = "gpu_utilization"
	// MetricCPUUsedRAM is host memory in use
	MetricCPUUsedRAM = "cpu_used_ram"
)

var catalogue = map[string]Direction{
	MetricThroughput:     HigherIsBetter,
	MetricLatencyAvg:     LowerIsBetter,
	MetricLatencyP90:     LowerIsBetter,
	MetricLatencyP95:     LowerIsBetter,
	MetricLatencyP99:     LowerIsBetter,
	MetricGPUUsedMemory:  LowerIsBetter,
	MetricGPUUtilization: HigherIsBetter,
	MetricCPUUsedRAM:     LowerIsBetter,
}

// DirectionOf returns the direction of a known metric
func DirectionOf(metric string) (Direction, error) {
	d, ok := catalogue[metric]
	if !ok {
		return 0, &UnknownMetricError{Metric: metric}
	}
	return d, nil
}

// KnownMetrics returns the metric names of the catalogue
func KnownMetrics() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	return names
}

// UnknownMetricError indicates an objective or constraint on a metric the comparator cannot rank
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return "unknown metric: " + e.Metric
}
