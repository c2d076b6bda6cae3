package profiled

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/objective"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// testProfileYAML explores two variants at concurrency 1, 2, 4 and then
// bisects the latency boundary of each
const testProfileYAML = `
run_config_search:
  min_concurrency: 1
  max_concurrency: 4
  max_binary_search_steps: 2
  max_model_batch_size: 1
  max_instance_count: 1
  min_consecutive_tries: 4
  num_configs_per_model: 1
constraints:
  perf_latency_p99:
    max: 25
profile_models:
  - name: m
`

// measure fakes a server whose latency grows with concurrency and whose
// non-default variants have twice the throughput
func measure(rc models.RunConfig) *models.Measurement {
	c := float64(rc.Concurrency())
	factor := 1.0
	if !rc.IsDefault() {
		factor = 2
	}
	return models.NewMeasurement(rc.Models[0].ModelName, map[string]float64{
		objective.MetricThroughput: c * factor,
		objective.MetricLatencyP99: c * 10,
	})
}

// driveSession runs a session to completion and returns its proposals
func driveSession(t *testing.T, store *SessionStore, id string) []*Proposal {
	t.Helper()
	var out []*Proposal
	for range 100 {
		p, ok, err := store.Next(id)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, p)
		_, err = store.Report(id, []*models.Measurement{measure(p.RunConfig)})
		require.NoError(t, err)
	}
	t.Fatalf("session %s did not finish", id)
	return nil
}

func proposalConcurrencies(ps []*Proposal) []int {
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.RunConfig.Concurrency())
	}
	return out
}
