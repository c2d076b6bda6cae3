package generate

import (
	"fmt"
	"sort"

	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// Variant is one model configuration: a set of model config parameters
type Variant struct {
	Name       string
	Parameters map[string]int
	Default    bool
}

// RunConfig places the variant of a model at a concurrency
func (v Variant) RunConfig(model string, concurrency int) models.RunConfig {
	var params map[string]int
	if len(v.Parameters) > 0 {
		params = make(map[string]int, len(v.Parameters))
		for k, val := range v.Parameters {
			params[k] = val
		}
	}
	return models.NewRunConfig(models.ModelRunConfig{
		ModelName:   model,
		VariantName: v.Name,
		Parameters:  params,
		Concurrency: concurrency,
		Default:     v.Default,
	})
}

// variantNamer hands out stable variant names per model and parameter set
type variantNamer struct {
	names  map[string]string
	counts map[string]int
}

func newVariantNamer() *variantNamer {
	return &variantNamer{names: make(map[string]string), counts: make(map[string]int)}
}

func (n *variantNamer) name(model string, params map[string]int) string {
	key := model + "/" + models.FormatParameters(params)
	if name, ok := n.names[key]; ok {
		return name
	}
	name := fmt.Sprintf("%s_config_%d", model, n.counts[model])
	n.counts[model]++
	n.names[key] = name
	return name
}

// DefaultVariant is the model as deployed, without overridden parameters
func DefaultVariant(model string) Variant {
	return Variant{Name: model + "_config_default", Default: true}
}

// automaticVariants spans instance counts 1..max and batch sizes in powers of two
func automaticVariants(model string, s config.SearchConfig, namer *variantNamer) []Variant {
	minBatch, maxBatch := s.BatchSizeExponents()
	var out []Variant
	for instances := 1; instances <= s.MaxInstanceCount; instances++ {
		for e := minBatch; e <= maxBatch; e++ {
			params := map[string]int{
				models.ParamInstanceCount: instances,
				models.ParamMaxBatchSize:  1 << e,
			}
			out = append(out, Variant{Name: namer.name(model, params), Parameters: params})
		}
	}
	return out
}

// manualVariants is the cartesian product of an explicit parameter grid
func manualVariants(model string, grid map[string][]int, namer *variantNamer) []Variant {
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]int{{}}
	for _, k := range keys {
		next := make([]map[string]int, 0, len(combos)*len(grid[k]))
		for _, combo := range combos {
			for _, v := range grid[k] {
				params := make(map[string]int, len(combo)+1)
				for ck, cv := range combo {
					params[ck] = cv
				}
				params[k] = v
				next = append(next, params)
			}
		}
		combos = next
	}

	out := make([]Variant, 0, len(combos))
	for _, params := range combos {
		out = append(out, Variant{Name: namer.name(model, params), Parameters: params})
	}
	return out
}

// modelVariants lists the default variant followed by the model's parameter grid
func modelVariants(m config.ModelProfile, s config.SearchConfig, namer *variantNamer) []Variant {
	variants := []Variant{DefaultVariant(m.Name)}
	if m.PinsModelConfig() {
		return append(variants, manualVariants(m.Name, m.ParameterGrid, namer)...)
	}
	return append(variants, automaticVariants(m.Name, s, namer)...)
}

// sweepConcurrencies returns the concurrency list of a model and whether it was generated
func sweepConcurrencies(m config.ModelProfile, s config.SearchConfig) ([]int, bool) {
	if len(m.Concurrency) > 0 {
		out := make([]int, len(m.Concurrency))
		copy(out, m.Concurrency)
		return out, false
	}
	minIndex, maxIndex := s.ConcurrencyExponents()
	out := make([]int, 0, maxIndex-minIndex+1)
	for i := minIndex; i <= maxIndex; i++ {
		out = append(out, 1<<i)
	}
	return out, true
}

// ModelSpace is the exploration grid of one model
type ModelSpace struct {
	Model         string
	Variants      []Variant
	Concurrencies []int
	// Generated is false when the profile lists the concurrencies explicitly
	Generated bool
}

// Size is the number of run configs in the grid
func (m ModelSpace) Size() int {
	return len(m.Variants) * len(m.Concurrencies)
}

// SearchSpace lists the exploration grid of every profiled model, in the order
// the brute generator walks it. The quick generator visits a subset.
func SearchSpace(profile *config.Profile) []ModelSpace {
	namer := newVariantNamer()
	out := make([]ModelSpace, 0, len(profile.Models))
	for _, m := range profile.Models {
		concurrencies, generated := sweepConcurrencies(m, profile.Search)
		out = append(out, ModelSpace{
			Model:         m.Name,
			Variants:      modelVariants(m, profile.Search, namer),
			Concurrencies: concurrencies,
			Generated:     generated,
		})
	}
	return out
}
