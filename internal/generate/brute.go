package generate

import (
	"log/slog"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/search"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// BruteGenerator measures every variant of every model. Each variant sweeps its
// concurrency list; generated lists stop early once throughput stops improving.
type BruteGenerator struct {
	lockstep
	models []config.ModelProfile
	search config.SearchConfig
	cmp    search.Comparator
	namer  *variantNamer
	log    *slog.Logger

	modelIdx      int
	variants      []Variant
	variantIdx    int
	concurrencies []int
	generated     bool
	concIdx       int
	history       []*models.Measurement
}

// NewBruteGenerator creates a brute force generator over the profile's models
func NewBruteGenerator(profile *config.Profile, cmp search.Comparator) *BruteGenerator {
	g := &BruteGenerator{
		models: profile.Models,
		search: profile.Search,
		cmp:    cmp,
		namer:  newVariantNamer(),
		log:    logger.Component("brute_generator"),
	}
	g.loadModel()
	return g
}

func (g *BruteGenerator) loadModel() {
	g.variantIdx, g.concIdx, g.history = 0, 0, nil
	if g.modelIdx >= len(g.models) {
		g.variants = nil
		return
	}
	m := g.models[g.modelIdx]
	g.variants = modelVariants(m, g.search, g.namer)
	g.concurrencies, g.generated = sweepConcurrencies(m, g.search)
	g.log.Info("starting brute search", "model", m.Name, "variants", len(g.variants))
}

// Next implements Generator
func (g *BruteGenerator) Next() (models.RunConfig, bool, error) {
	if err := g.checkNext(); err != nil {
		return models.RunConfig{}, false, err
	}
	for g.modelIdx < len(g.models) {
		if g.variantIdx >= len(g.variants) {
			g.modelIdx++
			g.loadModel()
			continue
		}
		if g.variantExhausted() {
			g.variantIdx++
			g.concIdx, g.history = 0, nil
			continue
		}
		v := g.variants[g.variantIdx]
		c := g.concurrencies[g.concIdx]
		g.concIdx++
		g.propose()
		return v.RunConfig(g.models[g.modelIdx].Name, c), true, nil
	}
	return models.RunConfig{}, false, nil
}

func (g *BruteGenerator) variantExhausted() bool {
	if g.concIdx >= len(g.concurrencies) {
		return true
	}
	if !g.generated || len(g.history) == 0 {
		return false
	}
	// higher concurrencies will not measure either
	if g.history[len(g.history)-1] == nil {
		g.log.Debug("stopping concurrency sweep, last measurement absent",
			"variant", g.variants[g.variantIdx].Name)
		return true
	}
	if !g.search.EarlyExit() {
		return false
	}
	if saturated, gain := search.Saturated(g.cmp, g.history, g.search.MinConsecutiveTries, g.search.MinGain); saturated {
		g.log.Info("stopping concurrency sweep, throughput plateau",
			"variant", g.variants[g.variantIdx].Name,
			"gain", gain)
		return true
	}
	return false
}

// Feed implements Generator
func (g *BruteGenerator) Feed(measurements []*models.Measurement) error {
	if err := g.checkFeed(measurements); err != nil {
		return err
	}
	g.history = append(g.history, models.Representative(measurements))
	return nil
}
