package generate

import (
	"log/slog"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/search"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// coordinate is a point of the quick search space
type coordinate struct {
	instances   int
	batchExp    int
	concurrency int // exponent of two
}

type quickStage int

const (
	stageDefault quickStage = iota
	stageStart
	stageNeighbors
)

// QuickGenerator hill climbs over instance count, batch size and concurrency.
// After the default variant it measures a start point, then all unvisited neighbors
// of the current point, and moves to the best neighbor while it improves.
type QuickGenerator struct {
	lockstep
	models []config.ModelProfile
	search config.SearchConfig
	cmp    search.Comparator
	namer  *variantNamer
	log    *slog.Logger

	minBatch, maxBatch int
	minConc, maxConc   int

	modelIdx    int
	stage       quickStage
	current     coordinate
	currentM    *models.Measurement
	visited     map[coordinate]bool
	neighbors   []coordinate
	neighborM   []*models.Measurement
	neighborIdx int
	steps       int
}

// NewQuickGenerator creates a hill climbing generator over the profile's models
func NewQuickGenerator(profile *config.Profile, cmp search.Comparator) *QuickGenerator {
	g := &QuickGenerator{
		models: profile.Models,
		search: profile.Search,
		cmp:    cmp,
		namer:  newVariantNamer(),
		log:    logger.Component("quick_generator"),
	}
	g.minBatch, g.maxBatch = profile.Search.BatchSizeExponents()
	g.minConc, g.maxConc = profile.Search.ConcurrencyExponents()
	g.resetModel()
	return g
}

func (g *QuickGenerator) resetModel() {
	g.stage = stageDefault
	g.current = coordinate{instances: 1, batchExp: g.minBatch, concurrency: g.minConc}
	g.currentM = nil
	g.visited = make(map[coordinate]bool)
	g.neighbors, g.neighborM, g.neighborIdx = nil, nil, 0
	g.steps = 0
}

func (g *QuickGenerator) runConfig(c coordinate) models.RunConfig {
	params := map[string]int{
		models.ParamInstanceCount: c.instances,
		models.ParamMaxBatchSize:  1 << c.batchExp,
	}
	model := g.models[g.modelIdx].Name
	v := Variant{Name: g.namer.name(model, params), Parameters: params}
	return v.RunConfig(model, 1<<c.concurrency)
}

// Next implements Generator
func (g *QuickGenerator) Next() (models.RunConfig, bool, error) {
	if err := g.checkNext(); err != nil {
		return models.RunConfig{}, false, err
	}
	for g.modelIdx < len(g.models) {
		switch g.stage {
		case stageDefault, stageStart:
			g.propose()
			if g.stage == stageDefault {
				return DefaultVariant(g.models[g.modelIdx].Name).RunConfig(g.models[g.modelIdx].Name, 1<<g.minConc), true, nil
			}
			g.visited[g.current] = true
			return g.runConfig(g.current), true, nil

		case stageNeighbors:
			if g.neighborIdx < len(g.neighbors) {
				c := g.neighbors[g.neighborIdx]
				g.visited[c] = true
				g.propose()
				return g.runConfig(c), true, nil
			}
			if !g.climb() {
				g.modelIdx++
				g.resetModel()
			}
		}
	}
	return models.RunConfig{}, false, nil
}

// climb moves to the best measured neighbor. It reports false once the search for
// the current model is over.
func (g *QuickGenerator) climb() bool {
	model := g.models[g.modelIdx].Name
	bestIdx := -1
	for i, m := range g.neighborM {
		if m == nil {
			continue
		}
		if bestIdx < 0 || g.improves(m, g.neighborM[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx < 0 || !g.improves(g.neighborM[bestIdx], g.currentM) {
		g.log.Info("quick search converged", "model", model, "steps", g.steps)
		return false
	}
	g.current = g.neighbors[bestIdx]
	g.currentM = g.neighborM[bestIdx]
	g.steps++
	if g.steps >= g.search.MaxSteps {
		g.log.Info("quick search reached max steps", "model", model, "steps", g.steps)
		return false
	}
	g.loadNeighbors()
	return true
}

// improves reports whether candidate is better than incumbent, preferring passing measurements
func (g *QuickGenerator) improves(candidate, incumbent *models.Measurement) bool {
	if candidate == nil {
		return false
	}
	if incumbent == nil {
		return true
	}
	cp, ip := g.cmp.Passes(candidate), g.cmp.Passes(incumbent)
	if cp != ip {
		return cp
	}
	return g.cmp.Compare(candidate, incumbent) > 0
}

func (g *QuickGenerator) loadNeighbors() {
	c := g.current
	candidates := []coordinate{
		{c.instances + 1, c.batchExp, c.concurrency},
		{c.instances - 1, c.batchExp, c.concurrency},
		{c.instances, c.batchExp + 1, c.concurrency},
		{c.instances, c.batchExp - 1, c.concurrency},
		{c.instances, c.batchExp, c.concurrency + 1},
		{c.instances, c.batchExp, c.concurrency - 1},
	}
	g.neighbors, g.neighborM, g.neighborIdx = nil, nil, 0
	for _, n := range candidates {
		if n.instances < 1 || n.instances > g.search.MaxInstanceCount {
			continue
		}
		if n.batchExp < g.minBatch || n.batchExp > g.maxBatch {
			continue
		}
		if n.concurrency < g.minConc || n.concurrency > g.maxConc {
			continue
		}
		if g.visited[n] {
			continue
		}
		g.neighbors = append(g.neighbors, n)
	}
}

// Feed implements Generator
func (g *QuickGenerator) Feed(measurements []*models.Measurement) error {
	if err := g.checkFeed(measurements); err != nil {
		return err
	}
	m := models.Representative(measurements)
	switch g.stage {
	case stageDefault:
		g.stage = stageStart
	case stageStart:
		g.currentM = m
		g.stage = stageNeighbors
		g.loadNeighbors()
	case stageNeighbors:
		g.neighborM = append(g.neighborM, m)
		g.neighborIdx++
	}
	return nil
}
