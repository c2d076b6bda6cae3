package generate

import (
	"fmt"
	"log/slog"

	"github.com/GoSim-25-26J-441/serving-profiler/internal/results"
	"github.com/GoSim-25-26J-441/serving-profiler/internal/search"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/config"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/logger"
	"github.com/GoSim-25-26J-441/serving-profiler/pkg/models"
)

// State is a phase of the orchestrator
type State int

const (
	// StateExploration delegates to the brute or quick generator
	StateExploration State = iota
	// StateRefinement runs a concurrency search per top result
	StateRefinement
	// StateDone means no proposals remain
	StateDone
)

func (s State) String() string {
	switch s {
	case StateExploration:
		return "exploration"
	case StateRefinement:
		return "refinement"
	default:
		return "done"
	}
}

// TopNSelector provides the best results measured so far
type TopNSelector interface {
	ModelNames() []string
	TopN(model string, n int, includeDefault bool) []results.Result
}

// Options configures an Orchestrator
type Options struct {
	// Params configures every refinement search
	Params search.Params
	// NumConfigsPerModel is how many top results of each model are refined
	NumConfigsPerModel int
	// Automatic enables the refinement phase
	Automatic bool
}

// Orchestrator runs an exploration generator to exhaustion and then, in automatic
// search mode, refines the concurrency of each model's top results.
// It is not safe for concurrent use.
type Orchestrator struct {
	lockstep
	explorer Generator
	selector TopNSelector
	cmp      search.Comparator
	opts     Options
	log      *slog.Logger

	state    State
	proposal State // state that produced the outstanding proposal

	models   []string
	modelIdx int
	seeds    []results.Result
	seedIdx  int
	seed     models.RunConfig
	search   *search.ConcurrencySearch
	skipped  int
}

// NewOrchestrator creates an orchestrator around an exploration generator
func NewOrchestrator(explorer Generator, selector TopNSelector, cmp search.Comparator, opts Options) (*Orchestrator, error) {
	if explorer == nil {
		return nil, fmt.Errorf("exploration generator is required")
	}
	if opts.Automatic {
		if selector == nil {
			return nil, fmt.Errorf("top-n selector is required in automatic mode")
		}
		if cmp == nil {
			return nil, fmt.Errorf("comparator is required in automatic mode")
		}
		if err := opts.Params.Validate(); err != nil {
			return nil, err
		}
		if opts.NumConfigsPerModel <= 0 {
			return nil, fmt.Errorf("num configs per model must be positive, got %d", opts.NumConfigsPerModel)
		}
	}
	return &Orchestrator{
		explorer: explorer,
		selector: selector,
		cmp:      cmp,
		opts:     opts,
		log:      logger.Component("orchestrator"),
		modelIdx: -1,
	}, nil
}

// New builds the orchestrator for a profile: a brute or quick explorer followed by
// refinement when no model pins its model config parameters
func New(profile *config.Profile, cmp search.Comparator, selector TopNSelector) (*Orchestrator, error) {
	if profile == nil {
		return nil, fmt.Errorf("profile is nil")
	}
	var explorer Generator
	switch profile.Search.Mode {
	case config.SearchModeQuick:
		explorer = NewQuickGenerator(profile, cmp)
	case config.SearchModeBrute, "":
		explorer = NewBruteGenerator(profile, cmp)
	default:
		return nil, fmt.Errorf("unknown search mode: %s", profile.Search.Mode)
	}
	return NewOrchestrator(explorer, selector, cmp, Options{
		Params:             search.ParamsFromConfig(profile.Search),
		NumConfigsPerModel: profile.Search.NumConfigsPerModel,
		Automatic:          profile.IsAutomaticSearch(),
	})
}

// State returns the current phase
func (o *Orchestrator) State() State {
	return o.state
}

// ProposalState returns the phase of the most recent proposal
func (o *Orchestrator) ProposalState() State {
	return o.proposal
}

// Skipped returns how many unmeasurable refinement proposals were skipped
func (o *Orchestrator) Skipped() int {
	return o.skipped
}

// Next returns the next run config to measure; ok is false once both phases are exhausted
func (o *Orchestrator) Next() (models.RunConfig, bool, error) {
	if err := o.checkNext(); err != nil {
		return models.RunConfig{}, false, err
	}
	for {
		switch o.state {
		case StateExploration:
			rc, ok, err := o.explorer.Next()
			if err != nil {
				return models.RunConfig{}, false, o.fail(fmt.Errorf("exploration: %w", err))
			}
			if ok {
				o.proposal = StateExploration
				o.propose()
				return rc, true, nil
			}
			o.log.Info("exploration finished", "automatic", o.opts.Automatic)
			if !o.opts.Automatic {
				o.state = StateDone
				continue
			}
			o.models = o.selector.ModelNames()
			o.state = StateRefinement

		case StateRefinement:
			if o.search == nil {
				started, err := o.nextSeed()
				if err != nil {
					return models.RunConfig{}, false, o.fail(err)
				}
				if !started {
					o.log.Info("refinement finished", "skipped", o.skipped)
					o.state = StateDone
					continue
				}
			}
			c, ok, err := o.search.Next()
			if err != nil {
				return models.RunConfig{}, false, o.fail(fmt.Errorf("refinement: %w", err))
			}
			if !ok {
				o.search = nil
				continue
			}
			if c == search.SkipConcurrency {
				o.skipped++
				if err := o.search.AddMeasurement(nil); err != nil {
					return models.RunConfig{}, false, o.fail(err)
				}
				continue
			}
			o.proposal = StateRefinement
			o.propose()
			return o.seed.WithConcurrency(c), true, nil

		default:
			return models.RunConfig{}, false, nil
		}
	}
}

// nextSeed starts the concurrency search of the next top result
func (o *Orchestrator) nextSeed() (bool, error) {
	for o.seedIdx >= len(o.seeds) {
		o.modelIdx++
		if o.modelIdx >= len(o.models) {
			return false, nil
		}
		model := o.models[o.modelIdx]
		o.seeds = o.selector.TopN(model, o.opts.NumConfigsPerModel, true)
		o.seedIdx = 0
		o.log.Info("refining top results", "model", model, "seeds", len(o.seeds))
	}
	s, err := search.NewConcurrencySearch(o.opts.Params, o.cmp)
	if err != nil {
		return false, fmt.Errorf("refinement: %w", err)
	}
	o.seed = o.seeds[o.seedIdx].RunConfig.Clone()
	o.seedIdx++
	o.search = s
	o.log.Debug("starting concurrency search", "seed", o.seed.String())
	return true, nil
}

// Feed implements Generator. Only the last measurement of the batch drives refinement.
func (o *Orchestrator) Feed(measurements []*models.Measurement) error {
	if err := o.checkFeed(measurements); err != nil {
		return err
	}
	switch o.proposal {
	case StateExploration:
		if err := o.explorer.Feed(measurements); err != nil {
			return o.fail(fmt.Errorf("exploration: %w", err))
		}
	case StateRefinement:
		if err := o.search.AddMeasurement(models.Representative(measurements)); err != nil {
			return o.fail(fmt.Errorf("refinement: %w", err))
		}
	}
	return nil
}
