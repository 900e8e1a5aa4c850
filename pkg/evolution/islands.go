package evolution

import (
	"context"
	"math/rand"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
)

// IslandConfig tunes a multi-population run.
type IslandConfig struct {
	Islands int `yaml:"islands" validate:"min=1"`
	// MigrationInterval is the number of generations between migrations.
	MigrationInterval int `yaml:"migration_interval" validate:"min=1"`
	// MigrationCount chromosomes move out of each island per migration.
	MigrationCount int    `yaml:"migration_count" validate:"gte=0"`
	Engine         Config `yaml:"engine"`
}

// DefaultIslandConfig returns island settings workable for the default
// engine configuration.
func DefaultIslandConfig() IslandConfig {
	return IslandConfig{
		Islands:           4,
		MigrationInterval: 5,
		MigrationCount:    2,
		Engine:            DefaultConfig(),
	}
}

// IslandsResult aggregates a multi-population run. Best is the fittest
// chromosome across all islands.
type IslandsResult struct {
	Best       *genome.Chromosome
	Islands    []*Result
	Terminated TerminationReason
}

// IslandCoordinator runs isolated populations in lockstep and periodically
// migrates the fittest chromosomes between them. The run stops as soon as
// any island meets a termination condition. The evaluator is shared across
// islands and must be safe for concurrent use.
type IslandCoordinator struct {
	cfg     IslandConfig
	engines []*Engine
	rng     *rand.Rand
}

// NewIslandCoordinator assembles one engine per island. Each island derives
// its own seed from the configured one so runs stay reproducible while
// populations diverge.
func NewIslandCoordinator(cfg IslandConfig, domain *genome.Domain, evaluator Evaluator, opts ...Option) (*IslandCoordinator, error) {
	if cfg.Islands < 1 {
		return nil, configError("island count must be at least 1", "islands", cfg.Islands)
	}
	if cfg.MigrationInterval < 1 {
		return nil, configError("migration interval must be at least 1", "migration_interval", cfg.MigrationInterval)
	}
	if cfg.MigrationCount < 0 || cfg.MigrationCount >= cfg.Engine.PopulationSize {
		return nil, configError("migration count must be in [0, population size)", "migration_count", cfg.MigrationCount)
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engines := make([]*Engine, cfg.Islands)
	for i := range engines {
		engineCfg := cfg.Engine
		engineCfg.Seed = seed + int64(i)
		eng, err := NewEngine(engineCfg, domain, evaluator, opts...)
		if err != nil {
			return nil, err
		}
		engines[i] = eng
	}
	return &IslandCoordinator{
		cfg:     cfg,
		engines: engines,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// Evolve steps every island through one generation at a time, migrating
// between steps, until any island terminates.
func (ic *IslandCoordinator) Evolve(ctx context.Context) (*IslandsResult, error) {
	if err := errors.CheckContext(ctx, "evolve islands"); err != nil {
		return nil, err
	}

	logging.GetLogger().Info(ctx, "starting island evolution: %d islands of %d chromosomes",
		ic.cfg.Islands, ic.cfg.Engine.PopulationSize)
	for _, eng := range ic.engines {
		eng.initialize(ctx)
	}

	reasons := make([]TerminationReason, len(ic.engines))
	for gen := 1; ; gen++ {
		p := pool.New().WithMaxGoroutines(len(ic.engines))
		for i, eng := range ic.engines {
			p.Go(func() {
				reasons[i] = eng.runGeneration(ctx)
			})
		}
		p.Wait()

		stop := TerminationReason("")
		if ctx.Err() != nil {
			stop = ReasonCanceled
		} else {
			for _, r := range reasons {
				if r != "" {
					stop = r
					break
				}
			}
		}
		if stop != "" {
			return ic.finish(ctx, reasons, stop)
		}

		if ic.cfg.MigrationCount > 0 && len(ic.engines) > 1 && gen%ic.cfg.MigrationInterval == 0 {
			ic.migrate(ctx)
		}
	}
}

func (ic *IslandCoordinator) finish(ctx context.Context, reasons []TerminationReason, stop TerminationReason) (*IslandsResult, error) {
	if stop == ReasonCanceled {
		completed := 0
		for _, eng := range ic.engines {
			completed += len(eng.history)
		}
		if completed == 0 {
			for _, eng := range ic.engines {
				eng.setState(ctx, StateTerminated)
			}
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "island evolution canceled before completing a generation")
		}
	}

	out := &IslandsResult{
		Islands:    make([]*Result, len(ic.engines)),
		Terminated: stop,
	}
	for i, eng := range ic.engines {
		reason := reasons[i]
		if reason == "" {
			reason = stop
		}
		out.Islands[i] = eng.finish(ctx, reason)
		if eng.best != nil && (out.Best == nil || fitterOf(eng.best, out.Best) == eng.best) {
			out.Best = eng.best
		}
	}

	bestFitness := 0.0
	if out.Best != nil {
		bestFitness = out.Best.Fitness.Overall
	}
	logging.GetLogger().Info(ctx, "island evolution terminated (%s), best fitness %.4f", stop, bestFitness)
	return out, nil
}

// migrate copies each island's fittest chromosomes into one random other
// island, replacing that island's weakest members. Migrants keep their ID
// and lineage, so an island skips donors it already hosts.
func (ic *IslandCoordinator) migrate(ctx context.Context) {
	for i, eng := range ic.engines {
		donors := sortedByFitness(evaluatedMembers(eng.population))
		if len(donors) == 0 {
			continue
		}
		if len(donors) > ic.cfg.MigrationCount {
			donors = donors[:ic.cfg.MigrationCount]
		}

		target := ic.engines[ic.otherIsland(i)]
		moved := 0
		for _, donor := range donors {
			if hasChromosome(target.population, donor.ID) {
				continue
			}
			replaceWorst(target.population, donor.Clone())
			moved++
		}
		logging.GetLogger().Debug(ctx, "migrated %d chromosomes out of island %d", moved, i)
	}
}

func (ic *IslandCoordinator) otherIsland(i int) int {
	j := ic.rng.Intn(len(ic.engines) - 1)
	if j >= i {
		j++
	}
	return j
}

func hasChromosome(pop []*genome.Chromosome, id string) bool {
	for _, c := range pop {
		if c.ID == id {
			return true
		}
	}
	return false
}

// replaceWorst swaps the least fit member for the migrant. Unevaluated
// members rank below evaluated ones.
func replaceWorst(pop []*genome.Chromosome, migrant *genome.Chromosome) {
	worst := 0
	for k := 1; k < len(pop); k++ {
		if fitterOf(pop[k], pop[worst]) == pop[worst] {
			worst = k
		}
	}
	pop[worst] = migrant
}
