// Package evolution runs the generational loop over agent-configuration
// chromosomes: evaluate, select and reproduce, speciate, cull, repeat. It
// also provides the island coordinator and the distributed evaluation
// dispatcher/worker pair built on pkg/messaging.
package evolution

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
	"github.com/XiaoConstantine/evoagent-go/pkg/operators"
	"github.com/XiaoConstantine/evoagent-go/pkg/speciation"
)

// DrainPolicy controls what happens to in-flight evaluations when the run is
// canceled mid-generation.
type DrainPolicy string

const (
	// DrainWait lets started evaluations finish before returning.
	DrainWait DrainPolicy = "wait"
	// DrainAbandon cancels started evaluations; their chromosomes stay
	// unevaluated and sit out that generation's selection.
	DrainAbandon DrainPolicy = "abandon"
)

// State names the engine's current phase.
type State string

const (
	StateInitializing State = "initializing"
	StateEvaluating   State = "evaluating"
	StateReproducing  State = "selecting_reproducing"
	StateSpeciating   State = "speciating"
	StateCulling      State = "culling"
	StateTerminated   State = "terminated"
)

// TerminationReason records which condition ended a run.
type TerminationReason string

const (
	ReasonMaxGenerations TerminationReason = "max_generations"
	ReasonTargetFitness  TerminationReason = "target_fitness"
	ReasonStagnation     TerminationReason = "stagnation"
	ReasonCanceled       TerminationReason = "canceled"
)

// Config tunes one engine run.
type Config struct {
	PopulationSize int `yaml:"population_size" validate:"min=2"`
	// EliteCount top chromosomes are copied unchanged into the next
	// generation and skip re-evaluation.
	EliteCount     int `yaml:"elite_count" validate:"gte=0"`
	MaxGenerations int `yaml:"max_generations" validate:"min=1"`
	// TargetFitness stops the run early when the best overall score reaches
	// it. Zero disables the check.
	TargetFitness float64 `yaml:"target_fitness" validate:"gte=0"`
	// StagnationGenerations stops the run after that many generations
	// without best-fitness improvement. Zero disables the check.
	StagnationGenerations int     `yaml:"stagnation_generations" validate:"gte=0"`
	CrossoverRate         float64 `yaml:"crossover_rate" validate:"gte=0,lte=1"`
	MutationRate          float64 `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	// MaxConcurrentEvaluations bounds the evaluation fan-out per generation.
	MaxConcurrentEvaluations int `yaml:"max_concurrent_evaluations" validate:"min=1"`
	// SelectWithinSpecies restricts parent selection to a single species per
	// offspring, picked in proportion to species size.
	SelectWithinSpecies bool        `yaml:"select_within_species"`
	DrainPolicy         DrainPolicy `yaml:"drain_policy" validate:"omitempty,oneof=wait abandon"`
	// Seed fixes the run's randomness; zero seeds from the clock.
	Seed       int64             `yaml:"seed"`
	Speciation speciation.Config `yaml:"speciation"`
}

// DefaultConfig returns run settings workable for the default domain.
func DefaultConfig() Config {
	return Config{
		PopulationSize:           50,
		EliteCount:               2,
		MaxGenerations:           20,
		StagnationGenerations:    10,
		CrossoverRate:            0.7,
		MutationRate:             0.3,
		MaxConcurrentEvaluations: 4,
		DrainPolicy:              DrainWait,
		Speciation:               speciation.DefaultConfig(),
	}
}

// GenerationStats is one history entry: the population's shape right after
// its evaluation phase.
type GenerationStats struct {
	Generation     int
	BestFitness    float64
	AverageFitness float64
	Diversity      float64
	Evaluated      int
	SpeciesCount   int
	Duration       time.Duration
}

// Result is what a run yields. Best is the fittest chromosome seen across
// all generations, nil only when nothing was ever evaluated.
type Result struct {
	Best            *genome.Chromosome
	FinalGeneration int
	History         []GenerationStats
	Terminated      TerminationReason
}

// Evaluator scores one chromosome. evaluation.Evaluator and the
// DistributedEvaluator both satisfy it.
type Evaluator interface {
	Evaluate(ctx context.Context, chrom *genome.Chromosome) (*genome.FitnessResult, error)
}

// Engine owns one population and drives it through the generational state
// machine. It is single-run: construct a fresh engine per Evolve call.
type Engine struct {
	cfg       Config
	domain    *genome.Domain
	tracker   *genome.InnovationTracker
	evaluator Evaluator
	selector  operators.Selector
	crossover operators.Crossover
	mutator   operators.Mutator
	manager   *speciation.Manager
	reporter  core.ProgressReporter
	rng       *rand.Rand

	population       []*genome.Chromosome
	best             *genome.Chromosome
	bestFitness      float64
	sinceImprovement int
	history          []GenerationStats
	generation       int
	state            State
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithSelector replaces the default tournament selector.
func WithSelector(s operators.Selector) Option {
	return func(e *Engine) { e.selector = s }
}

// WithCrossover replaces the default innovation-aligned crossover.
func WithCrossover(c operators.Crossover) Option {
	return func(e *Engine) { e.crossover = c }
}

// WithMutator replaces the default per-gene mutation.
func WithMutator(m operators.Mutator) Option {
	return func(e *Engine) { e.mutator = m }
}

// WithReporter wires an informational progress sink.
func WithReporter(r core.ProgressReporter) Option {
	return func(e *Engine) { e.reporter = r }
}

// NewEngine validates the configuration and assembles an engine. Invalid
// configuration fails here, before generation zero.
func NewEngine(cfg Config, domain *genome.Domain, evaluator Evaluator, opts ...Option) (*Engine, error) {
	if evaluator == nil {
		return nil, errors.New(errors.InvalidInput, "engine requires an evaluator")
	}
	if err := validateConfig(cfg, domain); err != nil {
		return nil, err
	}
	if cfg.DrainPolicy == "" {
		cfg.DrainPolicy = DrainWait
	}
	if cfg.Speciation == (speciation.Config{}) {
		cfg.Speciation = speciation.DefaultConfig()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:       cfg,
		domain:    domain,
		tracker:   genome.NewInnovationTracker(),
		evaluator: evaluator,
		selector:  operators.Tournament{K: 3},
		crossover: operators.NEAT{},
		mutator:   operators.StandardMutation{Rate: cfg.MutationRate},
		manager:   speciation.NewManager(cfg.Speciation),
		rng:       rand.New(rand.NewSource(seed)),
		state:     StateInitializing,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func validateConfig(cfg Config, domain *genome.Domain) error {
	if domain == nil || domainEmpty(domain) {
		return errors.New(errors.InvalidInput, "engine requires a domain that can produce genes")
	}
	if cfg.PopulationSize < 2 {
		return configError("population size must be at least 2", "population_size", cfg.PopulationSize)
	}
	if cfg.EliteCount < 0 || cfg.EliteCount >= cfg.PopulationSize {
		return configError("elite count must be in [0, population size)", "elite_count", cfg.EliteCount)
	}
	if cfg.MaxGenerations < 1 {
		return configError("max generations must be at least 1", "max_generations", cfg.MaxGenerations)
	}
	if cfg.TargetFitness < 0 {
		return configError("target fitness must be non-negative", "target_fitness", cfg.TargetFitness)
	}
	if cfg.StagnationGenerations < 0 {
		return configError("stagnation window must be non-negative", "stagnation_generations", cfg.StagnationGenerations)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return configError("crossover rate must be in [0,1]", "crossover_rate", cfg.CrossoverRate)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return configError("mutation rate must be in [0,1]", "mutation_rate", cfg.MutationRate)
	}
	if cfg.MaxConcurrentEvaluations < 1 {
		return configError("max concurrent evaluations must be at least 1", "max_concurrent_evaluations", cfg.MaxConcurrentEvaluations)
	}
	if cfg.DrainPolicy != "" && cfg.DrainPolicy != DrainWait && cfg.DrainPolicy != DrainAbandon {
		return configError("drain policy must be wait or abandon", "drain_policy", string(cfg.DrainPolicy))
	}
	return nil
}

func configError(msg, field string, value interface{}) error {
	return errors.WithFields(
		errors.New(errors.ValidationFailed, msg),
		errors.Fields{field: value})
}

func domainEmpty(d *genome.Domain) bool {
	return len(d.PromptTemplates) == 0 &&
		len(d.ToolNames) == 0 &&
		len(d.Strategies) == 0 &&
		len(d.Models) == 0 &&
		len(d.StateLabels) == 0 &&
		len(d.NumericSpecs) == 0
}

// State reports the engine's current phase.
func (e *Engine) State() State { return e.state }

// Generation reports how many generations have completed.
func (e *Engine) Generation() int { return e.generation }

// Population returns the current population. Callers must not mutate it.
func (e *Engine) Population() []*genome.Chromosome { return e.population }

// Best returns the fittest chromosome seen so far, nil before the first
// evaluation.
func (e *Engine) Best() *genome.Chromosome { return e.best }

// Evolve runs the full generational loop. It always returns a Result once at
// least one generation completed; cancellation before that point is the only
// non-configuration error path.
func (e *Engine) Evolve(ctx context.Context) (*Result, error) {
	if err := errors.CheckContext(ctx, "evolve"); err != nil {
		return nil, err
	}

	logging.GetLogger().Info(ctx, "starting evolution: population %d, up to %d generations",
		e.cfg.PopulationSize, e.cfg.MaxGenerations)
	e.initialize(ctx)

	for {
		reason := e.runGeneration(ctx)
		if reason == ReasonCanceled && len(e.history) == 0 {
			e.setState(ctx, StateTerminated)
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "evolution canceled before completing a generation")
		}
		if reason != "" {
			return e.finish(ctx, reason), nil
		}
	}
}

func (e *Engine) initialize(ctx context.Context) {
	e.setState(ctx, StateInitializing)
	e.population = make([]*genome.Chromosome, 0, e.cfg.PopulationSize)
	for i := 0; i < e.cfg.PopulationSize; i++ {
		e.population = append(e.population, genome.NewRandomChromosome(e.rng, e.tracker, e.domain, 0))
	}
}

// runGeneration drives one full cycle and returns the termination reason, or
// empty to continue.
func (e *Engine) runGeneration(ctx context.Context) TerminationReason {
	start := time.Now()

	e.setState(ctx, StateEvaluating)
	evaluated := e.evaluatePopulation(ctx)
	improved := e.updateBest()
	if ctx.Err() != nil {
		return ReasonCanceled
	}

	if improved {
		e.sinceImprovement = 0
	} else {
		e.sinceImprovement++
	}
	stats := e.recordGeneration(ctx, evaluated, time.Since(start))

	if reason := e.checkTermination(stats); reason != "" {
		return reason
	}

	e.reproduce(ctx)
	if ctx.Err() != nil {
		return ReasonCanceled
	}
	return ""
}

// evaluatePopulation fills in fitness for every chromosome lacking one,
// bounded by MaxConcurrentEvaluations. Failed evaluations leave the
// chromosome unevaluated; it sits out selection this generation.
func (e *Engine) evaluatePopulation(ctx context.Context) int {
	var candidates []*genome.Chromosome
	for _, c := range e.population {
		if c.Fitness == nil {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return 0
	}

	evalCtx := ctx
	if e.cfg.DrainPolicy == DrainWait {
		// Started evaluations run to completion even if the run is canceled.
		evalCtx = context.WithoutCancel(ctx)
	}

	p := pool.New().WithMaxGoroutines(e.cfg.MaxConcurrentEvaluations)
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		p.Go(func() {
			fitness, err := e.evaluator.Evaluate(evalCtx, c)
			if err != nil {
				if errors.CodeOf(err) == errors.Canceled {
					logging.GetLogger().Debug(ctx, "evaluation of %s abandoned", c.ID)
				} else {
					logging.GetLogger().Warn(ctx, "evaluation of %s failed: %v", c.ID, err)
				}
				return
			}
			c.Fitness = fitness
		})
	}
	p.Wait()

	evaluated := 0
	for _, c := range candidates {
		if c.Fitness != nil {
			evaluated++
		}
	}
	if e.reporter != nil {
		e.reporter.Report("evaluating", evaluated, len(candidates))
	}
	return evaluated
}

// updateBest refreshes the all-time best from the current population and
// reports whether it improved.
func (e *Engine) updateBest() bool {
	var candidate *genome.Chromosome
	for _, c := range e.population {
		if c.Fitness == nil {
			continue
		}
		if candidate == nil || fitterOf(c, candidate) == c {
			candidate = c
		}
	}
	if candidate == nil {
		return false
	}
	if e.best == nil || candidate.Fitness.Overall > e.bestFitness {
		e.best = candidate.Clone()
		e.bestFitness = candidate.Fitness.Overall
		return true
	}
	return false
}

func (e *Engine) recordGeneration(ctx context.Context, evaluated int, duration time.Duration) GenerationStats {
	e.generation++

	bestGen, avg := 0.0, 0.0
	n := 0
	for _, c := range e.population {
		if c.Fitness == nil {
			continue
		}
		n++
		avg += c.Fitness.Overall
		if c.Fitness.Overall > bestGen {
			bestGen = c.Fitness.Overall
		}
	}
	if n > 0 {
		avg /= float64(n)
	}

	stats := GenerationStats{
		Generation:     e.generation,
		BestFitness:    bestGen,
		AverageFitness: avg,
		Diversity:      operators.PairwiseDiversity(e.population),
		Evaluated:      evaluated,
		SpeciesCount:   len(e.manager.Species()),
		Duration:       duration,
	}
	e.history = append(e.history, stats)

	logging.GetLogger().Info(ctx, "generation %d: best %.4f avg %.4f diversity %.4f evaluated %d species %d in %s",
		stats.Generation, stats.BestFitness, stats.AverageFitness, stats.Diversity,
		stats.Evaluated, stats.SpeciesCount, stats.Duration.Round(time.Millisecond))
	if e.reporter != nil {
		e.reporter.Report("generation", e.generation, e.cfg.MaxGenerations)
	}
	return stats
}

// checkTermination applies the first matching stop condition.
func (e *Engine) checkTermination(stats GenerationStats) TerminationReason {
	if e.generation >= e.cfg.MaxGenerations {
		return ReasonMaxGenerations
	}
	if e.cfg.TargetFitness > 0 && e.bestFitness >= e.cfg.TargetFitness {
		return ReasonTargetFitness
	}
	if e.cfg.StagnationGenerations > 0 && e.sinceImprovement >= e.cfg.StagnationGenerations {
		return ReasonStagnation
	}
	return ""
}

// reproduce builds the next population: elites carried unchanged, offspring
// bred from the evaluated members, then speciation and culling with backfill
// to restore the exact population size.
func (e *Engine) reproduce(ctx context.Context) {
	e.setState(ctx, StateReproducing)

	evaluated := evaluatedMembers(e.population)
	if len(evaluated) == 0 {
		// Nothing to select from; retry evaluation next generation.
		logging.GetLogger().Warn(ctx, "generation %d produced no evaluated chromosomes, population carried over", e.generation)
		return
	}

	if pa, ok := e.mutator.(operators.PopulationAware); ok {
		pa.ObservePopulation(e.population)
	}

	sorted := sortedByFitness(evaluated)
	next := make([]*genome.Chromosome, 0, e.cfg.PopulationSize)
	for i := 0; i < e.cfg.EliteCount && i < len(sorted); i++ {
		next = append(next, sorted[i].Clone())
	}
	for len(next) < e.cfg.PopulationSize {
		next = append(next, e.breedOne(ctx, evaluated))
	}

	e.setState(ctx, StateSpeciating)
	e.manager.Speciate(ctx, next)

	e.setState(ctx, StateCulling)
	survivors := e.manager.Cull(ctx, e.generation)
	for len(survivors) < e.cfg.PopulationSize {
		survivors = append(survivors, e.breedOne(ctx, evaluated))
	}
	e.population = survivors
}

// breedOne produces one offspring: two parents from the configured selector
// (optionally within one species), crossover with probability CrossoverRate
// or a clone of the fitter parent, then mutation.
func (e *Engine) breedOne(ctx context.Context, evaluated []*genome.Chromosome) *genome.Chromosome {
	candidates := evaluated
	if e.cfg.SelectWithinSpecies {
		if members := e.speciesPool(); len(members) > 0 {
			candidates = members
		}
	}

	parents := e.selector.Select(candidates, 2, e.rng)
	var p1, p2 *genome.Chromosome
	switch len(parents) {
	case 0:
		p1, p2 = candidates[0], candidates[0]
	case 1:
		p1, p2 = parents[0], parents[0]
	default:
		p1, p2 = parents[0], parents[1]
	}

	var child *genome.Chromosome
	if e.rng.Float64() < e.cfg.CrossoverRate && p1 != p2 {
		child = e.crossover.Cross(ctx, e.rng, p1, p2, e.generation)
	} else {
		child = fitterOf(p1, p2).CloneAsOffspring(e.generation)
	}

	e.mutator.Mutate(ctx, e.rng, child, e.domain)
	return child
}

// speciesPool picks one reproducible species in proportion to its evaluated
// member count and returns those members.
func (e *Engine) speciesPool() []*genome.Chromosome {
	species := e.manager.Reproducible()
	if len(species) == 0 {
		return nil
	}

	pools := make([][]*genome.Chromosome, 0, len(species))
	total := 0
	for _, s := range species {
		members := evaluatedMembers(s.Members)
		if len(members) == 0 {
			continue
		}
		pools = append(pools, members)
		total += len(members)
	}
	if total == 0 {
		return nil
	}

	pick := e.rng.Intn(total)
	for _, members := range pools {
		if pick < len(members) {
			return members
		}
		pick -= len(members)
	}
	return pools[len(pools)-1]
}

func (e *Engine) finish(ctx context.Context, reason TerminationReason) *Result {
	e.setState(ctx, StateTerminated)
	logging.GetLogger().Info(ctx, "evolution terminated after generation %d (%s), best fitness %.4f",
		e.generation, reason, e.bestFitness)
	return &Result{
		Best:            e.best,
		FinalGeneration: e.generation,
		History:         append([]GenerationStats(nil), e.history...),
		Terminated:      reason,
	}
}

func (e *Engine) setState(ctx context.Context, s State) {
	e.state = s
	logging.GetLogger().Debug(ctx, "engine state: %s", s)
}

func evaluatedMembers(pop []*genome.Chromosome) []*genome.Chromosome {
	out := make([]*genome.Chromosome, 0, len(pop))
	for _, c := range pop {
		if c.Fitness != nil {
			out = append(out, c)
		}
	}
	return out
}

// sortedByFitness orders by overall fitness descending, ties by lowest ID.
func sortedByFitness(pop []*genome.Chromosome) []*genome.Chromosome {
	out := append([]*genome.Chromosome(nil), pop...)
	sort.Slice(out, func(i, j int) bool {
		return fitterOf(out[i], out[j]) == out[i]
	})
	return out
}

// fitterOf returns the chromosome with higher overall fitness, ties broken
// by lowest ID for determinism.
func fitterOf(a, b *genome.Chromosome) *genome.Chromosome {
	fa, fb := genome.OverallOf(a), genome.OverallOf(b)
	if fa > fb {
		return a
	}
	if fb > fa {
		return b
	}
	if a.ID <= b.ID {
		return a
	}
	return b
}
