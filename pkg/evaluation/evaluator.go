package evaluation

import (
	"context"
	"math"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/hivemind"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
	"github.com/XiaoConstantine/evoagent-go/pkg/novelty"
)

// Baseline is the reference cost of a competent run over one task. Agents
// cheaper than it score full efficiency.
type Baseline struct {
	Tokens   float64       `yaml:"tokens" validate:"gte=0"`
	Duration time.Duration `yaml:"duration" validate:"gte=0"`
	CostUSD  float64       `yaml:"cost_usd" validate:"gte=0"`
}

// DefaultBaseline assumes a mid-size model doing a few tool calls per task.
func DefaultBaseline() Baseline {
	return Baseline{
		Tokens:   4000,
		Duration: 30 * time.Second,
		CostUSD:  0.05,
	}
}

// Config tunes one evaluator.
type Config struct {
	// MaxConcurrentTasks bounds the per-chromosome task fan-out.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" validate:"min=1"`
	// TaskTimeout applies to tasks that do not carry their own.
	TaskTimeout time.Duration  `yaml:"task_timeout" validate:"min=0"`
	Weights     genome.Weights `yaml:"weights"`
	Baseline    Baseline       `yaml:"baseline"`
	// KnowledgeThreshold gates hive-mind admission in StoreIfNovel.
	KnowledgeThreshold float64 `yaml:"knowledge_threshold" validate:"gte=0,lte=1"`
	// MaxRelevant is how many knowledge items contribution scoring inspects.
	MaxRelevant int `yaml:"max_relevant" validate:"min=1"`
}

// DefaultConfig returns the evaluator settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks: 4,
		TaskTimeout:        30 * time.Second,
		Weights:            genome.DefaultWeights(),
		Baseline:           DefaultBaseline(),
		KnowledgeThreshold: 0.25,
		MaxRelevant:        5,
	}
}

// Evaluator scores chromosomes against the task suite.
type Evaluator struct {
	cfg      Config
	executor core.AgentExecutor
	tasks    []EvaluationTask

	judge     *QualityJudge
	archive   *novelty.Archive
	knowledge hivemind.Store
	extractor hivemind.Extractor
	cache     *FitnessCache
}

// Option configures optional evaluator collaborators.
type Option func(*Evaluator)

// WithJudgeLLM installs a model-backed quality judge.
func WithJudgeLLM(llm core.LLM) Option {
	return func(e *Evaluator) { e.judge = NewQualityJudge(llm) }
}

// WithArchive wires the novelty archive that feeds the Novelty metric.
func WithArchive(a *novelty.Archive) Option {
	return func(e *Evaluator) { e.archive = a }
}

// WithKnowledge wires the hive-mind store and extractor that feed the
// Contribution metric. A nil extractor falls back to the heuristic one.
func WithKnowledge(store hivemind.Store, extractor hivemind.Extractor) Option {
	return func(e *Evaluator) {
		e.knowledge = store
		e.extractor = extractor
	}
}

// WithCache wires the content-key fitness cache.
func WithCache(c *FitnessCache) Option {
	return func(e *Evaluator) { e.cache = c }
}

// NewEvaluator validates the configuration and assembles an evaluator.
func NewEvaluator(cfg Config, executor core.AgentExecutor, tasks []EvaluationTask, opts ...Option) (*Evaluator, error) {
	if executor == nil {
		return nil, errors.New(errors.InvalidInput, "evaluator requires an agent executor")
	}
	if len(tasks) == 0 {
		return nil, errors.New(errors.InvalidInput, "evaluator requires at least one task")
	}
	if cfg.MaxConcurrentTasks < 1 {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "max concurrent tasks must be at least 1"),
			errors.Fields{"max_concurrent_tasks": cfg.MaxConcurrentTasks})
	}
	if err := validateWeights(cfg.Weights); err != nil {
		return nil, err
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultConfig().TaskTimeout
	}
	if cfg.MaxRelevant < 1 {
		cfg.MaxRelevant = DefaultConfig().MaxRelevant
	}

	e := &Evaluator{cfg: cfg, executor: executor, tasks: tasks}
	for _, opt := range opts {
		opt(e)
	}
	if e.knowledge != nil && e.extractor == nil {
		e.extractor = hivemind.HeuristicExtractor{}
	}
	return e, nil
}

func validateWeights(w genome.Weights) error {
	for name, v := range map[string]float64{
		"completion":   w.Completion,
		"quality":      w.Quality,
		"efficiency":   w.Efficiency,
		"novelty":      w.Novelty,
		"contribution": w.Contribution,
		"consistency":  w.Consistency,
	} {
		if v < 0 {
			return errors.WithFields(
				errors.New(errors.ValidationFailed, "fitness weights must be non-negative"),
				errors.Fields{"weight": name, "value": v})
		}
	}
	return nil
}

type taskOutcome struct {
	task   EvaluationTask
	result *core.InvokeResult
	passed bool
	err    error
}

// Evaluate runs the whole task suite for one chromosome and aggregates the
// six metrics. Task failures and timeouts stay local to their task; only a
// canceled context aborts the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, chrom *genome.Chromosome) (*genome.FitnessResult, error) {
	if err := errors.CheckContext(ctx, "evaluate chromosome"); err != nil {
		return nil, err
	}

	key := chrom.ContentKey()
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			logging.GetLogger().Debug(ctx, "fitness cache hit for chromosome %s", chrom.ID)
			return cached, nil
		}
	}

	outcomes := e.runTasks(ctx, chrom.Blueprint())
	if err := errors.CheckContext(ctx, "evaluate chromosome"); err != nil {
		return nil, err
	}

	fitness := e.aggregate(ctx, chrom, outcomes)
	if e.cache != nil {
		e.cache.Put(key, fitness)
	}
	return fitness, nil
}

func (e *Evaluator) runTasks(ctx context.Context, bp core.AgentBlueprint) []taskOutcome {
	outcomes := make([]taskOutcome, len(e.tasks))

	p := pool.New().WithMaxGoroutines(e.cfg.MaxConcurrentTasks)
	for i, task := range e.tasks {
		p.Go(func() {
			outcomes[i] = e.runTask(ctx, bp, task)
		})
	}
	p.Wait()
	return outcomes
}

func (e *Evaluator) runTask(ctx context.Context, bp core.AgentBlueprint, task EvaluationTask) taskOutcome {
	timeout := task.Timeout
	if timeout <= 0 {
		timeout = e.cfg.TaskTimeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := e.executor.Invoke(taskCtx, bp, task.Input)
	if err != nil {
		logging.GetLogger().Debug(ctx, "task %s failed for %s: %v", task.ID, bp.ChromosomeID, err)
		return taskOutcome{task: task, err: err}
	}
	return taskOutcome{task: task, result: result, passed: task.Passes(result)}
}

func (e *Evaluator) aggregate(ctx context.Context, chrom *genome.Chromosome, outcomes []taskOutcome) *genome.FitnessResult {
	results := make([]*core.InvokeResult, len(outcomes))
	passScores := make([]float64, len(outcomes))
	passed := 0
	for i, o := range outcomes {
		results[i] = o.result
		if o.passed {
			passed++
			passScores[i] = 1
		}
	}

	fitness := &genome.FitnessResult{
		Completion:  float64(passed) / float64(len(outcomes)),
		Quality:     e.judge.Score(ctx, outcomes),
		Efficiency:  e.efficiency(results),
		Consistency: consistency(passScores),
		EvaluatedAt: time.Now(),
	}
	fitness.Novelty = e.noveltyScore(ctx, chrom, results)
	fitness.Contribution = e.contributionScore(ctx, chrom, results, fitness.Novelty)

	fitness.Score(e.cfg.Weights)
	return fitness
}

// efficiency compares mean per-task token, latency, and dollar cost against
// the baseline; cheaper-than-baseline saturates at 1.
func (e *Evaluator) efficiency(results []*core.InvokeResult) float64 {
	var tokens, cost float64
	var duration time.Duration
	n := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		n++
		if r.Usage != nil {
			tokens += float64(r.Usage.TotalTokens)
		}
		duration += r.Duration
		cost += r.CostUSD
	}
	if n == 0 {
		return 0
	}

	base := e.cfg.Baseline
	var ratios []float64
	if base.Tokens > 0 && tokens > 0 {
		ratios = append(ratios, clamp01(base.Tokens/(tokens/float64(n))))
	}
	if base.Duration > 0 && duration > 0 {
		ratios = append(ratios, clamp01(float64(base.Duration)/(float64(duration)/float64(n))))
	}
	if base.CostUSD > 0 && cost > 0 {
		ratios = append(ratios, clamp01(base.CostUSD/(cost/float64(n))))
	}
	if len(ratios) == 0 {
		// The executor reported no cost signal at all.
		return 0.5
	}

	sum := 0.0
	for _, r := range ratios {
		sum += r
	}
	return sum / float64(len(ratios))
}

// noveltyScore derives the behavior descriptor and scores it against the
// archive, admitting it when it clears the threshold. Without an archive the
// metric is neutral.
func (e *Evaluator) noveltyScore(ctx context.Context, chrom *genome.Chromosome, results []*core.InvokeResult) float64 {
	if e.archive == nil {
		return 0.5
	}
	descriptor := novelty.DeriveDescriptor(results)
	score, admitted := e.archive.ScoreAndAdmit(chrom.ID, chrom.Generation, descriptor)
	if admitted {
		logging.GetLogger().Debug(ctx, "behavior of %s admitted to novelty archive (score %.3f)", chrom.ID, score)
	}
	return score
}

// contributionScore measures what the chromosome gives the hive: the share
// of its extracted learnings admitted as new knowledge, blended with how
// much of the knowledge relevant to its niche its lineage sourced. A failing
// store degrades the metric to neutral instead of failing the evaluation.
func (e *Evaluator) contributionScore(ctx context.Context, chrom *genome.Chromosome, results []*core.InvokeResult, noveltyScore float64) float64 {
	if e.knowledge == nil {
		return 0.5
	}

	items, err := e.extractor.Extract(ctx, chrom, results)
	if err != nil {
		logging.GetLogger().Warn(ctx, "knowledge extraction failed for %s: %v", chrom.ID, err)
		items = nil
	}

	admitted := 0
	for i := range items {
		items[i].NoveltyScore = noveltyScore
		ok, err := e.knowledge.StoreIfNovel(ctx, items[i], e.cfg.KnowledgeThreshold)
		if err != nil {
			logging.GetLogger().Warn(ctx, "knowledge store unavailable, contribution neutral for %s: %v", chrom.ID, err)
			return 0.5
		}
		if ok {
			admitted++
		}
	}
	freshness := 0.0
	if len(items) > 0 {
		freshness = float64(admitted) / float64(len(items))
	}

	relevant, err := e.knowledge.GetRelevantKnowledge(ctx, chrom, e.cfg.MaxRelevant)
	if err != nil {
		logging.GetLogger().Warn(ctx, "knowledge lookup unavailable, contribution neutral for %s: %v", chrom.ID, err)
		return 0.5
	}
	if len(relevant) == 0 {
		return freshness
	}

	lineage := map[string]struct{}{chrom.ID: {}}
	for _, p := range chrom.ParentIDs {
		lineage[p] = struct{}{}
	}
	owned := 0
	for _, item := range relevant {
		if _, ok := lineage[item.SourceChromosomeID]; ok {
			owned++
		}
	}
	influence := float64(owned) / float64(len(relevant))

	return 0.5*freshness + 0.5*influence
}

// consistency is 1 minus the normalized dispersion of per-task pass scores;
// uniform outcomes (all passed or all failed) are maximally consistent.
func consistency(scores []float64) float64 {
	if len(scores) < 2 {
		return 1
	}
	mean := 0.0
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	// Stddev of a 0/1 score peaks at 0.5.
	return clamp01(1 - 2*math.Sqrt(variance))
}
