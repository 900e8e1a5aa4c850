// Package evoagent is a population-based genetic algorithm for evolving
// autonomous agent configurations: prompts, tool sets, decision strategies,
// model choice, control-flow shape, and numeric hyperparameters, scored
// against a fixed task suite by a multi-metric fitness evaluator.
//
// Key Components:
//
//   - Genome: the evolvable representation. Seven typed gene kinds behind one
//     closed Gene interface, aggregated into Chromosomes keyed by innovation
//     number, with an InnovationTracker assigning stable historical markers
//     per run.
//
//   - Operators: pluggable genetic operators:
//     * Selection: Tournament, RouletteWheel, RankBased, and NSGA-II over the
//     six raw fitness metrics
//     * Crossover: SinglePoint, Uniform, NEAT-style innovation alignment, and
//     an LLM-assisted semantic merge with a deterministic fallback
//     * Mutation: Standard, diversity-driven Adaptive, and an LLM-assisted
//     semantic rewrite with a deterministic fallback
//
//   - Speciation: compatibility-distance clustering with carried-forward
//     representatives, stagnation-driven extinction, and an adaptive
//     threshold that tracks a target species count.
//
//   - Evaluation: bounded-concurrency fitness scoring against the task
//     suite, aggregating completion, quality, efficiency, novelty,
//     contribution, and consistency into a weighted overall fitness, with a
//     content-keyed cache so identical gene content is evaluated once.
//
//   - Novelty and Hivemind: a bounded behavior-descriptor archive rewarding
//     behavioral diversity, and a shared knowledge store (in-memory or
//     SQLite) redistributing lessons across generations.
//
//   - Evolution: the generational engine and its two extensions, the island
//     coordinator for parallel populations with periodic migration and the
//     distributed evaluator dispatching work items to stateless workers over
//     a request/response transport.
//
// Example usage:
//
//	evaluator, err := evaluation.NewEvaluator(evaluation.DefaultConfig(), executor, tasks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine, err := evolution.NewEngine(evolution.DefaultConfig(), genome.DefaultDomain(), evaluator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := engine.Evolve(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("best fitness %.3f after %d generations\n",
//	    result.Best.Fitness.Overall, result.FinalGeneration)
//
// The engine never invokes models or executes agents itself: callers supply
// a core.AgentExecutor, and the optional LLM behind the semantic operators,
// the quality judge, and knowledge extraction always degrades to a
// deterministic fallback when unavailable.
package evoagent
