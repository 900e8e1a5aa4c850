package genome

import "time"

// FitnessResult holds the six evaluation metrics, each in [0,1], and the
// weighted overall score.
type FitnessResult struct {
	Completion   float64 `json:"completion"`
	Quality      float64 `json:"quality"`
	Efficiency   float64 `json:"efficiency"`
	Novelty      float64 `json:"novelty"`
	Contribution float64 `json:"contribution"`
	Consistency  float64 `json:"consistency"`

	Overall     float64   `json:"overall"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Weights scales each metric's share of the overall score. Weights are
// non-negative and need not sum to one.
type Weights struct {
	Completion   float64 `yaml:"completion" validate:"gte=0"`
	Quality      float64 `yaml:"quality" validate:"gte=0"`
	Efficiency   float64 `yaml:"efficiency" validate:"gte=0"`
	Novelty      float64 `yaml:"novelty" validate:"gte=0"`
	Contribution float64 `yaml:"contribution" validate:"gte=0"`
	Consistency  float64 `yaml:"consistency" validate:"gte=0"`
}

// DefaultWeights favors task completion and quality while keeping diversity
// pressure alive.
func DefaultWeights() Weights {
	return Weights{
		Completion:   0.30,
		Quality:      0.25,
		Efficiency:   0.15,
		Novelty:      0.10,
		Contribution: 0.10,
		Consistency:  0.10,
	}
}

// Score clamps every metric into [0,1] and recomputes Overall under the
// given weights.
func (r *FitnessResult) Score(w Weights) {
	r.Completion = clamp01(r.Completion)
	r.Quality = clamp01(r.Quality)
	r.Efficiency = clamp01(r.Efficiency)
	r.Novelty = clamp01(r.Novelty)
	r.Contribution = clamp01(r.Contribution)
	r.Consistency = clamp01(r.Consistency)

	r.Overall = w.Completion*r.Completion +
		w.Quality*r.Quality +
		w.Efficiency*r.Efficiency +
		w.Novelty*r.Novelty +
		w.Contribution*r.Contribution +
		w.Consistency*r.Consistency
}

// Vector returns the six raw metrics in declaration order, for
// multi-objective selection.
func (r *FitnessResult) Vector() [6]float64 {
	return [6]float64{
		r.Completion, r.Quality, r.Efficiency,
		r.Novelty, r.Contribution, r.Consistency,
	}
}

// OverallOf returns a chromosome's overall fitness, or zero when it has not
// been evaluated.
func OverallOf(c *Chromosome) float64 {
	if c == nil || c.Fitness == nil {
		return 0
	}
	return c.Fitness.Overall
}
