package genome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreComputesWeightedSum(t *testing.T) {
	r := &FitnessResult{
		Completion:   1.0,
		Quality:      0.8,
		Efficiency:   0.5,
		Novelty:      0.4,
		Contribution: 0.2,
		Consistency:  1.0,
	}

	w := Weights{
		Completion:   0.30,
		Quality:      0.25,
		Efficiency:   0.15,
		Novelty:      0.10,
		Contribution: 0.10,
		Consistency:  0.10,
	}
	r.Score(w)

	want := 0.30*1.0 + 0.25*0.8 + 0.15*0.5 + 0.10*0.4 + 0.10*0.2 + 0.10*1.0
	assert.InDelta(t, want, r.Overall, 1e-9)
}

func TestScoreClampsMetrics(t *testing.T) {
	r := &FitnessResult{
		Completion: 1.7,
		Quality:    -0.3,
	}
	r.Score(DefaultWeights())

	assert.Equal(t, 1.0, r.Completion)
	assert.Equal(t, 0.0, r.Quality)
}

func TestWeightsNeedNotSumToOne(t *testing.T) {
	r := &FitnessResult{Completion: 1.0, Quality: 1.0}
	r.Score(Weights{Completion: 2.0, Quality: 3.0})

	assert.InDelta(t, 5.0, r.Overall, 1e-9)
}

func TestVectorOrder(t *testing.T) {
	r := &FitnessResult{
		Completion:   0.1,
		Quality:      0.2,
		Efficiency:   0.3,
		Novelty:      0.4,
		Contribution: 0.5,
		Consistency:  0.6,
	}

	assert.Equal(t, [6]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, r.Vector())
}

func TestOverallOfNilSafe(t *testing.T) {
	assert.Equal(t, 0.0, OverallOf(nil))
	assert.Equal(t, 0.0, OverallOf(New(0)))

	c := New(0)
	c.Fitness = &FitnessResult{Overall: 0.42}
	assert.Equal(t, 0.42, OverallOf(c))
}
