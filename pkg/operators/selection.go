// Package operators implements the pluggable genetic operators applied to
// chromosome populations each generation: parent selection, crossover, and
// mutation. Selection strategies rank by scalar fitness or Pareto dominance,
// crossover strategies recombine gene payloads aligned by innovation number,
// and mutation strategies perturb gene payloads in place. Semantic variants
// delegate text recombination to an LLM and fall back to their deterministic
// equivalents whenever the model is unavailable or unhelpful.
package operators

import (
	"math/rand"
	"sort"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

// Selector picks n parents from a population. Implementations may return the
// same chromosome for multiple slots; callers clone before modifying. The
// returned slice is empty when the population is empty.
type Selector interface {
	Name() string
	Select(pop []*genome.Chromosome, n int, rng *rand.Rand) []*genome.Chromosome
}

// Tournament selects each parent by sampling K distinct members and keeping
// the fittest, ties broken by lowest ID. K larger than the population degrades
// to a full tournament.
type Tournament struct {
	K int
}

func (t Tournament) Name() string { return "tournament" }

func (t Tournament) Select(pop []*genome.Chromosome, n int, rng *rand.Rand) []*genome.Chromosome {
	if len(pop) == 0 || n <= 0 {
		return nil
	}
	k := t.K
	if k < 1 {
		k = 1
	}
	if k > len(pop) {
		k = len(pop)
	}

	selected := make([]*genome.Chromosome, 0, n)
	for i := 0; i < n; i++ {
		best := pop[rng.Intn(len(pop))]
		if k > 1 {
			perm := rng.Perm(len(pop))
			best = pop[perm[0]]
			for _, idx := range perm[1:k] {
				if beats(pop[idx], best) {
					best = pop[idx]
				}
			}
		}
		selected = append(selected, best)
	}
	return selected
}

// beats reports whether a outranks b: higher overall fitness, or equal
// fitness with the lower ID.
func beats(a, b *genome.Chromosome) bool {
	fa, fb := genome.OverallOf(a), genome.OverallOf(b)
	if fa != fb {
		return fa > fb
	}
	return a.ID < b.ID
}

// RouletteWheel selects parents with probability proportional to fitness,
// shifted so every weight is non-negative. A flat wheel degrades to uniform
// random picks.
type RouletteWheel struct{}

func (RouletteWheel) Name() string { return "roulette_wheel" }

func (RouletteWheel) Select(pop []*genome.Chromosome, n int, rng *rand.Rand) []*genome.Chromosome {
	if len(pop) == 0 || n <= 0 {
		return nil
	}

	shift := 0.0
	for _, c := range pop {
		if f := genome.OverallOf(c); f < -shift {
			shift = -f
		}
	}

	weights := make([]float64, len(pop))
	total := 0.0
	for i, c := range pop {
		weights[i] = genome.OverallOf(c) + shift
		total += weights[i]
	}

	selected := make([]*genome.Chromosome, 0, n)
	for i := 0; i < n; i++ {
		if total <= 0 {
			selected = append(selected, pop[rng.Intn(len(pop))])
			continue
		}
		spin := rng.Float64() * total
		cumulative := 0.0
		pick := pop[len(pop)-1]
		for j, w := range weights {
			cumulative += w
			if spin < cumulative {
				pick = pop[j]
				break
			}
		}
		selected = append(selected, pick)
	}
	return selected
}

// RankBased selects parents by linear ranking so that selection pressure
// depends on fitness order, not magnitude. Pressure is clamped into [1,2]:
// 1 is uniform, 2 gives the best member twice the average share and the
// worst none.
type RankBased struct {
	Pressure float64
}

func (RankBased) Name() string { return "rank_based" }

func (r RankBased) Select(pop []*genome.Chromosome, n int, rng *rand.Rand) []*genome.Chromosome {
	if len(pop) == 0 || n <= 0 {
		return nil
	}
	if len(pop) == 1 {
		selected := make([]*genome.Chromosome, n)
		for i := range selected {
			selected[i] = pop[0]
		}
		return selected
	}

	pressure := r.Pressure
	if pressure < 1 {
		pressure = 1
	}
	if pressure > 2 {
		pressure = 2
	}

	// Worst member gets rank 0, best rank N-1.
	ranked := make([]*genome.Chromosome, len(pop))
	copy(ranked, pop)
	sort.Slice(ranked, func(i, j int) bool { return beats(ranked[j], ranked[i]) })

	size := float64(len(ranked))
	weights := make([]float64, len(ranked))
	total := 0.0
	for i := range ranked {
		weights[i] = (2-pressure)/size + 2*float64(i)*(pressure-1)/(size*(size-1))
		total += weights[i]
	}

	selected := make([]*genome.Chromosome, 0, n)
	for i := 0; i < n; i++ {
		spin := rng.Float64() * total
		cumulative := 0.0
		pick := ranked[len(ranked)-1]
		for j, w := range weights {
			cumulative += w
			if spin < cumulative {
				pick = ranked[j]
				break
			}
		}
		selected = append(selected, pick)
	}
	return selected
}

// NSGA2 selects parents by Pareto front rank over the six raw fitness
// metrics, then by crowding distance within the boundary front. Whole fronts
// are taken in rank order while they fit; the front that crosses the quota is
// sorted by crowding distance descending and truncated.
type NSGA2 struct{}

func (NSGA2) Name() string { return "nsga2" }

func (NSGA2) Select(pop []*genome.Chromosome, n int, rng *rand.Rand) []*genome.Chromosome {
	if len(pop) == 0 || n <= 0 {
		return nil
	}

	ordered := paretoOrder(pop)

	selected := make([]*genome.Chromosome, 0, n)
	for len(selected) < n {
		remaining := n - len(selected)
		if remaining >= len(ordered) {
			selected = append(selected, ordered...)
			continue
		}
		selected = append(selected, ordered[:remaining]...)
	}
	return selected
}

// paretoOrder returns the population sorted by front rank ascending, then
// crowding distance descending, then ID.
func paretoOrder(pop []*genome.Chromosome) []*genome.Chromosome {
	fronts := paretoFronts(pop)

	ordered := make([]*genome.Chromosome, 0, len(pop))
	for _, front := range fronts {
		crowding := crowdingDistances(front)
		sort.Slice(front, func(i, j int) bool {
			di, dj := crowding[front[i].ID], crowding[front[j].ID]
			if di != dj {
				return di > dj
			}
			return front[i].ID < front[j].ID
		})
		ordered = append(ordered, front...)
	}
	return ordered
}

// paretoFronts peels off successive non-dominated sets. Front 0 holds the
// members dominated by nobody, front 1 the members dominated only by front 0,
// and so on.
func paretoFronts(pop []*genome.Chromosome) [][]*genome.Chromosome {
	remaining := make([]*genome.Chromosome, len(pop))
	copy(remaining, pop)

	var fronts [][]*genome.Chromosome
	for len(remaining) > 0 {
		var front, rest []*genome.Chromosome
		for _, candidate := range remaining {
			dominated := false
			for _, other := range remaining {
				if other != candidate && dominates(other, candidate) {
					dominated = true
					break
				}
			}
			if dominated {
				rest = append(rest, candidate)
			} else {
				front = append(front, candidate)
			}
		}
		if len(front) == 0 {
			// Mutual domination cannot happen, but guard against stalls.
			front = rest
			rest = nil
		}
		fronts = append(fronts, front)
		remaining = rest
	}
	return fronts
}

// dominates reports whether a is at least as good as b on every metric and
// strictly better on at least one.
func dominates(a, b *genome.Chromosome) bool {
	av, bv := metricVector(a), metricVector(b)
	strictlyBetter := false
	for i := range av {
		if av[i] < bv[i] {
			return false
		}
		if av[i] > bv[i] {
			strictlyBetter = true
		}
	}
	return strictlyBetter
}

// crowdingDistances computes the NSGA-II crowding metric per chromosome ID.
// Boundary members of each objective get a large sentinel so they always beat
// interior members of the same front.
func crowdingDistances(front []*genome.Chromosome) map[string]float64 {
	const boundary = 1e9

	distances := make(map[string]float64, len(front))
	if len(front) <= 2 {
		for _, c := range front {
			distances[c.ID] = boundary
		}
		return distances
	}
	for _, c := range front {
		distances[c.ID] = 0
	}

	indices := make([]int, len(front))
	for objective := 0; objective < 6; objective++ {
		for i := range indices {
			indices[i] = i
		}
		sort.Slice(indices, func(i, j int) bool {
			return metricVector(front[indices[i]])[objective] < metricVector(front[indices[j]])[objective]
		})

		low := metricVector(front[indices[0]])[objective]
		high := metricVector(front[indices[len(indices)-1]])[objective]
		span := high - low
		if span <= 0 {
			// Flat objective, discriminates nobody.
			continue
		}
		distances[front[indices[0]].ID] = boundary
		distances[front[indices[len(indices)-1]].ID] = boundary
		for i := 1; i < len(indices)-1; i++ {
			id := front[indices[i]].ID
			if distances[id] >= boundary {
				continue
			}
			prev := metricVector(front[indices[i-1]])[objective]
			next := metricVector(front[indices[i+1]])[objective]
			distances[id] += (next - prev) / span
		}
	}
	return distances
}

// metricVector returns the six raw metrics, zeroed for unevaluated members.
func metricVector(c *genome.Chromosome) [6]float64 {
	if c == nil || c.Fitness == nil {
		return [6]float64{}
	}
	return c.Fitness.Vector()
}
