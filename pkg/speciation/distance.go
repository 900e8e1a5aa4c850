// Package speciation clusters a population into species by compatibility
// distance so that structural innovations compete within their own niche
// before competing globally. Species stagnate when their best fitness stops
// improving and go extinct past a configurable limit, and the compatibility
// threshold adapts each generation toward a target species count.
package speciation

import (
	"sort"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

// Distance returns the compatibility distance between two chromosomes: the
// mean distance of genes aligned by innovation number, weighted by
// matchedWeight, plus the fraction of one-sided genes weighted by
// disjointWeight. It is symmetric and bounded by matchedWeight+disjointWeight.
func Distance(a, b *genome.Chromosome, matchedWeight, disjointWeight float64) float64 {
	innovations := a.InnovationNumbers()
	seen := make(map[int64]struct{}, len(innovations))
	for _, n := range innovations {
		seen[n] = struct{}{}
	}
	for _, n := range b.InnovationNumbers() {
		if _, ok := seen[n]; !ok {
			innovations = append(innovations, n)
			seen[n] = struct{}{}
		}
	}
	if len(innovations) == 0 {
		return 0
	}
	// Summation order must not depend on argument order.
	sort.Slice(innovations, func(i, j int) bool { return innovations[i] < innovations[j] })

	alignedSum := 0.0
	aligned := 0
	disjoint := 0
	for _, n := range innovations {
		ga, okA := a.Gene(n)
		gb, okB := b.Gene(n)
		if okA && okB {
			alignedSum += ga.DistanceTo(gb)
			aligned++
		} else {
			disjoint++
		}
	}

	d := disjointWeight * float64(disjoint) / float64(len(innovations))
	if aligned > 0 {
		d += matchedWeight * alignedSum / float64(aligned)
	}
	return d
}
