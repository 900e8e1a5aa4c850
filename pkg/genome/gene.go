// Package genome defines the evolvable representation of an agent
// configuration: typed genes keyed by innovation number, aggregated into
// chromosomes, scored by multi-metric fitness results.
package genome

import (
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// GeneKind identifies one of the closed set of gene variants. Dispatch is
// always by kind or type switch, never reflection.
type GeneKind string

const (
	KindPrompt       GeneKind = "prompt"
	KindToolConfig   GeneKind = "tool_config"
	KindStrategy     GeneKind = "strategy"
	KindModel        GeneKind = "model"
	KindBehaviorTree GeneKind = "behavior_tree"
	KindStateMachine GeneKind = "state_machine"
	KindNumeric      GeneKind = "numeric"
)

// Gene is one evolvable configuration fragment. Implementations form a
// closed set, one per GeneKind.
//
// InnovationNumber is the historical marker used for structural alignment:
// it identifies the gene's slot, survives cloning and value mutation, and is
// assigned only by an InnovationTracker at gene creation.
type Gene interface {
	Kind() GeneKind

	InnovationNumber() int64

	// Signature returns the structural signature the innovation number was
	// assigned under. Equal signatures within one tracker scope yield equal
	// innovation numbers.
	Signature() string

	// Clone returns a deep copy carrying the same innovation number.
	Clone() Gene

	// Mutate perturbs the gene's payload in place, drawing replacement
	// values from the domain. The innovation number never changes.
	Mutate(rng *rand.Rand, domain *Domain)

	// DistanceTo reports dissimilarity to another gene in [0,1]. It is
	// symmetric; genes of different kinds are maximally distant.
	DistanceTo(other Gene) float64

	// Content returns a canonical string encoding of the payload, used for
	// content digests and knowledge extraction.
	Content() string
}

var foldCaser = cases.Fold()

// foldTokens splits s into a case-folded token set.
func foldTokens(s string) map[string]struct{} {
	folded := foldCaser.String(s)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// jaccard reports set overlap in [0,1]. Two empty sets are identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
