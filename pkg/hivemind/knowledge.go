// Package hivemind is the shared knowledge store: learnings extracted from
// evaluated chromosomes, deduplicated by similarity, redistributed across
// generations through relevance queries.
package hivemind

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

// KnowledgeItem is one stored learning.
type KnowledgeItem struct {
	ID                 string
	SourceChromosomeID string
	Generation         int
	Content            string
	Tags               []string
	NoveltyScore       float64
	// ReferenceCount starts at 1 and grows each time a near-duplicate is
	// folded into this item.
	ReferenceCount int
	CreatedAt      time.Time
}

// Store is the knowledge persistence contract shared by the in-memory and
// SQLite implementations. All methods are safe for concurrent use.
type Store interface {
	// StoreIfNovel admits the item only when its similarity to every stored
	// item stays below 1 - threshold. A near-duplicate instead increments
	// ReferenceCount on the closest match. The whole decision is one atomic
	// step.
	StoreIfNovel(ctx context.Context, item KnowledgeItem, threshold float64) (bool, error)

	// GetRelevantKnowledge returns up to maxResults items ranked by tag and
	// configuration overlap with the chromosome.
	GetRelevantKnowledge(ctx context.Context, chrom *genome.Chromosome, maxResults int) ([]KnowledgeItem, error)

	// Len reports the stored item count.
	Len(ctx context.Context) (int, error)

	Close() error
}

var foldCaser = cases.Fold()

// Similarity reports how close two items are in [0,1], blending case-folded
// content token overlap with tag overlap. Untagged pairs compare by content
// alone.
func Similarity(a, b KnowledgeItem) float64 {
	content := jaccard(foldTokens(a.Content), foldTokens(b.Content))
	if len(a.Tags) == 0 && len(b.Tags) == 0 {
		return content
	}
	tags := jaccard(stringSet(a.Tags), stringSet(b.Tags))
	return 0.7*content + 0.3*tags
}

// TagsFor derives the lookup tags of a chromosome from its configuration
// genes. Tags are sorted and deduplicated.
func TagsFor(c *genome.Chromosome) []string {
	seen := make(map[string]struct{})
	for _, g := range c.Genes() {
		switch gene := g.(type) {
		case *genome.StrategyGene:
			seen["strategy:"+gene.Strategy] = struct{}{}
		case *genome.ToolConfigGene:
			for _, tool := range gene.Tools {
				seen["tool:"+tool] = struct{}{}
			}
		case *genome.ModelGene:
			seen["model:"+string(gene.Model)] = struct{}{}
		case *genome.BehaviorTreeGene:
			seen["control:behavior_tree"] = struct{}{}
		case *genome.StateMachineGene:
			seen["control:state_machine"] = struct{}{}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// queryFor condenses a chromosome into a pseudo-item for relevance ranking.
func queryFor(c *genome.Chromosome) KnowledgeItem {
	var content strings.Builder
	for _, g := range c.Genes() {
		content.WriteString(g.Content())
		content.WriteByte('\n')
	}
	return KnowledgeItem{Content: content.String(), Tags: TagsFor(c)}
}

// rankByRelevance sorts items by similarity to the query descending, ties by
// higher ReferenceCount then lexical ID, and truncates to maxResults.
func rankByRelevance(items []KnowledgeItem, query KnowledgeItem, maxResults int) []KnowledgeItem {
	if maxResults <= 0 || len(items) == 0 {
		return nil
	}

	type scored struct {
		item KnowledgeItem
		sim  float64
	}
	ranked := make([]scored, len(items))
	for i, it := range items {
		ranked[i] = scored{item: it, sim: Similarity(query, it)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		if ranked[i].item.ReferenceCount != ranked[j].item.ReferenceCount {
			return ranked[i].item.ReferenceCount > ranked[j].item.ReferenceCount
		}
		return ranked[i].item.ID < ranked[j].item.ID
	})

	if maxResults > len(ranked) {
		maxResults = len(ranked)
	}
	out := make([]KnowledgeItem, maxResults)
	for i := 0; i < maxResults; i++ {
		out[i] = ranked[i].item
		out[i].Tags = append([]string(nil), ranked[i].item.Tags...)
	}
	return out
}

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

func stringSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
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
