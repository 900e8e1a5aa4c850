package hivemind

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
)

func reactChromosome(t *testing.T) *genome.Chromosome {
	t.Helper()
	tracker := genome.NewInnovationTracker()
	c := genome.New(0)
	require.NoError(t, c.AddGene(genome.NewPromptGene(tracker, "system", "Plan the approach, then execute it tool by tool.")))
	require.NoError(t, c.AddGene(genome.NewToolConfigGene(tracker, "toolset", []string{"web_search", "calculator"})))
	require.NoError(t, c.AddGene(genome.NewStrategyGene(tracker, "react")))
	require.NoError(t, c.AddGene(genome.NewModelGene(tracker, core.ModelAnthropicSonnet)))
	return c
}

func item(content string, tags ...string) KnowledgeItem {
	return KnowledgeItem{Content: content, Tags: tags}
}

func TestSimilarityIdenticalItems(t *testing.T) {
	a := item("react agents benefit from explicit verification steps", "strategy:react")

	assert.Equal(t, 1.0, Similarity(a, a))
}

func TestSimilarityDisjointItems(t *testing.T) {
	a := item("always verify arithmetic", "strategy:react")
	b := item("prefer shorter prompts", "strategy:plan_execute")

	assert.Zero(t, Similarity(a, b))
}

func TestSimilarityIgnoresCase(t *testing.T) {
	a := item("Verify Arithmetic Before Answering")
	b := item("verify arithmetic before answering")

	assert.Equal(t, 1.0, Similarity(a, b))
}

func TestTagsForDerivesConfigurationTags(t *testing.T) {
	tags := TagsFor(reactChromosome(t))

	assert.Contains(t, tags, "strategy:react")
	assert.Contains(t, tags, "tool:web_search")
	assert.Contains(t, tags, "tool:calculator")
	assert.Contains(t, tags, "model:"+string(core.ModelAnthropicSonnet))
	assert.IsIncreasing(t, tags)
}

func TestStoreIfNovelAdmitsDistinctKnowledge(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()

	admitted, err := store.StoreIfNovel(ctx, item("verify arithmetic with the calculator", "tool:calculator"), 0.3)
	require.NoError(t, err)
	assert.True(t, admitted)

	admitted, err = store.StoreIfNovel(ctx, item("search the web before answering factual questions", "tool:web_search"), 0.3)
	require.NoError(t, err)
	assert.True(t, admitted)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreIfNovelFoldsDuplicates(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()
	learning := item("verify arithmetic with the calculator", "tool:calculator")

	admitted, err := store.StoreIfNovel(ctx, learning, 0.3)
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = store.StoreIfNovel(ctx, learning, 0.3)
	require.NoError(t, err)
	assert.False(t, admitted, "an exact duplicate must fold, not duplicate")

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].ReferenceCount)
}

func TestStoreIfNovelIsAtomicUnderContention(t *testing.T) {
	store := NewMemoryStore(64)
	learning := item("verify arithmetic with the calculator", "tool:calculator")

	const writers = 12
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.StoreIfNovel(context.Background(), learning, 0.3)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, writers, items[0].ReferenceCount)
}

func TestEvictionDropsLeastReferencedOldestFirst(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	_, err := store.StoreIfNovel(ctx, item("verify arithmetic with the calculator", "tool:calculator"), 0.3)
	require.NoError(t, err)
	_, err = store.StoreIfNovel(ctx, item("search the web before answering factual questions", "tool:web_search"), 0.3)
	require.NoError(t, err)

	// Reinforce the first item so the second becomes the eviction victim.
	_, err = store.StoreIfNovel(ctx, item("verify arithmetic with the calculator", "tool:calculator"), 0.3)
	require.NoError(t, err)

	_, err = store.StoreIfNovel(ctx, item("plan the full approach before acting", "strategy:plan_execute"), 0.3)
	require.NoError(t, err)

	items := store.Items()
	require.Len(t, items, 2)
	contents := []string{items[0].Content, items[1].Content}
	assert.Contains(t, contents, "verify arithmetic with the calculator")
	assert.Contains(t, contents, "plan the full approach before acting")
}

func TestGetRelevantKnowledgeRanksByOverlap(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()
	chrom := reactChromosome(t)

	_, err := store.StoreIfNovel(ctx, item("react agents should interleave web_search and calculator calls",
		"strategy:react", "tool:web_search", "tool:calculator"), 0.3)
	require.NoError(t, err)
	_, err = store.StoreIfNovel(ctx, item("state machines benefit from an explicit reflect state",
		"control:state_machine"), 0.3)
	require.NoError(t, err)

	relevant, err := store.GetRelevantKnowledge(ctx, chrom, 1)
	require.NoError(t, err)
	require.Len(t, relevant, 1)
	assert.Contains(t, relevant[0].Tags, "strategy:react")
}

func TestGetRelevantKnowledgeEmptyStore(t *testing.T) {
	store := NewMemoryStore(16)

	relevant, err := store.GetRelevantKnowledge(context.Background(), reactChromosome(t), 5)
	require.NoError(t, err)
	assert.Empty(t, relevant)
}

func TestGetRelevantKnowledgeTruncatesToMaxResults(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()

	learnings := []KnowledgeItem{
		item("verify arithmetic with the calculator", "tool:calculator"),
		item("search the web before answering factual questions", "tool:web_search"),
		item("plan the full approach before acting", "strategy:plan_execute"),
	}
	for _, l := range learnings {
		_, err := store.StoreIfNovel(ctx, l, 0.3)
		require.NoError(t, err)
	}

	relevant, err := store.GetRelevantKnowledge(ctx, reactChromosome(t), 2)
	require.NoError(t, err)
	assert.Len(t, relevant, 2)
}
