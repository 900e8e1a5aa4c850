package novelty

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

func TestDeriveDescriptorEmptyResults(t *testing.T) {
	d := DeriveDescriptor(nil)

	require.Len(t, d, DescriptorDimensions)
	for i, v := range d {
		assert.Zero(t, v, "dimension %d", i)
	}
}

func TestDeriveDescriptorAggregatesTraces(t *testing.T) {
	results := []*core.InvokeResult{
		{
			Success:  true,
			Usage:    &core.TokenInfo{TotalTokens: 2000},
			Duration: 30 * time.Second,
			Trace: &core.AgentTrace{
				Steps:     8,
				ToolCalls: []string{"search", "calculator"},
				States:    []string{"plan", "act", "plan"},
			},
		},
		{
			Success:  false,
			Duration: 10 * time.Second,
			Trace: &core.AgentTrace{
				Steps:     4,
				ToolCalls: []string{"search"},
				States:    []string{"act"},
			},
		},
	}

	d := DeriveDescriptor(results)

	require.Len(t, d, DescriptorDimensions)
	assert.InDelta(t, 0.5, d[0], 1e-9, "success rate")
	assert.InDelta(t, 1.5/maxToolCalls, d[1], 1e-9, "tool calls per task")
	assert.InDelta(t, 6.0/maxSteps, d[2], 1e-9, "steps per task")
	assert.InDelta(t, 1.5/maxStates, d[3], 1e-9, "distinct states per task")
	assert.InDelta(t, 1000.0/maxTokensPerTask, d[4], 1e-9, "tokens per task")
	assert.InDelta(t, float64(20*time.Second)/float64(maxTaskLatency), d[5], 1e-9, "latency per task")
}

func TestDeriveDescriptorSaturatesAtCaps(t *testing.T) {
	results := []*core.InvokeResult{
		{
			Success:  true,
			Usage:    &core.TokenInfo{TotalTokens: 10_000_000},
			Duration: time.Hour,
			Trace:    &core.AgentTrace{Steps: 5000},
		},
	}

	d := DeriveDescriptor(results)

	assert.Equal(t, 1.0, d[2], "steps")
	assert.Equal(t, 1.0, d[4], "tokens")
	assert.Equal(t, 1.0, d[5], "latency")
}

func TestDeriveDescriptorNilResultsCountAsFailures(t *testing.T) {
	ok := &core.InvokeResult{Success: true}

	d := DeriveDescriptor([]*core.InvokeResult{ok, nil})

	assert.InDelta(t, 0.5, d[0], 1e-9)
}

func TestDescriptorDistance(t *testing.T) {
	a := Descriptor{0, 0, 0, 0, 0, 0}
	b := Descriptor{1, 1, 1, 1, 1, 1}

	assert.Zero(t, a.DistanceTo(a))
	assert.InDelta(t, 1.0, a.DistanceTo(b), 1e-9, "opposite corners span the unit diagonal")
	assert.Equal(t, a.DistanceTo(b), b.DistanceTo(a))
}

func TestDescriptorDistancePadsShorterVector(t *testing.T) {
	a := Descriptor{1}
	b := Descriptor{1, 1}

	assert.InDelta(t, 1.0/math.Sqrt2, a.DistanceTo(b), 1e-9)
}

func TestNewArchiveValidatesConfig(t *testing.T) {
	_, err := NewArchive(Config{K: 0, AdmissionThreshold: 0.1, Capacity: 10})
	assert.Error(t, err)

	_, err = NewArchive(Config{K: 1, AdmissionThreshold: 0.1, Capacity: 0})
	assert.Error(t, err)

	_, err = NewArchive(Config{K: 1, AdmissionThreshold: 1.5, Capacity: 10})
	assert.Error(t, err)

	_, err = NewArchive(DefaultConfig())
	assert.NoError(t, err)
}

func TestScoreEmptyArchiveIsMaximal(t *testing.T) {
	arch, err := NewArchive(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 1.0, arch.Score(Descriptor{0.5}))
}

func TestScoreAveragesKNearestNeighbors(t *testing.T) {
	arch, err := NewArchive(Config{K: 2, AdmissionThreshold: 0, Capacity: 10})
	require.NoError(t, err)

	for i, d := range []Descriptor{{0.1}, {0.2}, {0.9}} {
		_, admitted := arch.ScoreAndAdmit("seed", i, d)
		require.True(t, admitted)
	}

	score := arch.Score(Descriptor{0.0})

	assert.InDelta(t, 0.15, score, 1e-9, "mean of the two nearest entries")
}

func TestScoreUsesAllEntriesWhenFewerThanK(t *testing.T) {
	arch, err := NewArchive(Config{K: 50, AdmissionThreshold: 0, Capacity: 10})
	require.NoError(t, err)

	arch.ScoreAndAdmit("a", 0, Descriptor{0.2})
	arch.ScoreAndAdmit("b", 0, Descriptor{0.6})

	assert.InDelta(t, 0.2, arch.Score(Descriptor{0.4}), 1e-9)
}

func TestScoreAndAdmitRejectsNearDuplicates(t *testing.T) {
	arch, err := NewArchive(Config{K: 3, AdmissionThreshold: 0.2, Capacity: 10})
	require.NoError(t, err)

	d := Descriptor{0.3, 0.7}
	score, admitted := arch.ScoreAndAdmit("first", 0, d)
	require.True(t, admitted)
	assert.Equal(t, 1.0, score)

	score, admitted = arch.ScoreAndAdmit("twin", 1, d)
	assert.False(t, admitted)
	assert.Zero(t, score)
	assert.Equal(t, 1, arch.Len())
}

func TestScoreAndAdmitIsAtomicUnderContention(t *testing.T) {
	arch, err := NewArchive(Config{K: 1, AdmissionThreshold: 0.25, Capacity: 64})
	require.NoError(t, err)

	d := Descriptor{0.5, 0.5, 0.5}
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := arch.ScoreAndAdmit("dup", 0, d); ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load(), "only one of the duplicates may land")
	assert.Equal(t, 1, arch.Len())
}

func TestCapacityEvictsLeastNovelEntry(t *testing.T) {
	arch, err := NewArchive(Config{K: 1, AdmissionThreshold: 0, Capacity: 2})
	require.NoError(t, err)

	_, admitted := arch.ScoreAndAdmit("a", 0, Descriptor{0.0})
	require.True(t, admitted)
	_, admitted = arch.ScoreAndAdmit("b", 0, Descriptor{0.4})
	require.True(t, admitted)
	_, admitted = arch.ScoreAndAdmit("c", 0, Descriptor{1.0})
	require.True(t, admitted)

	require.Equal(t, 2, arch.Len())
	ids := make(map[string]bool)
	for _, e := range arch.Entries() {
		ids[e.ChromosomeID] = true
	}
	assert.True(t, ids["a"], "highest admission novelty survives")
	assert.True(t, ids["c"])
	assert.False(t, ids["b"], "lowest admission novelty is evicted")
}

func TestEntriesReturnsIndependentCopies(t *testing.T) {
	arch, err := NewArchive(Config{K: 1, AdmissionThreshold: 0, Capacity: 4})
	require.NoError(t, err)
	arch.ScoreAndAdmit("a", 0, Descriptor{0.5})

	snapshot := arch.Entries()
	require.Len(t, snapshot, 1)
	snapshot[0].Descriptor[0] = 99

	assert.Equal(t, 0.0, arch.Score(Descriptor{0.5}), "mutating the snapshot must not touch the archive")
}
