package genome

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInnovationIdempotence(t *testing.T) {
	tracker := NewInnovationTracker()

	first := tracker.GetInnovationNumber("prompt:system")
	second := tracker.GetInnovationNumber("prompt:system")

	assert.Equal(t, first, second, "identical signatures must converge to one marker")
	assert.Equal(t, 1, tracker.Count())
}

func TestInnovationSequentialAssignment(t *testing.T) {
	tracker := NewInnovationTracker()

	a := tracker.GetInnovationNumber("prompt:system")
	b := tracker.GetInnovationNumber("tool_config:toolset")
	c := tracker.GetInnovationNumber("numeric:temperature")

	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, int64(3), c)
	assert.Equal(t, 3, tracker.Count())
}

func TestInnovationScopeIsolation(t *testing.T) {
	// Two runs own separate trackers; numbering restarts per run.
	runA := NewInnovationTracker()
	runB := NewInnovationTracker()

	runA.GetInnovationNumber("prompt:system")
	runA.GetInnovationNumber("model:primary")

	assert.Equal(t, int64(1), runB.GetInnovationNumber("model:primary"))
}

func TestInnovationConcurrentAccess(t *testing.T) {
	tracker := NewInnovationTracker()

	const goroutines = 32
	var wg sync.WaitGroup
	results := make([][]int64, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			local := make([]int64, 0, 8)
			for j := 0; j < 8; j++ {
				local = append(local, tracker.GetInnovationNumber(fmt.Sprintf("numeric:param_%d", j)))
			}
			results[slot] = local
		}(i)
	}
	wg.Wait()

	// Every goroutine must observe the same marker per signature.
	for i := 1; i < goroutines; i++ {
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 8, tracker.Count())
}
