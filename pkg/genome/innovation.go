package genome

import "sync"

// InnovationTracker assigns stable historical markers to gene signatures.
// Two structurally identical genes created within the same tracker scope
// receive the same number, which is what makes alignment-based crossover
// meaningful.
//
// One tracker is owned per evolution run and injected explicitly; there is
// no process-wide instance, so concurrent runs stay isolated.
type InnovationTracker struct {
	mu   sync.Mutex
	next int64
	seen map[string]int64
}

func NewInnovationTracker() *InnovationTracker {
	return &InnovationTracker{
		seen: make(map[string]int64),
	}
}

// GetInnovationNumber returns the marker for signature, assigning the next
// sequential number on first sight.
func (t *InnovationTracker) GetInnovationNumber(signature string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.seen[signature]; ok {
		return n
	}
	t.next++
	t.seen[signature] = t.next
	return t.next
}

// Count reports how many distinct signatures have been assigned.
func (t *InnovationTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
