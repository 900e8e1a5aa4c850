package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionState holds the mutable state for a single engine run: the trace
// identifier, the span tree recorded so far, and accumulated LLM usage.
type ExecutionState struct {
	mu sync.RWMutex

	traceID    string
	spans      []*Span
	activeSpan *Span

	modelID    string
	tokenUsage *TokenUsage

	annotations map[string]interface{}
}

// Span represents a single operation within the execution, such as one
// generation phase or one task evaluation.
type Span struct {
	ID          string
	ParentID    string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	Error       error
	Annotations map[string]interface{}
}

// TokenUsage tracks token consumption across LLM calls.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
}

type spanIDGenerator struct {
	// counter ensures uniqueness even with identical timestamps
	counter uint64
}

// ExecutionContextKey is the type for context keys used by the engine.
type ExecutionContextKey struct {
	name string
}

var (
	stateKey         = &ExecutionContextKey{"evoagent-state"}
	defaultGenerator = &spanIDGenerator{}
)

// WithExecutionState creates a new context carrying engine execution state.
func WithExecutionState(ctx context.Context) context.Context {
	if GetExecutionState(ctx) != nil {
		return ctx // State already exists
	}
	return context.WithValue(ctx, stateKey, &ExecutionState{
		traceID:     generateTraceID(),
		annotations: make(map[string]interface{}),
		spans:       make([]*Span, 0),
	})
}

// GetExecutionState retrieves the execution state from a context.
func GetExecutionState(ctx context.Context) *ExecutionState {
	if ctx == nil {
		return nil
	}
	if state, ok := ctx.Value(stateKey).(*ExecutionState); ok {
		return state
	}
	return nil
}

// StartSpan begins a new operation span.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	state := GetExecutionState(ctx)
	if state == nil {
		ctx = WithExecutionState(ctx)
		state = GetExecutionState(ctx)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	span := &Span{
		ID:          generateSpanID(),
		Operation:   operation,
		StartTime:   time.Now(),
		Annotations: make(map[string]interface{}),
	}

	if state.activeSpan != nil {
		span.ParentID = state.activeSpan.ID
	}

	state.spans = append(state.spans, span)
	state.activeSpan = span

	return ctx, span
}

// EndSpan completes the current span.
func EndSpan(ctx context.Context) {
	if state := GetExecutionState(ctx); state != nil {
		state.mu.Lock()
		defer state.mu.Unlock()

		if state.activeSpan != nil {
			state.activeSpan.EndTime = time.Now()
			state.activeSpan = nil
		}
	}
}

// State modification methods.
func (s *ExecutionState) WithModelID(modelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelID = modelID
}

func (s *ExecutionState) WithTokenUsage(usage *TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenUsage = usage
}

// AddTokenUsage accumulates usage from one LLM call into the run total.
func (s *ExecutionState) AddTokenUsage(usage *TokenUsage) {
	if usage == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokenUsage == nil {
		s.tokenUsage = &TokenUsage{}
	}
	s.tokenUsage.PromptTokens += usage.PromptTokens
	s.tokenUsage.CompletionTokens += usage.CompletionTokens
	s.tokenUsage.TotalTokens += usage.TotalTokens
	s.tokenUsage.Cost += usage.Cost
}

// State access methods.
func (s *ExecutionState) GetModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelID
}

func (s *ExecutionState) GetTokenUsage() *TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokenUsage
}

func (s *ExecutionState) GetCurrentSpan() *Span {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeSpan
}

func (s *ExecutionState) GetTraceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traceID
}

// Span methods.
func (s *Span) WithError(err error) {
	s.Error = err
}

func (s *Span) WithAnnotation(key string, value interface{}) {
	s.Annotations[key] = value
}

// CollectSpans returns a snapshot of all spans recorded so far.
func CollectSpans(ctx context.Context) []*Span {
	if state := GetExecutionState(ctx); state != nil {
		state.mu.RLock()
		defer state.mu.RUnlock()

		spans := make([]*Span, len(state.spans))
		copy(spans, state.spans)
		return spans
	}
	return nil
}

// generateSpanID creates a new unique span identifier: 4 bytes of timestamp
// for temporal ordering, 2 bytes of counter for uniqueness within a second,
// and 2 random bytes for collision resistance across processes.
func generateSpanID() string {
	now := time.Now().Unix()

	counter := atomic.AddUint64(&defaultGenerator.counter, 1)

	id := make([]byte, 8)

	id[0] = byte(now >> 24)
	id[1] = byte(now >> 16)
	id[2] = byte(now >> 8)
	id[3] = byte(now)

	id[4] = byte(counter >> 8)
	id[5] = byte(counter)

	if _, err := rand.Read(id[6:]); err != nil {
		// Fallback to using more counter bits if random fails
		id[6] = byte(counter >> 16)
		id[7] = byte(counter >> 24)
	}

	return hex.EncodeToString(id)
}

// For testing and debugging.
func resetSpanIDGenerator() {
	atomic.StoreUint64(&defaultGenerator.counter, 0)
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		now := time.Now().UnixNano()
		return fmt.Sprintf("trace-%d", now)
	}

	return hex.EncodeToString(b)
}
