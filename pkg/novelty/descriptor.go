// Package novelty maintains a bounded archive of behavior descriptors and
// scores candidates by how far their behavior sits from its nearest archived
// neighbors, rewarding behavioral diversity independent of task success.
package novelty

import (
	"math"
	"time"

	"github.com/XiaoConstantine/evoagent-go/pkg/core"
)

// Descriptor is a fixed-length behavior vector with every dimension in [0,1].
type Descriptor []float64

// Normalization caps for the trace-derived dimensions. Values past a cap
// saturate at 1.
const (
	maxToolCalls     = 16.0
	maxSteps         = 32.0
	maxStates        = 12.0
	maxTokensPerTask = 20000.0
	maxTaskLatency   = 2 * time.Minute
)

// DescriptorDimensions is the length of every derived descriptor.
const DescriptorDimensions = 6

// DeriveDescriptor condenses a chromosome's invoke results across all
// evaluation tasks into a behavior descriptor: success rate, tool usage,
// step count, control-flow breadth, token shape, and latency shape. Nil
// results (abandoned or failed invocations) count as zero-activity failures.
func DeriveDescriptor(results []*core.InvokeResult) Descriptor {
	d := make(Descriptor, DescriptorDimensions)
	if len(results) == 0 {
		return d
	}

	var successes, toolCalls, steps, states, tokens, latency float64
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			successes++
		}
		if r.Usage != nil {
			tokens += float64(r.Usage.TotalTokens)
		}
		latency += float64(r.Duration)
		if r.Trace != nil {
			toolCalls += float64(len(r.Trace.ToolCalls))
			steps += float64(r.Trace.Steps)
			states += float64(distinct(r.Trace.States))
		}
	}

	n := float64(len(results))
	d[0] = successes / n
	d[1] = saturate(toolCalls / n / maxToolCalls)
	d[2] = saturate(steps / n / maxSteps)
	d[3] = saturate(states / n / maxStates)
	d[4] = saturate(tokens / n / maxTokensPerTask)
	d[5] = saturate(latency / n / float64(maxTaskLatency))
	return d
}

// DistanceTo returns the Euclidean distance normalized by the longest
// possible diagonal, keeping it in [0,1] for descriptors within bounds.
// Dimensions missing on one side count as zero.
func (d Descriptor) DistanceTo(other Descriptor) float64 {
	dims := len(d)
	if len(other) > dims {
		dims = len(other)
	}
	if dims == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < dims; i++ {
		var a, b float64
		if i < len(d) {
			a = d[i]
		}
		if i < len(other) {
			b = other[i]
		}
		diff := a - b
		sum += diff * diff
	}
	return math.Sqrt(sum) / math.Sqrt(float64(dims))
}

// Clone returns an independent copy.
func (d Descriptor) Clone() Descriptor {
	return append(Descriptor(nil), d...)
}

func distinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it] = struct{}{}
	}
	return len(seen)
}

func saturate(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
