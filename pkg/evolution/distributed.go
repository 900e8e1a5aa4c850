package evolution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
	"github.com/XiaoConstantine/evoagent-go/pkg/genome"
	"github.com/XiaoConstantine/evoagent-go/pkg/logging"
	"github.com/XiaoConstantine/evoagent-go/pkg/messaging"
)

// workItem is the wire form of one evaluation job.
type workItem struct {
	ID         string                  `json:"id"`
	Chromosome genome.ChromosomeRecord `json:"chromosome"`
	TaskIDs    []string                `json:"task_ids,omitempty"`
}

// DistributedConfig tunes the dispatch side of remote evaluation.
type DistributedConfig struct {
	// RequestTimeout bounds one dispatch attempt before re-dispatch.
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`
	// MaxRetries is the number of re-dispatches after the first attempt.
	MaxRetries int `yaml:"max_retries" validate:"gte=0"`
	// TaskIDs names the suite tasks each work item covers. Workers that
	// declare their own coverage reject items naming tasks they lack.
	TaskIDs []string `yaml:"task_ids"`
}

// DefaultDistributedConfig returns dispatch settings suited to suites that
// call a model per task.
func DefaultDistributedConfig() DistributedConfig {
	return DistributedConfig{
		RequestTimeout: 2 * time.Minute,
		MaxRetries:     2,
	}
}

// DistributedEvaluator farms chromosome evaluation out over a messaging
// transport and correlates responses by work-item ID. Timeouts trigger
// re-dispatch; duplicate responses resolve last-write-wins. It is safe for
// concurrent use, so one instance can back a whole engine's evaluation pool.
type DistributedEvaluator struct {
	transport messaging.Transport
	cfg       DistributedConfig

	mu      sync.Mutex
	pending map[string]chan messaging.Response

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

var _ Evaluator = (*DistributedEvaluator)(nil)

// NewDistributedEvaluator validates the configuration and wraps the
// transport. Callers own the transport's lifecycle.
func NewDistributedEvaluator(transport messaging.Transport, cfg DistributedConfig) (*DistributedEvaluator, error) {
	if transport == nil {
		return nil, errors.New(errors.InvalidInput, "distributed evaluator requires a transport")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, configError("request timeout must be positive", "request_timeout", cfg.RequestTimeout.String())
	}
	if cfg.MaxRetries < 0 {
		return nil, configError("max retries must be non-negative", "max_retries", cfg.MaxRetries)
	}
	return &DistributedEvaluator{
		transport: transport,
		cfg:       cfg,
		pending:   make(map[string]chan messaging.Response),
		done:      make(chan struct{}),
	}, nil
}

// Evaluate dispatches one chromosome and blocks until a worker answers, the
// retry budget runs out, or ctx ends. Exhausted timeouts surface as
// DispatchFailed; a worker that kept answering with failures surfaces as
// EvaluationFailed.
func (d *DistributedEvaluator) Evaluate(ctx context.Context, chrom *genome.Chromosome) (*genome.FitnessResult, error) {
	if err := errors.CheckContext(ctx, "distributed evaluate"); err != nil {
		return nil, err
	}
	if chrom == nil {
		return nil, errors.New(errors.InvalidInput, "cannot evaluate a nil chromosome")
	}
	d.startOnce.Do(func() { go d.readResponses() })

	item := workItem{
		ID:         uuid.New().String(),
		Chromosome: chrom.Record(),
		TaskIDs:    d.cfg.TaskIDs,
	}
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "encode work item")
	}

	// One waiter per work-item ID, registered before the first send so a
	// slow answer to an earlier attempt still lands.
	waiter := d.register(item.ID)
	defer d.unregister(item.ID)

	log := logging.GetLogger()
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug(ctx, "re-dispatching work item %s, attempt %d of %d", item.ID, attempt+1, d.cfg.MaxRetries+1)
		}
		if err := d.transport.Send(ctx, messaging.Request{ID: item.ID, Payload: payload}); err != nil {
			return nil, err
		}

		timer := time.NewTimer(d.cfg.RequestTimeout)
		select {
		case resp := <-waiter:
			timer.Stop()
			if resp.Err != "" {
				lastErr = errors.WithFields(
					errors.New(errors.EvaluationFailed, "worker reported failure"),
					errors.Fields{"work_id": item.ID, "worker_error": resp.Err})
				continue
			}
			var fitness genome.FitnessResult
			if err := json.Unmarshal(resp.Payload, &fitness); err != nil {
				return nil, errors.Wrap(err, errors.InvalidResponse, "decode fitness result for work item "+item.ID)
			}
			return &fitness, nil
		case <-timer.C:
			lastErr = errors.WithFields(
				errors.New(errors.Timeout, "no response before timeout"),
				errors.Fields{"work_id": item.ID, "timeout": d.cfg.RequestTimeout.String()})
			log.Warn(ctx, "work item %s timed out after %s, %d retries left", item.ID, d.cfg.RequestTimeout, d.cfg.MaxRetries-attempt)
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), errors.Canceled, "await work item "+item.ID)
		}
	}

	if errors.CodeOf(lastErr) == errors.Timeout {
		return nil, errors.Wrap(lastErr, errors.DispatchFailed, "retries exhausted for work item "+item.ID)
	}
	return nil, lastErr
}

// Close stops the response reader. The transport stays open.
func (d *DistributedEvaluator) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

func (d *DistributedEvaluator) register(id string) chan messaging.Response {
	ch := make(chan messaging.Response, 1)
	d.mu.Lock()
	d.pending[id] = ch
	d.mu.Unlock()
	return ch
}

func (d *DistributedEvaluator) unregister(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

// readResponses routes transport responses to their waiters. Responses for
// already-resolved work items drop silently; a second response for a still
// pending item replaces the first.
func (d *DistributedEvaluator) readResponses() {
	for {
		select {
		case resp := <-d.transport.Responses():
			d.mu.Lock()
			ch, ok := d.pending[resp.ID]
			d.mu.Unlock()
			if !ok {
				continue
			}
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- resp:
			default:
			}
		case <-d.done:
			return
		}
	}
}

// Worker serves evaluation requests from a transport. It holds no population
// state: every work item decodes to a fresh chromosome, so re-dispatched
// duplicates simply evaluate again. Run one goroutine per desired concurrent
// evaluation.
type Worker struct {
	transport messaging.Transport
	evaluator Evaluator
	tasks     map[string]struct{}
}

// NewWorker wraps an evaluator behind a transport. taskIDs optionally
// declares which suite tasks this worker covers; work items naming others
// are rejected so the dispatcher can retry elsewhere.
func NewWorker(transport messaging.Transport, evaluator Evaluator, taskIDs ...string) (*Worker, error) {
	if transport == nil {
		return nil, errors.New(errors.InvalidInput, "worker requires a transport")
	}
	if evaluator == nil {
		return nil, errors.New(errors.InvalidInput, "worker requires an evaluator")
	}
	w := &Worker{transport: transport, evaluator: evaluator}
	if len(taskIDs) > 0 {
		w.tasks = make(map[string]struct{}, len(taskIDs))
		for _, id := range taskIDs {
			w.tasks[id] = struct{}{}
		}
	}
	return w, nil
}

// Run serves requests until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	log := logging.GetLogger()
	log.Info(ctx, "evaluation worker started")
	for {
		select {
		case req := <-w.transport.Requests():
			w.handle(ctx, req)
		case <-ctx.Done():
			log.Info(ctx, "evaluation worker stopped")
			return nil
		}
	}
}

func (w *Worker) handle(ctx context.Context, req messaging.Request) {
	resp := messaging.Response{ID: req.ID}
	fitness, err := w.evaluateItem(ctx, req)
	switch {
	case err != nil:
		logging.GetLogger().Warn(ctx, "work item %s failed: %v", req.ID, err)
		resp.Err = err.Error()
	default:
		payload, err := json.Marshal(fitness)
		if err != nil {
			resp.Err = err.Error()
		} else {
			resp.Payload = payload
		}
	}
	if err := w.transport.Respond(ctx, resp); err != nil {
		logging.GetLogger().Warn(ctx, "response for work item %s not delivered: %v", req.ID, err)
	}
}

func (w *Worker) evaluateItem(ctx context.Context, req messaging.Request) (*genome.FitnessResult, error) {
	var item workItem
	if err := json.Unmarshal(req.Payload, &item); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "decode work item")
	}
	if len(w.tasks) > 0 {
		for _, id := range item.TaskIDs {
			if _, ok := w.tasks[id]; !ok {
				return nil, errors.WithFields(
					errors.New(errors.InvalidInput, "task not covered by this worker"),
					errors.Fields{"task_id": id})
			}
		}
	}
	chrom, err := genome.FromRecord(item.Chromosome)
	if err != nil {
		return nil, err
	}
	return w.evaluator.Evaluate(ctx, chrom)
}
