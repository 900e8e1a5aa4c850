package messaging

import (
	"context"
	"sync"

	"github.com/XiaoConstantine/evoagent-go/pkg/errors"
)

const defaultBuffer = 64

// InProc is a channel-backed Transport for tests and single-process runs.
type InProc struct {
	requests  chan Request
	responses chan Response

	closeOnce sync.Once
	done      chan struct{}
}

var _ Transport = (*InProc)(nil)

// NewInProc returns a transport buffering up to buffer messages per
// direction; non-positive buffer gets a sensible default.
func NewInProc(buffer int) *InProc {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &InProc{
		requests:  make(chan Request, buffer),
		responses: make(chan Response, buffer),
		done:      make(chan struct{}),
	}
}

func (t *InProc) Send(ctx context.Context, req Request) error {
	select {
	case t.requests <- req:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Canceled, "send request "+req.ID)
	case <-t.done:
		return errors.New(errors.DispatchFailed, "transport closed")
	}
}

func (t *InProc) Requests() <-chan Request {
	return t.requests
}

func (t *InProc) Respond(ctx context.Context, resp Response) error {
	select {
	case t.responses <- resp:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.Canceled, "send response "+resp.ID)
	case <-t.done:
		return errors.New(errors.DispatchFailed, "transport closed")
	}
}

func (t *InProc) Responses() <-chan Response {
	return t.responses
}

func (t *InProc) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
