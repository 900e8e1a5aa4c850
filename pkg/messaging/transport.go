// Package messaging carries distributed evaluation traffic between a
// dispatcher and its workers as ID-correlated request/response pairs.
//
// Delivery is at least once: the dispatcher re-sends work that times out, so
// a worker may see the same request ID twice and the dispatcher may see
// duplicate responses. Both sides dedupe by ID.
package messaging

import "context"

// Request is one unit of work addressed by ID. The payload is an opaque,
// JSON-encoded work item.
type Request struct {
	ID      string
	Payload []byte
}

// Response answers the request carrying the same ID. Err is set instead of
// Payload when the worker failed.
type Response struct {
	ID      string
	Payload []byte
	Err     string
}

// Transport moves requests toward workers and responses back. Send and
// Respond block until the message is accepted, the context ends, or the
// transport closes.
type Transport interface {
	Send(ctx context.Context, req Request) error
	Requests() <-chan Request

	Respond(ctx context.Context, resp Response) error
	Responses() <-chan Response

	// Close unblocks pending sends. The request and response streams stay
	// open; consumers leave via their own contexts.
	Close() error
}
