package paho

import "context"

// outboundQueue is the bounded channel of user Requests the client handle
// (C9) writes into and the event loop (C7) drains, spec.md section 4.4. Its
// capacity is MqttOptions.PubQueueLen. A full queue causes TryEnqueue to
// fail fast (the handle's non-blocking API) or Enqueue to block until room
// frees up or ctx is cancelled (the blocking API).
type outboundQueue struct {
	ch chan *Request
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{ch: make(chan *Request, capacity)}
}

// TryEnqueue returns ErrQueueFull immediately if the queue has no room.
func (q *outboundQueue) TryEnqueue(r *Request) error {
	select {
	case q.ch <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Enqueue blocks until there is room, ctx is cancelled, or done fires (the
// event loop exited and will never drain the queue again).
func (q *outboundQueue) Enqueue(ctx context.Context, done <-chan struct{}, r *Request) error {
	select {
	case q.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrClosed
	}
}
