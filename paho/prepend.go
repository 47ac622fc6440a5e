package paho

// prependQueue wraps a channel of *Request so items can be pushed back to
// its head, per spec.md section 4.1 (C2). Buffered items are taken from the
// head (hasBuffered/takeBuffered) before the inner channel is consulted
// again. PushFront is total and never blocks.
//
// Grounded in semantics on the "Prepend<S3>" stream wrapper the reference
// implementation's interleaver composes over its request stream
// (_examples/original_source/src/client/mqttasync.rs); realized here as an
// explicit queue consulted inside a select loop rather than a polled
// stream, per the Design Notes' scheduler-variant guidance.
type prependQueue struct {
	inner    <-chan *Request
	buffered []*Request
}

func newPrependQueue(inner <-chan *Request) *prependQueue {
	return &prependQueue{inner: inner}
}

// PushFront records an item to be yielded before the inner channel is
// consulted again. Used by the event loop (C7) to requeue a request that
// failed to serialize due to transient backpressure.
func (p *prependQueue) PushFront(r *Request) {
	p.buffered = append([]*Request{r}, p.buffered...)
}

// hasBuffered reports whether a buffered item can be taken without
// touching the inner channel.
func (p *prependQueue) hasBuffered() bool {
	return len(p.buffered) > 0
}

// takeBuffered pops the item at the head of the buffer, i.e. the one most
// recently passed to PushFront. Caller must check hasBuffered first.
func (p *prependQueue) takeBuffered() *Request {
	r := p.buffered[0]
	p.buffered = p.buffered[1:]
	return r
}
