package paho

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nodalio/mqttcore/packets"
)

// eventLoop runs with an owned SessionState and drives one connection's
// worth of MQTT traffic, spec.md section 4.6 (C7). It returns nil only on a
// graceful Shutdown; every other return is a *Error the supervisor (C8)
// interprets per its reconnect policy. The request and command channels are
// never closed here — C8 (via the Client) owns them for the client's whole
// lifetime, so a failed run can simply be restarted against the same
// channels without any ownership handoff, per the Design Notes.
type eventLoop struct {
	opts    MqttOptions
	session *SessionState
	trace   Trace

	conn      io.Writer
	networkIn <-chan networkItem
	requests  *prependQueue
	commands  <-chan Command

	onMessage   func(Message)
	pendingAcks *ackTable
}

// newEventLoop constructs an eventLoop ready to run.
func newEventLoop(opts MqttOptions, session *SessionState, trace Trace, conn io.Writer, networkIn <-chan networkItem, requests *prependQueue, commands <-chan Command, onMessage func(Message)) *eventLoop {
	return &eventLoop{
		opts:        opts,
		session:     session,
		trace:       trace,
		conn:        conn,
		networkIn:   networkIn,
		requests:    requests,
		commands:    commands,
		onMessage:   onMessage,
		pendingAcks: newAckTable(),
	}
}

// ackTable tracks SUBSCRIBE/UNSUBSCRIBE requests awaiting their SUBACK or
// UNSUBACK, keyed by packet id. PUBACK/PUBREC/PUBREL/PUBCOMP flows don't go
// through here: their completion lives directly in SessionState since they
// must survive a reconnect, whereas a pending SUBACK does not (spec.md
// names no subscribe-replay-in-flight state to preserve across reconnects
// beyond the subscription list itself).
type ackTable struct {
	pending map[uint16]*Request
}

func newAckTable() *ackTable { return &ackTable{pending: make(map[uint16]*Request)} }

func (t *ackTable) put(id uint16, r *Request) { t.pending[id] = r }

func (t *ackTable) take(id uint16) (*Request, bool) {
	r, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return r, ok
}

func (l *eventLoop) send(pkt packets.Packet) error {
	if _, err := pkt.WriteTo(l.conn); err != nil {
		return newError(KindTransport, err)
	}
	markPacketOut(l.session, time.Now())
	l.trace.PacketSent(pkt)
	return nil
}

// replay re-sends in-flight QoS 1/2 state accumulated before a reconnect,
// in insertion order, and (if the broker reports no resumed session)
// re-issues the stored subscription list — spec.md section 4.3/4.7 step 6
// and testable property 5. It runs before the main select loop starts, so
// nothing from the request channel is processed first.
func (l *eventLoop) replay(sessionPresent bool) error {
	if l.opts.CleanSession {
		return nil
	}
	for _, entry := range l.session.outgoingPubInOrder() {
		pb := publishPacket(entry.Msg, entry.ID, true)
		if err := l.send(pb); err != nil {
			return err
		}
	}
	for _, id := range l.session.outgoingRelInOrder() {
		if err := l.send(&packets.Pubrel{PacketID: id}); err != nil {
			return err
		}
	}
	if !sessionPresent {
		for _, sub := range l.session.subscriptions {
			// Subscribe ids are drawn from the same nextPkid cursor as
			// publishes but never occupy outgoingPub/outgoingRel. allocPkid
			// checks the pubQueueLen bound first, so this fails whenever
			// pubQueueLen carried-over publishes are still in flight.
			id, err := l.session.allocPkid()
			if err != nil {
				return newError(KindProtocol, err)
			}
			sp := &packets.Subscribe{
				PacketID:      id,
				Subscriptions: []packets.SubscriptionRequest{{TopicFilter: sub.Filter, QoS: sub.QoS}},
			}
			// Register the replayed id before sending, same as
			// dispatchSubscribe: the next connection's SUBACK for this id
			// must find a pendingAcks entry, or handleSuback treats it as
			// an unknown packet id and kills the freshly reconnected
			// session. The Request has nobody waiting on it, but still
			// needs a non-nil ack channel: complete() only no-ops on a nil
			// *field*, and calling it on a nil *Request would panic.
			replayed := &Request{kind: requestSubscribe, subscriptions: []Subscription{sub}, ack: make(chan struct{})}
			l.pendingAcks.put(id, replayed)
			if err := l.send(sp); err != nil {
				return err
			}
		}
	}
	return nil
}

func publishPacket(msg Message, id uint16, dup bool) *packets.Publish {
	return &packets.Publish{
		Dup:      dup,
		QoS:      msg.QoS,
		Retain:   msg.Retain,
		Topic:    msg.Topic,
		PacketID: id,
		Payload:  msg.Payload,
	}
}

// run is the central select loop: it multiplexes inbound packets (via the
// interleaver), keep-alive ticks, and never blocks past a single
// suspension point without having fully applied the previous one's effect
// to SessionState, per spec.md section 5.
func (l *eventLoop) run(ctx context.Context) error {
	il := newInterleaver(l.networkIn, l.requests, l.commands)
	ticker := time.NewTicker(keepAliveInterval(l.opts.KeepAlive))
	defer ticker.Stop()

	type nextResult struct {
		item muxItem
		err  error
	}
	results := make(chan nextResult, 1)
	requestNext := func() { go func() {
		item, err := il.next(ctx)
		results <- nextResult{item: item, err: err}
	}() }
	requestNext()

	for {
		select {
		case <-ctx.Done():
			return newError(KindTransport, ctx.Err())

		case now := <-ticker.C:
			sendPing, timedOut := keepAliveTick(l.session, now, l.opts.KeepAlive)
			if timedOut {
				return newError(KindKeepAliveTimeout, errors.New("no PINGRESP within keep-alive window"))
			}
			if sendPing {
				if err := l.send(&packets.Pingreq{}); err != nil {
					return err
				}
				markPingSent(l.session, now)
			}

		case res := <-results:
			if res.err != nil {
				var cmdErr *commandErr
				if errors.As(res.err, &cmdErr) {
					switch cmdErr.cmd {
					case CommandShutdown:
						l.drainAndDisconnect()
						return nil
					case CommandDisconnect:
						_ = l.send(&packets.Disconnect{})
						return newError(KindUserDisconnect, errors.New("user requested disconnect"))
					}
				}
				var netErr *networkClosedErr
				if errors.As(res.err, &netErr) {
					return newError(KindNetworkClosed, netErr)
				}
				return newError(KindTransport, res.err)
			}

			if res.item.FromNetwork {
				if err := l.dispatchInbound(res.item.Packet); err != nil {
					return err
				}
			} else if res.item.Request != nil {
				if err := l.dispatchRequest(res.item.Request); err != nil {
					return err
				}
			}
			requestNext()
		}
	}
}

// drainAndDisconnect sends a final DISCONNECT on a clean Shutdown, then
// gives the broker up to ShutdownTimeout to react (close its side of the
// connection, flush a retained ack) before returning, mirroring the
// teacher's Shutdown() waiting on readerDone or time.After(ShutdownTimeout).
// This eventLoop has no dedicated reader-done channel of its own, but at
// this point in run() no other goroutine is consuming l.networkIn (the
// in-flight requestNext() that produced the Shutdown command has already
// delivered its result and returned), so reading it directly here is safe
// and doubles as the closest equivalent signal: the reader pump pushes here
// as soon as it observes the connection go away. Errors writing the
// DISCONNECT are ignored: the connection is being torn down regardless.
func (l *eventLoop) drainAndDisconnect() {
	_ = l.send(&packets.Disconnect{})
	select {
	case <-l.networkIn:
	case <-time.After(l.opts.ShutdownTimeout):
	}
}

// dispatchRequest translates a Request into wire packets via SessionState
// (C4) and writes it to the connection, per spec.md section 4.6's outbound
// half. If the session has no room for another QoS 1/2 publish, the
// request is pushed back onto the request queue's head (C2) and retried
// once room frees up — this is the "end-to-end backpressure" spec.md
// section 4.4 describes, realized without blocking the select loop.
func (l *eventLoop) dispatchRequest(r *Request) error {
	switch r.kind {
	case requestPublish:
		return l.dispatchPublish(r)
	case requestSubscribe:
		return l.dispatchSubscribe(r)
	case requestUnsubscribe:
		return l.dispatchUnsubscribe(r)
	case requestPing:
		return l.send(&packets.Pingreq{})
	default:
		return nil
	}
}

func (l *eventLoop) dispatchPublish(r *Request) error {
	msg := r.publish
	if msg.QoS == QoS0 {
		return l.send(&packets.Publish{Topic: msg.Topic, Retain: msg.Retain, Payload: msg.Payload})
	}

	id, err := l.session.allocPkid()
	if err != nil {
		// No room in outgoing_pub/outgoing_rel: requeue at the head and
		// defer until an ack frees a slot.
		l.requests.PushFront(r)
		return nil
	}
	l.session.enqueueOutgoingPub(id, msg, r)
	if err := l.send(publishPacket(msg, id, false)); err != nil {
		return err
	}
	return nil
}

func (l *eventLoop) dispatchSubscribe(r *Request) error {
	id, err := l.session.allocPkid()
	if err != nil {
		l.requests.PushFront(r)
		return nil
	}
	subs := make([]packets.SubscriptionRequest, 0, len(r.subscriptions))
	for _, s := range r.subscriptions {
		subs = append(subs, packets.SubscriptionRequest{TopicFilter: s.Filter, QoS: s.QoS})
	}
	l.pendingAcks.put(id, r)
	if err := l.send(&packets.Subscribe{PacketID: id, Subscriptions: subs}); err != nil {
		return err
	}
	for _, s := range r.subscriptions {
		l.session.addSubscription(s.Filter, s.QoS)
	}
	return nil
}

func (l *eventLoop) dispatchUnsubscribe(r *Request) error {
	id, err := l.session.allocPkid()
	if err != nil {
		l.requests.PushFront(r)
		return nil
	}
	l.pendingAcks.put(id, r)
	if err := l.send(&packets.Unsubscribe{PacketID: id, Topics: r.unsubscribe}); err != nil {
		return err
	}
	for _, t := range r.unsubscribe {
		l.session.removeSubscription(t)
	}
	return nil
}

// dispatchInbound implements the inbound dispatch table of spec.md
// section 4.6. CONNACK is handled by the supervisor during connect and
// never reaches here (MQTT 3.1.1 never sends a second CONNACK).
func (l *eventLoop) dispatchInbound(pkt packets.Packet) error {
	markPacketIn(l.session, time.Now())
	l.trace.PacketReceived(pkt)

	switch p := pkt.(type) {
	case *packets.Publish:
		return l.handlePublish(p)
	case *packets.Puback:
		_, req, ok := l.session.completeOutgoingPub(p.PacketID)
		if !ok {
			return newError(KindProtocol, unknownPacketIDError{Kind: "PUBACK", ID: p.PacketID})
		}
		if req != nil {
			req.complete(nil)
		}
		return nil
	case *packets.Pubrec:
		if _, ok := l.session.promoteToRel(p.PacketID); !ok {
			return newError(KindProtocol, unknownPacketIDError{Kind: "PUBREC", ID: p.PacketID})
		}
		return l.send(&packets.Pubrel{PacketID: p.PacketID})
	case *packets.Pubrel:
		l.session.clearIncoming(p.PacketID)
		return l.send(&packets.Pubcomp{PacketID: p.PacketID})
	case *packets.Pubcomp:
		req, ok := l.session.completeOutgoingRel(p.PacketID)
		if !ok {
			return newError(KindProtocol, unknownPacketIDError{Kind: "PUBCOMP", ID: p.PacketID})
		}
		if req != nil {
			req.complete(nil)
		}
		return nil
	case *packets.Suback:
		return l.handleSuback(p)
	case *packets.Unsuback:
		return l.resolveAck(p.PacketID, nil)
	case *packets.Pingresp:
		l.session.awaitPingResp = false
		return nil
	case *packets.Connack:
		// See dispatchInbound's doc: the supervisor consumes the handshake CONNACK
		// before the event loop starts; a broker that sends a second one
		// mid-session is a protocol violation.
		return newError(KindProtocol, errors.New("unexpected CONNACK mid-session"))
	default:
		return newError(KindProtocol, errors.New("unexpected packet on wire"))
	}
}

func (l *eventLoop) handlePublish(p *packets.Publish) error {
	msg := Message{Topic: p.Topic, QoS: p.QoS, Retain: p.Retain, Payload: p.Payload}
	switch p.QoS {
	case packets.QoS0:
		l.deliver(msg)
		return nil
	case packets.QoS1:
		l.deliver(msg)
		return l.send(&packets.Puback{PacketID: p.PacketID})
	case packets.QoS2:
		if l.session.markIncoming(p.PacketID) {
			l.deliver(msg)
		}
		return l.send(&packets.Pubrec{PacketID: p.PacketID})
	default:
		return newError(KindProtocol, errors.New("invalid QoS in PUBLISH"))
	}
}

func (l *eventLoop) deliver(msg Message) {
	if l.onMessage != nil {
		l.onMessage(msg)
	}
}

// handleSuback completes the pending Subscribe request, surfacing a
// *SubscribeFailureError if the broker refused any requested filter
// (packets.SubackFailure), per spec.md section 4.6's "surface status".
func (l *eventLoop) handleSuback(p *packets.Suback) error {
	r, ok := l.pendingAcks.take(p.PacketID)
	if !ok {
		return newError(KindProtocol, unknownPacketIDError{Kind: "SUBACK", ID: p.PacketID})
	}
	r.complete(subackError(p.ReturnCodes, r.subscriptions))
	return nil
}

// subackError reports the topic filters a SUBACK rejected, matching each
// return code to the filter requested at the same index.
func subackError(codes []uint8, subs []Subscription) error {
	var failed []string
	for i, code := range codes {
		if code != packets.SubackFailure {
			continue
		}
		if i < len(subs) {
			failed = append(failed, subs[i].Filter)
		} else {
			failed = append(failed, fmt.Sprintf("filter #%d", i))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &SubscribeFailureError{Filters: failed}
}

// resolveAck completes the pending request for id with err. Only used for
// UNSUBACK, which carries no per-filter status in MQTT 3.1.1; SUBACK goes
// through handleSuback instead since it must inspect ReturnCodes.
func (l *eventLoop) resolveAck(id uint16, err error) error {
	r, ok := l.pendingAcks.take(id)
	if !ok {
		return newError(KindProtocol, unknownPacketIDError{Kind: "UNSUBACK", ID: id})
	}
	r.complete(err)
	return nil
}
