package paho

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nodalio/mqttcore/packets"
	"github.com/nodalio/mqttcore/transport"
)

// connStatus mirrors the teacher's disconnected/connecting/reconnecting/
// connected constants, tracked here only for Trace/diagnostic purposes: the
// supervisor's control flow does not branch on it, since a single goroutine
// drives the whole state machine sequentially.
type connStatus int

const (
	statusDisconnected connStatus = iota
	statusConnecting
	statusConnected
	statusReconnecting
)

// supervisor owns the dial-connect-run-reconnect loop (C8). It holds the one
// SessionState that survives across reconnect attempts and decides, on each
// run failure, whether to retry per ReconnectOptions and whether to carry
// the session forward (CleanSession) or start fresh.
type supervisor struct {
	opts   MqttOptions
	dialer transport.Dialer
	trace  Trace

	requests *prependQueue
	commands <-chan Command

	onMessage func(Message)

	session *SessionState
	status  connStatus

	// done is closed once run() returns for good (no further reconnects).
	done chan struct{}
	// lastErr is the terminal error run() exited with, nil on a clean Shutdown.
	lastErr error
}

func newSupervisor(opts MqttOptions, dialer transport.Dialer, trace Trace, requests *prependQueue, commands <-chan Command, onMessage func(Message)) *supervisor {
	if trace == nil {
		trace = NewLogrusTrace(nil)
	}
	return &supervisor{
		opts:      opts,
		dialer:    dialer,
		trace:     trace,
		requests:  requests,
		commands:  commands,
		onMessage: onMessage,
		session:   newSessionState(opts.PubQueueLen),
		done:      make(chan struct{}),
	}
}

// run drives connect attempts until a terminal condition is reached: a
// Shutdown command, a ReconnectNever/AfterFirstSuccess policy declining a
// further attempt, or ctx cancellation. It is meant to be run in its own
// goroutine by the client handle (C9); callers observe termination via Done
// and read the result via Err.
func (sv *supervisor) run(ctx context.Context) {
	defer close(sv.done)

	attempt := 0
	for {
		attempt++
		sv.status = statusConnecting
		sv.trace.ConnectAttempt(sv.opts.Broker, attempt)

		err := sv.runOnce(ctx)
		if err == nil {
			sv.lastErr = nil
			return
		}
		if ctx.Err() != nil {
			sv.lastErr = err
			return
		}
		if !sv.shouldReconnect() {
			sv.lastErr = err
			return
		}

		sv.status = statusReconnecting
		sv.trace.Reconnecting(err, sv.opts.Reconnect.Delay.String())
		if sv.opts.CleanSession {
			sv.session.reset()
		}

		select {
		case <-time.After(sv.opts.Reconnect.Delay):
		case <-ctx.Done():
			sv.lastErr = ctx.Err()
			return
		}
	}
}

// shouldReconnect applies ReconnectOptions.Strategy, per spec.md section 3.
func (sv *supervisor) shouldReconnect() bool {
	switch sv.opts.Reconnect.Strategy {
	case ReconnectAlways:
		return true
	case ReconnectAfterFirstSuccess:
		return sv.session.connectSucceeded
	default:
		return false
	}
}

// runOnce performs one dial-connect-run cycle: establish the transport,
// complete the CONNECT/CONNACK handshake within ConnAckTimeout, replay any
// carried-over session state, then run the event loop to completion.
func (sv *supervisor) runOnce(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, sv.opts.ConnectTimeout)
	conn, err := sv.dialer.Dial(dialCtx, sv.opts.Broker)
	cancel()
	if err != nil {
		return newError(KindTransport, err)
	}
	defer conn.Close()

	sessionPresent, err := sv.handshake(ctx, conn)
	if err != nil {
		return err
	}
	sv.session.connectSucceeded = true
	sv.status = statusConnected

	networkIn := make(chan networkItem, 1)
	loop := newEventLoop(sv.opts, sv.session, sv.trace, conn, networkIn, sv.requests, sv.commands, sv.onMessage)
	if err := loop.replay(sessionPresent); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readPump(gctx, conn, networkIn) })
	g.Go(func() error { return loop.run(gctx) })
	return g.Wait()
}

// handshake sends CONNECT and waits for CONNACK within ConnAckTimeout,
// grounded on the teacher's Connect/CONNACK-wait flow (client.go's
// connectMQTT). A non-zero CONNACK return code yields KindConnectionRefused.
func (sv *supervisor) handshake(ctx context.Context, conn net.Conn) (sessionPresent bool, err error) {
	connect := &packets.Connect{
		CleanSession: sv.opts.CleanSession,
		KeepAlive:    uint16(sv.opts.KeepAlive / time.Second),
		ClientID:     sv.opts.ClientID,
	}
	if sv.opts.Will != nil {
		connect.WillFlag = true
		connect.WillTopic = sv.opts.Will.Topic
		connect.WillMessage = sv.opts.Will.Payload
		connect.WillQoS = sv.opts.Will.QoS
		connect.WillRetain = sv.opts.Will.Retain
	}
	if sv.opts.Credentials != nil {
		connect.UsernameFlag = true
		connect.Username = sv.opts.Credentials.Username
		if sv.opts.Credentials.Password != nil {
			connect.PasswordFlag = true
			connect.Password = sv.opts.Credentials.Password
		}
	}

	if _, err := connect.WriteTo(conn); err != nil {
		return false, newError(KindTransport, err)
	}

	ackCtx, cancel := context.WithTimeout(ctx, sv.opts.ConnAckTimeout)
	defer cancel()

	type result struct {
		ack *packets.Connack
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		pkt, err := packets.ReadPacket(conn, 0)
		if err != nil {
			resultCh <- result{err: err}
			return
		}
		ack, ok := pkt.(*packets.Connack)
		if !ok {
			resultCh <- result{err: errExpectedConnack}
			return
		}
		resultCh <- result{ack: ack}
	}()

	select {
	case <-ackCtx.Done():
		return false, newError(KindTransport, ackCtx.Err())
	case res := <-resultCh:
		if res.err != nil {
			return false, newError(KindTransport, res.err)
		}
		if res.ack.ReturnCode != 0 {
			return false, newConnRefused(res.ack.ReturnCode)
		}
		return res.ack.SessionPresent, nil
	}
}

// readPump is the reader-pump goroutine grounded on the teacher's reader()
// loop, reduced to just its decode-and-forward half: SessionState mutation
// on inbound packets happens in the event loop (C7), never here, satisfying
// spec.md section 5's single-mutator invariant.
func readPump(ctx context.Context, conn net.Conn, out chan<- networkItem) error {
	br := bufio.NewReader(conn)
	for {
		pkt, err := packets.ReadPacket(br, 0)
		if err != nil {
			select {
			case out <- networkItem{err: err}:
			case <-ctx.Done():
			}
			if err == io.EOF {
				return nil
			}
			return newError(KindTransport, err)
		}
		select {
		case out <- networkItem{packet: pkt}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var errExpectedConnack = errors.New("paho: expected CONNACK as first packet")
