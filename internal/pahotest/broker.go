// Package pahotest provides a minimal in-process MQTT broker over net.Pipe,
// for exercising the paho client's supervisor and event loop without a real
// network or external broker process, grounded on the teacher's reliance on
// a loopback broker for its client_test.go-style integration coverage.
package pahotest

import (
	"context"
	"net"

	"github.com/nodalio/mqttcore/packets"
	"github.com/nodalio/mqttcore/transport"
)

// Broker accepts exactly one connection at a time (via its Dialer) and
// drives a scriptable session against it. It does not implement MQTT
// semantics beyond what each test needs; call Accept after Dial, then
// ExpectConnect, to script the handshake and any further exchange.
type Broker struct {
	pending chan net.Conn
}

// NewBroker returns a Broker ready to accept Dial calls.
func NewBroker() *Broker {
	return &Broker{pending: make(chan net.Conn, 1)}
}

// Dialer returns a transport.Dialer that, on Dial, creates an in-process
// net.Pipe pair and hands the broker side to the Broker's Accept channel.
func (b *Broker) Dialer() transport.Dialer {
	return transport.DialerFunc(func(ctx context.Context, broker string) (net.Conn, error) {
		client, server := net.Pipe()
		b.pending <- server
		return client, nil
	})
}

// Accept blocks until a client dials in, returning the broker's end of the
// pipe.
func (b *Broker) Accept() net.Conn {
	return <-b.pending
}

// ExpectConnect reads one CONNECT packet and replies with a CONNACK
// carrying the given return code and session-present flag.
func ExpectConnect(conn net.Conn, returnCode uint8, sessionPresent bool) (*packets.Connect, error) {
	pkt, err := packets.ReadPacket(conn, 0)
	if err != nil {
		return nil, err
	}
	connect, ok := pkt.(*packets.Connect)
	if !ok {
		return nil, errNotConnect
	}
	ack := &packets.Connack{SessionPresent: sessionPresent, ReturnCode: returnCode}
	if _, err := ack.WriteTo(conn); err != nil {
		return nil, err
	}
	return connect, nil
}

var errNotConnect = &unexpectedPacketError{expected: "CONNECT"}

type unexpectedPacketError struct{ expected string }

func (e *unexpectedPacketError) Error() string { return "pahotest: expected " + e.expected }
