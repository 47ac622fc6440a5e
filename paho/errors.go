package paho

import (
	"errors"
	"fmt"
)

// Kind classifies the fatal errors the event loop (C7) can surface to the
// supervisor (C8), per spec.md section 7. Kind is what C8 branches on, not
// error identity, since a single condition (e.g. a read failure) can arise
// from many call sites.
type Kind int

const (
	// KindTransport covers DNS/TCP/TLS failures from the dialer.
	KindTransport Kind = iota
	// KindProtocol covers malformed packets, unexpected packets, and
	// unknown packet ids.
	KindProtocol
	// KindConnectionRefused covers a non-success CONNACK.
	KindConnectionRefused
	// KindKeepAliveTimeout covers a missing PINGRESP.
	KindKeepAliveTimeout
	// KindQueueFull covers a producer exceeding pub_q_len.
	KindQueueFull
	// KindNetworkClosed covers the inbound stream ending.
	KindNetworkClosed
	// KindUserDisconnect covers a user-initiated Disconnect command; the
	// supervisor reconnects per policy.
	KindUserDisconnect
	// KindShutdown covers a user-initiated Shutdown command; the
	// supervisor does not reconnect.
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindConnectionRefused:
		return "connection_refused"
	case KindKeepAliveTimeout:
		return "keepalive_timeout"
	case KindQueueFull:
		return "queue_full"
	case KindNetworkClosed:
		return "network_closed"
	case KindUserDisconnect:
		return "user_disconnect"
	case KindShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Error is the typed error the event loop unwinds with. ConnAckCode is only
// meaningful when Kind == KindConnectionRefused.
type Error struct {
	Kind        Kind
	ConnAckCode uint8
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paho: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("paho: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// newError wraps err as a *Error of the given kind. Neither Error nor Kind
// implements Is; callers test the kind with IsKind below (errors.As plus a
// Kind comparison).
func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func newConnRefused(code uint8) *Error {
	return &Error{Kind: KindConnectionRefused, ConnAckCode: code, Err: fmt.Errorf("broker refused connect, code %d", code)}
}

// IsKind reports whether err (or something it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == k
	}
	return false
}

// unknownPacketIDError reports an ack (PUBACK/PUBREC/PUBCOMP/SUBACK/
// UNSUBACK) referencing a packet id the event loop has no record of —
// a protocol violation, since the broker should only ack ids it was sent.
type unknownPacketIDError struct {
	Kind string
	ID   uint16
}

func (e unknownPacketIDError) Error() string {
	return fmt.Sprintf("paho: unexpected %s for packet id %d", e.Kind, e.ID)
}

// SubscribeFailureError is returned by Subscriber.Subscribe when a SUBACK
// refuses one or more of the requested topic filters (MQTT 3.1.1
// SUBACK return code 0x80), per spec.md section 4.6.
type SubscribeFailureError struct {
	Filters []string
}

func (e *SubscribeFailureError) Error() string {
	return fmt.Sprintf("paho: broker refused subscription(s): %v", e.Filters)
}

// Sentinel errors surfaced directly by the client handle (C9), independent
// of the event-loop's Kind taxonomy, per spec.md section 6.
var (
	// ErrQueueFull is returned by non-blocking Publisher/Subscriber calls
	// when the outbound queue (C5) has no room.
	ErrQueueFull = errors.New("paho: outbound queue full")
	// ErrClosed is returned by Publisher/Subscriber calls once the client
	// has been shut down.
	ErrClosed = errors.New("paho: client closed")
)
