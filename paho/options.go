package paho

import (
	"time"

	"github.com/google/uuid"
)

// ReconnectStrategy selects when the supervisor (C8) retries a failed or
// ended connection.
type ReconnectStrategy int

const (
	// ReconnectNever propagates any failure straight to the user.
	ReconnectNever ReconnectStrategy = iota
	// ReconnectAfterFirstSuccess retries only once at least one CONNACK has
	// ever succeeded for this client.
	ReconnectAfterFirstSuccess
	// ReconnectAlways retries unconditionally.
	ReconnectAlways
)

// ReconnectOptions controls the supervisor's retry policy, spec.md section 3.
type ReconnectOptions struct {
	Strategy ReconnectStrategy
	Delay    time.Duration
}

// Credentials carries the CONNECT username/password flags.
type Credentials struct {
	Username string
	Password []byte
}

// MqttOptions configures a Client, per spec.md section 6.
type MqttOptions struct {
	// Broker is a host:port, or scheme://host:port understood by the
	// configured transport.Dialer.
	Broker string

	// ClientID is the MQTT client id. If empty, a random one is generated
	// (the broker may also assign one, but this library always sends a
	// non-empty id so reconnection can't silently change identity).
	ClientID string

	KeepAlive       time.Duration
	CleanSession    bool
	Will            *Will
	Credentials     *Credentials
	TLS             *TLSOptions
	Reconnect       ReconnectOptions
	ConnectTimeout  time.Duration
	ConnAckTimeout  time.Duration
	ShutdownTimeout time.Duration

	// PubQueueLen bounds |outgoing_pub|+|outgoing_rel| and the capacity of
	// the request channel (spec.md section 4.4).
	PubQueueLen int
}

// TLSOptions is passed opaquely to the transport factory, spec.md section 6.
type TLSOptions struct {
	CertFile   string
	KeyFile    string
	CAFile     string
	ServerName string
	Insecure   bool
}

// DefaultKeepAlive, DefaultConnectTimeout, DefaultConnAckTimeout, and
// DefaultShutdownTimeout mirror the teacher's package-level defaults
// (paho.golang's DefaultKeepAlive/DefaultPacketTimeout/DefaultShutdownTimeout).
var (
	DefaultKeepAlive      = 60 * time.Second
	DefaultConnectTimeout = 30 * time.Second
	DefaultConnAckTimeout = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultPubQueueLen    = 64
)

// withDefaults returns a copy of o with zero-valued fields set to their
// package defaults.
func (o MqttOptions) withDefaults() MqttOptions {
	if o.ClientID == "" {
		o.ClientID = "mqttcore-" + uuid.NewString()
	}
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ConnAckTimeout == 0 {
		o.ConnAckTimeout = DefaultConnAckTimeout
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = DefaultShutdownTimeout
	}
	if o.PubQueueLen == 0 {
		o.PubQueueLen = DefaultPubQueueLen
	}
	return o
}
