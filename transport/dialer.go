// Package transport supplies the pluggable "transport factory" collaborator
// spec.md keeps external to the client core: something that turns a broker
// address into a byte-oriented duplex connection. The core only depends on
// the Dialer interface; this package's TCP/TLS implementations exist so the
// library is usable without the caller writing their own.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
)

// Dialer establishes the network connection used to carry an MQTT session.
// Implementations must honor ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, broker string) (net.Conn, error)
}

// TLSConfig describes client certificate material, per spec.md's "tls
// (cert, key, ca)" option. No Dialer in this package takes it: NewTLS
// accepts a ready *tls.Config.
type TLSConfig struct {
	CertFile   string
	KeyFile    string
	CAFile     string
	ServerName string
	Insecure   bool
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, broker string) (net.Conn, error)

func (f DialerFunc) Dial(ctx context.Context, broker string) (net.Conn, error) { return f(ctx, broker) }

// netDialer dials plain TCP or TLS depending on the broker URL scheme
// ("tcp://", "ssl://", "tls://"), grounded on the broker-scheme dispatch in
// eclipse paho.mqtt.golang's connection opener. A dialer holding a TLS
// config dials TLS for every scheme.
type netDialer struct {
	tls *tls.Config
}

// New returns a Dialer that establishes a plain TCP connection for tcp://,
// mqtt:// and bare host:port brokers, and a TLS connection with a default
// config for ssl://, tls:// and mqtts:// brokers.
func New() Dialer {
	return &netDialer{}
}

// NewTLS returns a Dialer that establishes a TLS connection using cfg,
// whatever the broker scheme.
func NewTLS(cfg *tls.Config) Dialer {
	return &netDialer{tls: cfg}
}

func (d *netDialer) Dial(ctx context.Context, broker string) (net.Conn, error) {
	scheme, host, err := parseBroker(broker)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{}
	switch scheme {
	case "tcp", "mqtt", "":
		if d.tls == nil {
			return dialer.DialContext(ctx, "tcp", host)
		}
		fallthrough
	case "ssl", "tls", "mqtts":
		tlsCfg := d.tls
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		tlsDialer := tls.Dialer{NetDialer: dialer, Config: tlsCfg}
		return tlsDialer.DialContext(ctx, "tcp", host)
	default:
		return nil, fmt.Errorf("transport: unsupported broker scheme %q", scheme)
	}
}

func parseBroker(broker string) (scheme, host string, err error) {
	if u, err := url.Parse(broker); err == nil && u.Scheme != "" && u.Host != "" {
		return u.Scheme, u.Host, nil
	}
	// Bare host:port, no scheme.
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return "", "", fmt.Errorf("transport: invalid broker address %q: %w", broker, err)
	}
	return "tcp", broker, nil
}
