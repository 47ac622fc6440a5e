package paho

import (
	"github.com/sirupsen/logrus"

	"github.com/nodalio/mqttcore/packets"
)

// Trace is the logging hook the event loop and supervisor call into,
// mirroring the teacher's Trace/traceDebug calling convention
// (c.traceDebug("closing"), c.traceSend(w), ...) but backed by a concrete
// logrus.FieldLogger by default instead of a no-op, so the ambient logging
// stack is exercised out of the box.
type Trace interface {
	Debugf(format string, args ...any)
	PacketSent(p packets.Packet)
	PacketReceived(p packets.Packet)
	ConnectAttempt(broker string, attempt int)
	Reconnecting(err error, delay string)
}

// logrusTrace is the default Trace, grounded on the ambient structured
// logging convention the example pack uses (logrus).
type logrusTrace struct {
	log *logrus.Entry
}

// NewLogrusTrace returns a Trace that writes to logger, or to
// logrus.StandardLogger() if logger is nil.
func NewLogrusTrace(logger *logrus.Logger) Trace {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &logrusTrace{log: logger.WithField("component", "mqttcore")}
}

func (t *logrusTrace) Debugf(format string, args ...any) {
	t.log.Debugf(format, args...)
}

func (t *logrusTrace) PacketSent(p packets.Packet) {
	t.log.WithField("packet", packets.TypeNames[p.Type()]).Trace("sent")
}

func (t *logrusTrace) PacketReceived(p packets.Packet) {
	t.log.WithField("packet", packets.TypeNames[p.Type()]).Trace("received")
}

func (t *logrusTrace) ConnectAttempt(broker string, attempt int) {
	t.log.WithFields(logrus.Fields{"broker": broker, "attempt": attempt}).Info("connecting")
}

func (t *logrusTrace) Reconnecting(err error, delay string) {
	t.log.WithFields(logrus.Fields{"error": err, "delay": delay}).Warn("reconnecting")
}

// noopTrace discards everything; passed explicitly where silence is
// preferred over the logrus default (e.g. in this package's tests).
type noopTrace struct{}

func (noopTrace) Debugf(string, ...any)                {}
func (noopTrace) PacketSent(packets.Packet)            {}
func (noopTrace) PacketReceived(packets.Packet)        {}
func (noopTrace) ConnectAttempt(string, int)           {}
func (noopTrace) Reconnecting(error, string)           {}
