package paho

import "time"

// keepAliveTick implements the periodic check spec.md section 4.5 describes:
// called every keepAlive/2 by the event loop's select loop (C7), it reports
// whether a PINGREQ should be emitted now, or that the session has gone
// silent (no PINGRESP within keepAlive of the last PINGREQ).
//
// Grounded on the teacher's pinger goroutine (timer + pong channel + 2*d
// timeout), adapted to the cooperative single-task model: here it is a pure
// function called from inside C7's select loop instead of its own
// goroutine, since spec.md section 4.5/4.6 keep SessionState mutation
// confined to C7.
func keepAliveTick(s *SessionState, now time.Time, keepAlive time.Duration) (sendPing bool, timedOut bool) {
	if s.awaitPingResp {
		if now.Sub(s.lastPingSent) >= keepAlive {
			return false, true
		}
		return false, false
	}
	if now.Sub(s.lastPktOut) >= keepAlive {
		return true, false
	}
	return false, false
}

// markPingSent updates SessionState after a PINGREQ is written.
func markPingSent(s *SessionState, now time.Time) {
	s.awaitPingResp = true
	s.lastPingSent = now
	s.lastPktOut = now
}

// markPacketOut updates the outbound keep-alive clock after any packet is
// written to the wire.
func markPacketOut(s *SessionState, now time.Time) {
	s.lastPktOut = now
}

// markPacketIn updates the inbound keep-alive clock, and clears
// awaitPingResp, after any packet is read from the wire.
func markPacketIn(s *SessionState, now time.Time) {
	s.lastPktIn = now
	s.awaitPingResp = false
}

// keepAliveInterval is the tick period spec.md section 4.5 names:
// keep_alive/2, never less than one second.
func keepAliveInterval(keepAlive time.Duration) time.Duration {
	d := keepAlive / 2
	if d < time.Second {
		d = time.Second
	}
	return d
}
