package paho

import (
	"fmt"
	"time"
)

// SessionState is mutated exclusively by the event loop (C7) and owned by
// the supervisor (C8) between runs, per spec.md section 3. Packet ids are
// 1..=65535 (0 is reserved and never allocated).
type SessionState struct {
	pubQueueLen int

	nextPkid uint16

	outgoingPub      map[uint16]Message
	outgoingPubOrder []uint16

	outgoingRel      map[uint16]struct{}
	outgoingRelOrder []uint16

	// pubAcks holds the originating Request for a QoS 1/2 publish still
	// awaiting its terminal ack, keyed by the same packet id used in
	// outgoingPub/outgoingRel. It survives the PUBREC->PUBREL transition
	// (the id stays here while it moves between those two tables) and, like
	// them, is owned by the supervisor across reconnects so a replayed
	// publish's original caller is still completed correctly.
	pubAcks map[uint16]*Request

	incomingPub map[uint16]struct{}

	subscriptions []Subscription

	lastPktIn     time.Time
	lastPktOut    time.Time
	awaitPingResp bool
	lastPingSent  time.Time

	// connectSucceeded records whether at least one CONNACK has ever
	// succeeded for this session, for ReconnectAfterFirstSuccess.
	connectSucceeded bool
}

// newSessionState returns an empty session bounded by pubQueueLen entries
// of in-flight QoS 1/2 state.
func newSessionState(pubQueueLen int) *SessionState {
	return &SessionState{
		pubQueueLen: pubQueueLen,
		nextPkid:    1,
		outgoingPub: make(map[uint16]Message),
		outgoingRel: make(map[uint16]struct{}),
		incomingPub: make(map[uint16]struct{}),
		pubAcks:     make(map[uint16]*Request),
	}
}

// reset clears in-flight QoS state and subscriptions, as the supervisor
// does on reconnect when CleanSession is true (spec.md section 4.7 step 6).
// The packet-id cursor is also reset so a fresh session starts from 1. Any
// Publish call still waiting on one of the discarded ids is completed with
// errSessionReset rather than left to hang until its caller's ctx expires.
func (s *SessionState) reset() {
	for _, r := range s.pubAcks {
		r.complete(errSessionReset)
	}
	s.nextPkid = 1
	s.outgoingPub = make(map[uint16]Message)
	s.outgoingPubOrder = nil
	s.outgoingRel = make(map[uint16]struct{})
	s.outgoingRelOrder = nil
	s.incomingPub = make(map[uint16]struct{})
	s.pubAcks = make(map[uint16]*Request)
	s.subscriptions = nil
}

// inFlight returns |outgoing_pub| + |outgoing_rel|.
func (s *SessionState) inFlight() int {
	return len(s.outgoingPub) + len(s.outgoingRel)
}

// errSessionQueueFull is returned by allocPkid when inFlight has reached
// pubQueueLen.
var errSessionQueueFull = fmt.Errorf("paho: session queue full")

// errSessionReset completes any Publish call still waiting on an in-flight
// QoS 1/2 ack when CleanSession discards it on reconnect.
var errSessionReset = fmt.Errorf("paho: session reset, in-flight publish discarded")

// allocPkid returns the next free id, scanning from nextPkid and wrapping
// 1..=65535, skipping ids present in outgoingPub or outgoingRel. Spec.md
// section 4.3.
func (s *SessionState) allocPkid() (uint16, error) {
	if s.inFlight() >= s.pubQueueLen {
		return 0, errSessionQueueFull
	}
	for i := 0; i < 65535; i++ {
		id := s.nextPkid
		s.nextPkid++
		if s.nextPkid == 0 {
			s.nextPkid = 1
		}
		if _, used := s.outgoingPub[id]; used {
			continue
		}
		if _, used := s.outgoingRel[id]; used {
			continue
		}
		return id, nil
	}
	return 0, errSessionQueueFull
}

// enqueueOutgoingPub records msg as awaiting PUBACK (QoS 1) or PUBREC
// (QoS 2) under id, in insertion order. req is the originating Publish
// call's Request, completed later from the PUBACK/PUBCOMP handlers; it may
// be nil, in which case no ack tracking is recorded for id.
func (s *SessionState) enqueueOutgoingPub(id uint16, msg Message, req *Request) {
	s.outgoingPub[id] = msg
	s.outgoingPubOrder = append(s.outgoingPubOrder, id)
	if req != nil {
		s.pubAcks[id] = req
	}
}

// completeOutgoingPub removes id from outgoingPub on PUBACK (QoS 1) and
// returns the id to the free pool, along with the originating Request (if
// any) so the caller can complete it. QoS 2 ends in completeOutgoingRel.
func (s *SessionState) completeOutgoingPub(id uint16) (Message, *Request, bool) {
	msg, ok := s.outgoingPub[id]
	if !ok {
		return Message{}, nil, false
	}
	delete(s.outgoingPub, id)
	s.outgoingPubOrder = removeID(s.outgoingPubOrder, id)
	req := s.pubAcks[id]
	delete(s.pubAcks, id)
	return msg, req, true
}

// promoteToRel moves id from outgoingPub to outgoingRel on PUBREC,
// preserving insertion order for outgoingRel. The pubAcks entry, if any,
// stays keyed by id — QoS 2 only completes its Request on PUBCOMP.
func (s *SessionState) promoteToRel(id uint16) (Message, bool) {
	msg, ok := s.outgoingPub[id]
	if !ok {
		return Message{}, false
	}
	delete(s.outgoingPub, id)
	s.outgoingPubOrder = removeID(s.outgoingPubOrder, id)
	s.outgoingRel[id] = struct{}{}
	s.outgoingRelOrder = append(s.outgoingRelOrder, id)
	return msg, true
}

// completeOutgoingRel removes id from outgoingRel on PUBCOMP and returns
// the id to the free pool, along with the originating Request (if any).
func (s *SessionState) completeOutgoingRel(id uint16) (*Request, bool) {
	if _, ok := s.outgoingRel[id]; !ok {
		return nil, false
	}
	delete(s.outgoingRel, id)
	s.outgoingRelOrder = removeID(s.outgoingRelOrder, id)
	req := s.pubAcks[id]
	delete(s.pubAcks, id)
	return req, true
}

// markIncoming records id as an inbound QoS 2 publish awaiting PUBREL.
// Returns false if id was already present (a replay).
func (s *SessionState) markIncoming(id uint16) (fresh bool) {
	if _, dup := s.incomingPub[id]; dup {
		return false
	}
	s.incomingPub[id] = struct{}{}
	return true
}

// clearIncoming removes id on PUBREL.
func (s *SessionState) clearIncoming(id uint16) {
	delete(s.incomingPub, id)
}

func removeID(order []uint16, id uint16) []uint16 {
	for i, v := range order {
		if v == id {
			return append(order[:i:i], order[i+1:]...)
		}
	}
	return order
}

// outgoingPubInOrder returns outstanding QoS 1/2 publishes (still awaiting
// PUBACK/PUBREC) in insertion order, for replay on reconnect.
func (s *SessionState) outgoingPubInOrder() []struct {
	ID  uint16
	Msg Message
} {
	out := make([]struct {
		ID  uint16
		Msg Message
	}, 0, len(s.outgoingPubOrder))
	for _, id := range s.outgoingPubOrder {
		out = append(out, struct {
			ID  uint16
			Msg Message
		}{ID: id, Msg: s.outgoingPub[id]})
	}
	return out
}

// outgoingRelInOrder returns outstanding QoS 2 ids awaiting PUBCOMP, in
// insertion order, for replay on reconnect.
func (s *SessionState) outgoingRelInOrder() []uint16 {
	out := make([]uint16, len(s.outgoingRelOrder))
	copy(out, s.outgoingRelOrder)
	return out
}

// addSubscription records a (filter, qos) pair for replay on an unclean
// reconnect whose CONNACK reports session_present=false.
func (s *SessionState) addSubscription(filter string, qos uint8) {
	for i, existing := range s.subscriptions {
		if existing.Filter == filter {
			s.subscriptions[i].QoS = qos
			return
		}
	}
	s.subscriptions = append(s.subscriptions, Subscription{Filter: filter, QoS: qos})
}

// removeSubscription drops filter from the replay list on UNSUBSCRIBE.
func (s *SessionState) removeSubscription(filter string) {
	for i, existing := range s.subscriptions {
		if existing.Filter == filter {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}
