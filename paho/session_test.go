package paho

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocPkidNeverReturnsZero(t *testing.T) {
	s := newSessionState(10)
	for i := 0; i < 5; i++ {
		id, err := s.allocPkid()
		require.NoError(t, err)
		assert.NotZero(t, id)
		s.enqueueOutgoingPub(id, Message{Topic: "t"}, nil)
	}
}

func TestAllocPkidSkipsInFlightIDs(t *testing.T) {
	s := newSessionState(10)
	first, err := s.allocPkid()
	require.NoError(t, err)
	s.enqueueOutgoingPub(first, Message{Topic: "t"}, nil)

	second, err := s.allocPkid()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestAllocPkidFailsWhenQueueFull(t *testing.T) {
	s := newSessionState(2)
	for i := 0; i < 2; i++ {
		id, err := s.allocPkid()
		require.NoError(t, err)
		s.enqueueOutgoingPub(id, Message{Topic: "t"}, nil)
	}
	_, err := s.allocPkid()
	assert.ErrorIs(t, err, errSessionQueueFull)
}

func TestCompleteOutgoingPubFreesSlot(t *testing.T) {
	s := newSessionState(1)
	id, err := s.allocPkid()
	require.NoError(t, err)
	s.enqueueOutgoingPub(id, Message{Topic: "t"}, nil)

	_, err = s.allocPkid()
	assert.Error(t, err)

	msg, _, ok := s.completeOutgoingPub(id)
	require.True(t, ok)
	assert.Equal(t, "t", msg.Topic)

	_, err = s.allocPkid()
	assert.NoError(t, err)
}

func TestPromoteToRelMovesID(t *testing.T) {
	s := newSessionState(10)
	id, err := s.allocPkid()
	require.NoError(t, err)
	s.enqueueOutgoingPub(id, Message{Topic: "t", QoS: QoS2}, nil)

	msg, ok := s.promoteToRel(id)
	require.True(t, ok)
	assert.Equal(t, "t", msg.Topic)

	_, _, stillPub := s.completeOutgoingPub(id)
	assert.False(t, stillPub)

	_, ok = s.completeOutgoingRel(id)
	assert.True(t, ok)
}

func TestMarkIncomingDedups(t *testing.T) {
	s := newSessionState(10)
	assert.True(t, s.markIncoming(7))
	assert.False(t, s.markIncoming(7))
	s.clearIncoming(7)
	assert.True(t, s.markIncoming(7))
}

func TestOutgoingPubInOrderPreservesInsertionOrder(t *testing.T) {
	s := newSessionState(10)
	var ids []uint16
	for i := 0; i < 3; i++ {
		id, err := s.allocPkid()
		require.NoError(t, err)
		s.enqueueOutgoingPub(id, Message{Topic: "t"}, nil)
		ids = append(ids, id)
	}

	entries := s.outgoingPubInOrder()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
}

func TestResetClearsInFlightState(t *testing.T) {
	s := newSessionState(10)
	id, err := s.allocPkid()
	require.NoError(t, err)
	s.enqueueOutgoingPub(id, Message{Topic: "t"}, nil)
	s.addSubscription("a/b", QoS1)

	s.reset()

	assert.Equal(t, 0, s.inFlight())
	assert.Empty(t, s.subscriptions)
	assert.Equal(t, uint16(1), s.nextPkid)
}

func TestAddSubscriptionUpdatesExistingFilter(t *testing.T) {
	s := newSessionState(10)
	s.addSubscription("a/b", QoS0)
	s.addSubscription("a/b", QoS2)
	require.Len(t, s.subscriptions, 1)
	assert.Equal(t, uint8(QoS2), s.subscriptions[0].QoS)
}

func TestRemoveSubscription(t *testing.T) {
	s := newSessionState(10)
	s.addSubscription("a/b", QoS0)
	s.addSubscription("c/d", QoS1)
	s.removeSubscription("a/b")
	require.Len(t, s.subscriptions, 1)
	assert.Equal(t, "c/d", s.subscriptions[0].Filter)
}
