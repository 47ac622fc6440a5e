package paho

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalio/mqttcore/packets"
)

func TestInterleaverYieldsRequestWhenNetworkIdle(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem)
	commands := make(chan Command, 1)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)
	requestsCh <- &Request{kind: requestPing}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := il.next(ctx)
	require.NoError(t, err)
	assert.False(t, item.FromNetwork)
	assert.Equal(t, requestPing, item.Request.kind)
}

func TestInterleaverYieldsNetworkPacket(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem, 1)
	commands := make(chan Command, 1)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)
	networkIn <- networkItem{packet: &packets.Pingresp{}}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := il.next(ctx)
	require.NoError(t, err)
	assert.True(t, item.FromNetwork)
	assert.Equal(t, uint8(packets.PINGRESP), item.Packet.Type())
}

func TestInterleaverNetworkEndIsFatal(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem)
	commands := make(chan Command, 1)
	close(networkIn)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := il.next(ctx)
	require.Error(t, err)
	var netErr *networkClosedErr
	assert.ErrorAs(t, err, &netErr)
}

func TestInterleaverPauseFreezesDataPlane(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem, 1)
	commands := make(chan Command, 1)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)
	requestsCh <- &Request{kind: requestPing}
	commands <- CommandPause

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		_, err := il.next(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("interleaver did not respect Pause")
	}
}

func TestInterleaverResumeUnfreezesDataPlane(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem, 1)
	commands := make(chan Command, 2)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)
	commands <- CommandPause
	commands <- CommandResume
	requestsCh <- &Request{kind: requestPing}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := il.next(ctx)
	require.NoError(t, err)
	assert.Equal(t, requestPing, item.Request.kind)
}

func TestInterleaverDisconnectCommandReturnsCommandErr(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem, 1)
	commands := make(chan Command, 1)
	commands <- CommandDisconnect

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := il.next(ctx)
	var cmdErr *commandErr
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, CommandDisconnect, cmdErr.cmd)
}

func TestPrependQueuePushFrontTakesPriority(t *testing.T) {
	requestsCh := make(chan *Request, 1)
	networkIn := make(chan networkItem, 1)
	commands := make(chan Command, 1)

	il := newInterleaver(networkIn, newPrependQueue(requestsCh), commands)
	requeued := &Request{kind: requestPublish}
	il.requests.PushFront(requeued)
	requestsCh <- &Request{kind: requestPing}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	item, err := il.next(ctx)
	require.NoError(t, err)
	assert.Same(t, requeued, item.Request)
}
