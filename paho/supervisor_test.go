package paho_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodalio/mqttcore/internal/pahotest"
	"github.com/nodalio/mqttcore/packets"
	"github.com/nodalio/mqttcore/paho"
)

func TestSupervisorReconnectsAfterNetworkClosed(t *testing.T) {
	broker := pahotest.NewBroker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := paho.MqttOptions{
		Broker:      "mem://broker",
		PubQueueLen: 4,
		Reconnect:   paho.ReconnectOptions{Strategy: paho.ReconnectAlways, Delay: 10 * time.Millisecond},
	}
	pub, _ := paho.NewClient(ctx, opts, broker.Dialer(), nil, nil)

	firstConn := broker.Accept()
	_, err := pahotest.ExpectConnect(firstConn, packets.ConnAccepted, false)
	require.NoError(t, err)
	firstConn.Close()

	secondConn := broker.Accept()
	defer secondConn.Close()
	_, err = pahotest.ExpectConnect(secondConn, packets.ConnAccepted, false)
	require.NoError(t, err)

	select {
	case <-pub.Done():
		t.Fatal("client stopped instead of reconnecting")
	default:
	}
}

func TestSupervisorGivesUpWhenReconnectNever(t *testing.T) {
	broker := pahotest.NewBroker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := paho.MqttOptions{
		Broker:      "mem://broker",
		PubQueueLen: 4,
		Reconnect:   paho.ReconnectOptions{Strategy: paho.ReconnectNever},
	}
	pub, _ := paho.NewClient(ctx, opts, broker.Dialer(), nil, nil)

	conn := broker.Accept()
	_, err := pahotest.ExpectConnect(conn, packets.ConnAccepted, false)
	require.NoError(t, err)
	conn.Close()

	select {
	case <-pub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after network closure under ReconnectNever")
	}
	assert.True(t, paho.IsKind(pub.Err(), paho.KindNetworkClosed))
}
