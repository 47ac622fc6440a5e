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

func TestClientConnectAndPublishQoS0(t *testing.T) {
	broker := pahotest.NewBroker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := paho.MqttOptions{Broker: "mem://broker", CleanSession: true, PubQueueLen: 4}
	pub, _ := paho.NewClient(ctx, opts, broker.Dialer(), nil, nil)

	conn := broker.Accept()
	defer conn.Close()
	_, err := pahotest.ExpectConnect(conn, packets.ConnAccepted, false)
	require.NoError(t, err)

	go func() {
		for {
			pkt, err := packets.ReadPacket(conn, 0)
			if err != nil {
				return
			}
			if p, ok := pkt.(*packets.Publish); ok {
				_ = p
			}
		}
	}()

	err = pub.Publish(ctx, paho.Message{Topic: "t", QoS: paho.QoS0, Payload: []byte("hi")})
	assert.NoError(t, err)
}

func TestClientSubscribeWaitsForSuback(t *testing.T) {
	broker := pahotest.NewBroker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := paho.MqttOptions{Broker: "mem://broker", CleanSession: true, PubQueueLen: 4}
	_, sub := paho.NewClient(ctx, opts, broker.Dialer(), nil, nil)

	conn := broker.Accept()
	defer conn.Close()
	_, err := pahotest.ExpectConnect(conn, packets.ConnAccepted, false)
	require.NoError(t, err)

	go func() {
		pkt, err := packets.ReadPacket(conn, 0)
		if err != nil {
			return
		}
		s, ok := pkt.(*packets.Subscribe)
		if !ok {
			return
		}
		ack := &packets.Suback{PacketID: s.PacketID, ReturnCodes: []uint8{packets.SubackQoS0}}
		ack.WriteTo(conn)
	}()

	err = sub.Subscribe(ctx, []paho.Subscription{{Filter: "a/b", QoS: paho.QoS0}})
	assert.NoError(t, err)
}

func TestClientConnectionRefusedSurfacesError(t *testing.T) {
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
	defer conn.Close()
	_, err := pahotest.ExpectConnect(conn, packets.ConnRefusedNotAuthorized, false)
	require.NoError(t, err)

	select {
	case <-pub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop after connection refusal")
	}
	require.Error(t, pub.Err())
	assert.True(t, paho.IsKind(pub.Err(), paho.KindConnectionRefused))
}
