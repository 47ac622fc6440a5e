package packets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, pkt Packet) Packet {
	t.Helper()
	var buf bytes.Buffer
	_, err := pkt.WriteTo(&buf)
	require.NoError(t, err)

	decoded, err := ReadPacket(&buf, 0)
	require.NoError(t, err)
	require.Equal(t, pkt.Type(), decoded.Type())
	return decoded
}

func TestConnectRoundTrip(t *testing.T) {
	pkt := &Connect{
		CleanSession: true,
		KeepAlive:    60,
		ClientID:     "test-client",
		WillFlag:     true,
		WillQoS:      1,
		WillTopic:    "last/will",
		WillMessage:  []byte("bye"),
		UsernameFlag: true,
		Username:     "user",
		PasswordFlag: true,
		Password:     []byte("pass"),
	}
	decoded := roundTrip(t, pkt).(*Connect)
	require.Equal(t, pkt.ClientID, decoded.ClientID)
	require.Equal(t, pkt.KeepAlive, decoded.KeepAlive)
	require.True(t, decoded.CleanSession)
	require.Equal(t, pkt.WillTopic, decoded.WillTopic)
	require.Equal(t, pkt.WillMessage, decoded.WillMessage)
	require.Equal(t, pkt.Username, decoded.Username)
	require.Equal(t, pkt.Password, decoded.Password)
}

func TestConnackRoundTrip(t *testing.T) {
	pkt := &Connack{SessionPresent: true, ReturnCode: ConnAccepted}
	decoded := roundTrip(t, pkt).(*Connack)
	require.True(t, decoded.SessionPresent)
	require.Equal(t, uint8(ConnAccepted), decoded.ReturnCode)
}

func TestPublishRoundTripQoS0(t *testing.T) {
	pkt := &Publish{Topic: "a/b", Payload: []byte("hello")}
	decoded := roundTrip(t, pkt).(*Publish)
	require.Equal(t, "a/b", decoded.Topic)
	require.Equal(t, []byte("hello"), decoded.Payload)
	require.Equal(t, uint16(0), decoded.PacketID)
}

func TestPublishRoundTripQoS2(t *testing.T) {
	pkt := &Publish{Topic: "a/b", QoS: 2, Dup: true, Retain: true, PacketID: 42, Payload: []byte("x")}
	decoded := roundTrip(t, pkt).(*Publish)
	require.Equal(t, uint16(42), decoded.PacketID)
	require.True(t, decoded.Dup)
	require.True(t, decoded.Retain)
	require.EqualValues(t, 2, decoded.QoS)
}

func TestAckRoundTrips(t *testing.T) {
	require.Equal(t, uint16(7), roundTrip(t, &Puback{PacketID: 7}).(*Puback).PacketID)
	require.Equal(t, uint16(7), roundTrip(t, &Pubrec{PacketID: 7}).(*Pubrec).PacketID)
	require.Equal(t, uint16(7), roundTrip(t, &Pubrel{PacketID: 7}).(*Pubrel).PacketID)
	require.Equal(t, uint16(7), roundTrip(t, &Pubcomp{PacketID: 7}).(*Pubcomp).PacketID)
}

func TestSubscribeRoundTrip(t *testing.T) {
	pkt := &Subscribe{
		PacketID: 9,
		Subscriptions: []SubscriptionRequest{
			{TopicFilter: "a/+", QoS: 1},
			{TopicFilter: "b/#", QoS: 2},
		},
	}
	decoded := roundTrip(t, pkt).(*Subscribe)
	require.Len(t, decoded.Subscriptions, 2)
	require.Equal(t, pkt.Subscriptions, decoded.Subscriptions)
}

func TestSubackRoundTrip(t *testing.T) {
	pkt := &Suback{PacketID: 9, ReturnCodes: []uint8{SubackQoS1, SubackFailure}}
	decoded := roundTrip(t, pkt).(*Suback)
	require.Equal(t, pkt.ReturnCodes, decoded.ReturnCodes)
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	pkt := &Unsubscribe{PacketID: 3, Topics: []string{"a/b", "c/d"}}
	decoded := roundTrip(t, pkt).(*Unsubscribe)
	require.Equal(t, pkt.Topics, decoded.Topics)
}

func TestPingAndDisconnectRoundTrip(t *testing.T) {
	roundTrip(t, &Pingreq{})
	roundTrip(t, &Pingresp{})
	roundTrip(t, &Disconnect{})
}

func TestReadPacketRejectsOversized(t *testing.T) {
	pkt := &Publish{Topic: "a", Payload: make([]byte, 1024)}
	var buf bytes.Buffer
	_, err := pkt.WriteTo(&buf)
	require.NoError(t, err)

	_, err = ReadPacket(&buf, 16)
	require.Error(t, err)
	var tooLarge PacketTooLargeError
	require.ErrorAs(t, err, &tooLarge)
}
