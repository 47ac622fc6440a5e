package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SubscriptionRequest is one (topic filter, requested QoS) pair in a
// SUBSCRIBE packet.
type SubscriptionRequest struct {
	TopicFilter string
	QoS         uint8
}

// Subscribe is the MQTT 3.1.1 SUBSCRIBE control packet. Its fixed header
// flags field is reserved as 0x02.
type Subscribe struct {
	PacketID      uint16
	Subscriptions []SubscriptionRequest
}

func (p *Subscribe) Type() uint8 { return SUBSCRIBE }

func (p *Subscribe) WriteTo(w io.Writer) (int64, error) {
	var vh []byte
	vh = append(vh, byte(p.PacketID>>8), byte(p.PacketID))
	for _, s := range p.Subscriptions {
		vh = appendString(vh, s.TopicFilter)
		vh = append(vh, s.QoS&0x03)
	}
	header := FixedHeader{Type: SUBSCRIBE, Flags: 0x02, RemainingLength: len(vh)}
	buf := header.appendBytes(nil)
	buf = append(buf, vh...)
	n, err := w.Write(buf)
	return int64(n), err
}

// DecodeSubscribe decodes a SUBSCRIBE variable header and payload.
func DecodeSubscribe(buf []byte) (*Subscribe, error) {
	if len(buf) < 2 {
		return nil, errShortPacket("SUBSCRIBE")
	}
	p := &Subscribe{PacketID: binary.BigEndian.Uint16(buf[:2])}
	buf = buf[2:]
	for len(buf) > 0 {
		filter, n, err := decodeString(buf)
		if err != nil {
			return nil, fmt.Errorf("packets: subscribe topic filter: %w", err)
		}
		buf = buf[n:]
		if len(buf) < 1 {
			return nil, errShortPacket("SUBSCRIBE")
		}
		qos := buf[0] & 0x03
		buf = buf[1:]
		p.Subscriptions = append(p.Subscriptions, SubscriptionRequest{TopicFilter: filter, QoS: qos})
	}
	if len(p.Subscriptions) == 0 {
		return nil, fmt.Errorf("packets: subscribe packet has no subscriptions")
	}
	return p, nil
}

// Suback is the server's response to a SUBSCRIBE.
type Suback struct {
	PacketID    uint16
	ReturnCodes []uint8
}

func (p *Suback) Type() uint8 { return SUBACK }

func (p *Suback) WriteTo(w io.Writer) (int64, error) {
	vh := []byte{byte(p.PacketID >> 8), byte(p.PacketID)}
	vh = append(vh, p.ReturnCodes...)
	header := FixedHeader{Type: SUBACK, RemainingLength: len(vh)}
	buf := header.appendBytes(nil)
	buf = append(buf, vh...)
	n, err := w.Write(buf)
	return int64(n), err
}

// DecodeSuback decodes a SUBACK variable header and payload.
func DecodeSuback(buf []byte) (*Suback, error) {
	if len(buf) < 2 {
		return nil, errShortPacket("SUBACK")
	}
	p := &Suback{PacketID: binary.BigEndian.Uint16(buf[:2])}
	p.ReturnCodes = append([]byte(nil), buf[2:]...)
	return p, nil
}
