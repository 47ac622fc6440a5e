package packets

import (
	"encoding/binary"
	"io"
)

// Publish is the MQTT 3.1.1 PUBLISH control packet.
type Publish struct {
	Dup      bool
	QoS      uint8
	Retain   bool
	Topic    string
	PacketID uint16 // only meaningful when QoS > 0
	Payload  []byte
}

func (p *Publish) Type() uint8 { return PUBLISH }

func (p *Publish) WriteTo(w io.Writer) (int64, error) {
	var vh []byte
	vh = appendString(vh, p.Topic)
	if p.QoS > 0 {
		vh = append(vh, byte(p.PacketID>>8), byte(p.PacketID))
	}

	var flags uint8
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := FixedHeader{Type: PUBLISH, Flags: flags, RemainingLength: len(vh) + len(p.Payload)}
	buf := header.appendBytes(nil)
	buf = append(buf, vh...)
	buf = append(buf, p.Payload...)
	n, err := w.Write(buf)
	return int64(n), err
}

// DecodePublish decodes a PUBLISH packet given its fixed header (which
// carries the QoS/Dup/Retain flags).
func DecodePublish(buf []byte, header FixedHeader) (*Publish, error) {
	p := &Publish{
		Dup:    header.Flags&0x08 != 0,
		QoS:    (header.Flags >> 1) & 0x03,
		Retain: header.Flags&0x01 != 0,
	}
	topic, n, err := decodeString(buf)
	if err != nil {
		return nil, err
	}
	p.Topic = topic
	buf = buf[n:]

	if p.QoS > 0 {
		if len(buf) < 2 {
			return nil, errShortPacket("PUBLISH")
		}
		p.PacketID = binary.BigEndian.Uint16(buf[:2])
		buf = buf[2:]
	}
	p.Payload = append([]byte(nil), buf...)
	return p, nil
}
