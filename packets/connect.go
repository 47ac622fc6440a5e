package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Connect is the MQTT 3.1.1 CONNECT control packet.
type Connect struct {
	CleanSession bool
	WillFlag     bool
	WillQoS      uint8
	WillRetain   bool
	KeepAlive    uint16

	ClientID string

	WillTopic   string
	WillMessage []byte

	UsernameFlag bool
	Username     string
	PasswordFlag bool
	Password     []byte
}

func (p *Connect) Type() uint8 { return CONNECT }

func (p *Connect) WriteTo(w io.Writer) (int64, error) {
	var flags uint8
	if p.CleanSession {
		flags |= 0x02
	}
	if p.WillFlag {
		flags |= 0x04
		flags |= (p.WillQoS & 0x03) << 3
		if p.WillRetain {
			flags |= 0x20
		}
	}
	if p.PasswordFlag {
		flags |= 0x40
	}
	if p.UsernameFlag {
		flags |= 0x80
	}

	var vh []byte
	vh = appendString(vh, "MQTT")
	vh = append(vh, 4) // protocol level
	vh = append(vh, flags)
	vh = append(vh, byte(p.KeepAlive>>8), byte(p.KeepAlive))

	var payload []byte
	payload = appendString(payload, p.ClientID)
	if p.WillFlag {
		payload = appendString(payload, p.WillTopic)
		payload = appendBinary(payload, p.WillMessage)
	}
	if p.UsernameFlag {
		payload = appendString(payload, p.Username)
	}
	if p.PasswordFlag {
		payload = appendBinary(payload, p.Password)
	}

	header := FixedHeader{Type: CONNECT, RemainingLength: len(vh) + len(payload)}
	buf := header.appendBytes(nil)
	buf = append(buf, vh...)
	buf = append(buf, payload...)
	n, err := w.Write(buf)
	return int64(n), err
}

// DecodeConnect decodes a CONNECT packet's variable header and payload.
func DecodeConnect(buf []byte) (*Connect, error) {
	name, n, err := decodeString(buf)
	if err != nil {
		return nil, fmt.Errorf("packets: connect protocol name: %w", err)
	}
	buf = buf[n:]
	if name != "MQTT" {
		return nil, fmt.Errorf("packets: unsupported protocol name %q", name)
	}
	if len(buf) < 4 {
		return nil, fmt.Errorf("packets: connect packet too short")
	}
	level := buf[0]
	if level != 4 {
		return nil, fmt.Errorf("packets: unsupported protocol level %d", level)
	}
	flags := buf[1]
	keepAlive := binary.BigEndian.Uint16(buf[2:4])
	buf = buf[4:]

	p := &Connect{
		CleanSession: flags&0x02 != 0,
		WillFlag:     flags&0x04 != 0,
		WillQoS:      (flags >> 3) & 0x03,
		WillRetain:   flags&0x20 != 0,
		PasswordFlag: flags&0x40 != 0,
		UsernameFlag: flags&0x80 != 0,
		KeepAlive:    keepAlive,
	}

	clientID, n, err := decodeString(buf)
	if err != nil {
		return nil, fmt.Errorf("packets: connect client id: %w", err)
	}
	p.ClientID = clientID
	buf = buf[n:]

	if p.WillFlag {
		topic, n, err := decodeString(buf)
		if err != nil {
			return nil, fmt.Errorf("packets: connect will topic: %w", err)
		}
		p.WillTopic = topic
		buf = buf[n:]
		msg, n, err := decodeBinary(buf)
		if err != nil {
			return nil, fmt.Errorf("packets: connect will message: %w", err)
		}
		p.WillMessage = msg
		buf = buf[n:]
	}
	if p.UsernameFlag {
		user, n, err := decodeString(buf)
		if err != nil {
			return nil, fmt.Errorf("packets: connect username: %w", err)
		}
		p.Username = user
		buf = buf[n:]
	}
	if p.PasswordFlag {
		pass, n, err := decodeBinary(buf)
		if err != nil {
			return nil, fmt.Errorf("packets: connect password: %w", err)
		}
		p.Password = pass
		buf = buf[n:]
	}
	return p, nil
}
