package packets

import (
	"io"
)

// FixedHeader is the 2-5 byte header present on every MQTT control packet:
// packet type + flags, followed by the Remaining Length variable byte
// integer.
type FixedHeader struct {
	Type            uint8
	Flags           uint8
	RemainingLength int
}

func (h FixedHeader) appendBytes(dst []byte) []byte {
	dst = append(dst, (h.Type<<4)|(h.Flags&0x0F))
	return appendVarInt(dst, h.RemainingLength)
}

// decodeFixedHeader reads and decodes a fixed header from r.
func decodeFixedHeader(r io.Reader) (FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FixedHeader{}, err
	}
	remaining, err := decodeVarInt(r)
	if err != nil {
		return FixedHeader{}, err
	}
	return FixedHeader{
		Type:            buf[0] >> 4,
		Flags:           buf[0] & 0x0F,
		RemainingLength: remaining,
	}, nil
}
