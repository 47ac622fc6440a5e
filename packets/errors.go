package packets

import "fmt"

// UnknownPacketTypeError is returned by ReadPacket when the fixed header
// names a control packet type this codec does not recognise.
type UnknownPacketTypeError struct {
	Type uint8
}

func (e UnknownPacketTypeError) Error() string {
	return fmt.Sprintf("packets: unknown control packet type %d", e.Type)
}

// PacketTooLargeError is returned by ReadPacket when the Remaining Length
// exceeds the caller-supplied (or spec) maximum.
type PacketTooLargeError struct {
	Size  int
	Limit int
}

func (e PacketTooLargeError) Error() string {
	return fmt.Sprintf("packets: packet of %d bytes exceeds limit of %d", e.Size, e.Limit)
}
