package packets

import "fmt"

func errShortPacket(kind string) error {
	return fmt.Errorf("packets: %s packet too short", kind)
}
