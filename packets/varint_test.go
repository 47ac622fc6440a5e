package packets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []int{0, 1, 127, 128, 16383, 16384, 2097151, 2097152, maxRemainingLength}
	for _, v := range cases {
		buf := appendVarInt(nil, v)
		got, err := decodeVarInt(bytes.NewReader(buf))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestVarIntOutOfRangePanics(t *testing.T) {
	require.Panics(t, func() { appendVarInt(nil, maxRemainingLength+1) })
}
