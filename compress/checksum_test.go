package compress

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdler32(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", nil, 0x00000001},
		{"hello world", []byte("hello world"), 0x1a0b045d},
		{"2048 zero bytes", make([]byte, 2048), 0x08000001},
		{"64KiB lcg", lcgBytes(65536), 0xa5540ca0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Adler32(tt.data, AdlerInit))
		})
	}
}

func TestAdler32Incremental(t *testing.T) {
	data := lcgBytes(20000)
	whole := Adler32(data, AdlerInit)

	for _, split := range []int{0, 1, 5551, 5552, 5553, 11104, 19999, 20000} {
		sum := Adler32(data[:split], AdlerInit)
		sum = Adler32(data[split:], sum)
		require.Equal(t, whole, sum, "split at %d", split)
	}
}

func TestCRC32(t *testing.T) {
	require.Equal(t, uint32(0), CRC32(nil, CRCInit))
	require.Equal(t, uint32(0x0d4a1185), CRC32([]byte("hello world"), CRCInit))
	require.Equal(t, uint32(0x1f50c2e7), CRC32(lcgBytes(65536), CRCInit))

	data := lcgBytes(1000)
	require.Equal(t, CRC32(data, CRCInit), CRC32(data[300:], CRC32(data[:300], CRCInit)))
}
