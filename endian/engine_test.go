package endian

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/format"
)

func TestGetLittleEndianEngine(t *testing.T) {
	engine := GetLittleEndianEngine()
	require.Equal(t, binary.LittleEndian, engine)

	b := make([]byte, 2)
	engine.PutUint16(b, 0x0102)
	require.Equal(t, []byte{0x02, 0x01}, b, "little endian should put LSB first")
	require.Equal(t, uint16(0x0102), engine.Uint16(b))
}

func TestGetBigEndianEngine(t *testing.T) {
	engine := GetBigEndianEngine()
	require.Equal(t, binary.BigEndian, engine)

	b := make([]byte, 2)
	engine.PutUint16(b, 0x0102)
	require.Equal(t, []byte{0x01, 0x02}, b, "big endian should put MSB first")
	require.Equal(t, uint16(0x0102), engine.Uint16(b))
}

func TestForExecutable(t *testing.T) {
	tests := []struct {
		name string
		exe  format.Executable
		want EndianEngine
	}{
		{"dos/com", format.ExeDOSCOM, binary.LittleEndian},
		{"dos/sys", format.ExeDOSSYS, binary.LittleEndian},
		{"dos/exe", format.ExeDOSEXE, binary.LittleEndian},
		{"atari/tos", format.ExeAtariTOS, binary.BigEndian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ForExecutable(tt.exe))
		})
	}
}

func TestUint24(t *testing.T) {
	le := GetLittleEndianEngine()
	be := GetBigEndianEngine()

	b := make([]byte, 4)
	PutUint24(le, b, 0xaabbccdd)
	require.Equal(t, []byte{0xdd, 0xcc, 0xbb, 0x00}, b, "only the low 24 bits are written")
	require.Equal(t, uint32(0xbbccdd), Uint24(le, b))

	PutUint24(be, b, 0x123456)
	require.Equal(t, []byte{0x12, 0x34, 0x56, 0x00}, b)
	require.Equal(t, uint32(0x123456), Uint24(be, b))

	require.Panics(t, func() { Uint24(le, []byte{1, 2}) })
}
