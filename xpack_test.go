package xpack

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/packer"
)

func driver(n int) []byte {
	buf := make([]byte, n)
	copy(buf, []byte{0xff, 0xff, 0xff, 0xff, 0x00, 0x80, 0x12, 0x00, 0x34, 0x00})
	copy(buf[10:], "XPACKTST")
	for i := 0x40; i+8 <= n-64; i += 8 {
		copy(buf[i:], []byte{0x50, 0x53, 0x90, 0xe8, 0, 0, 0x5b, 0x58})
		rel := 0x200 + (i/8%4)*0x20 - (i + 4)
		buf[i+4] = byte(rel)
		buf[i+5] = byte(rel >> 8)
	}

	return buf
}

func TestPackUnpack(t *testing.T) {
	orig := driver(12000)

	packed, err := Pack("driver.sys", orig, packer.WithBrute(true))
	require.NoError(t, err)
	require.Less(t, len(packed), len(orig))
	require.NoError(t, Test("driver.sys", packed))

	restored, err := Unpack("driver.sys", packed)
	require.NoError(t, err)
	require.Equal(t, orig, restored)

	_, err = Pack("driver.sys", packed)
	require.ErrorIs(t, err, errs.ErrCantPack)
}

func TestPackRefusals(t *testing.T) {
	_, err := Pack("notes.txt", bytes.Repeat([]byte("abc"), 4096))
	require.ErrorIs(t, err, errs.ErrUnknownExecutableFormat)

	_, err = Pack("driver.sys", driver(12000), packer.WithLevel(42))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = Unpack("driver.sys", driver(12000))
	require.ErrorIs(t, err, errs.ErrNotPacked)
}

func TestCompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 1500)

	for _, m := range []format.Method{
		format.MethodNRV2BLE32, format.MethodNRV2D8, format.MethodNRV2ELE16,
		format.MethodLZMA, format.MethodDeflate, format.MethodZstd, format.MethodLZ4,
	} {
		t.Run(m.String(), func(t *testing.T) {
			out, res, err := Compress(data, m, 7)
			require.NoError(t, err)
			require.Less(t, len(out), len(data))

			back, err := Decompress(out, len(data), m, res)
			require.NoError(t, err)
			require.Equal(t, data, back)
		})
	}
}

func TestCompressRandom(t *testing.T) {
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)

	_, _, err := Compress(data, format.MethodNRV2BLE32, 8)
	require.ErrorIs(t, err, errs.ErrNotCompressible)
}
