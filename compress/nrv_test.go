package compress

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)

	return b
}

func TestNRVDecodeGolden(t *testing.T) {
	plain := []byte("abracadabra abracadabra abracadabra")

	tests := []struct {
		method format.Method
		stream string
	}{
		{format.MethodNRV2B8, "fe61627261636164fb06200b0840000000000120ff"},
		{format.MethodNRV2BLE16, "fbfe6162726163616406200b4008000000002001ff"},
		{format.MethodNRV2DLE32, "0921f6fe616272616361640c20172a499224ff"},
		{format.MethodNRV2ELE16, "ebfe616272616361640d2017840549929524ff"},
	}

	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			out := make([]byte, len(plain))
			n, err := Decompress(mustHex(t, tt.stream), out, tt.method, nil)
			require.NoError(t, err)
			require.Equal(t, len(plain), n)
			require.Equal(t, plain, out)
		})
	}
}

func TestNRVEncodeEmpty(t *testing.T) {
	v, err := nrvVariantOf(format.MethodNRV2BLE16)
	require.NoError(t, err)

	enc := newNRVEncoder(v, nil, nrvLevels[5], 1<<20, 1<<16)
	defer enc.close()

	// Only the terminator: a match flag, the end marker prefix and 0xff.
	require.Equal(t, mustHex(t, "0000000004000080ff"), enc.encode(nil))
	require.Equal(t, NRVResult{}, enc.stats)
}

func TestNRVGammaRoundTrip(t *testing.T) {
	for _, width := range []int{1, 2, 4} {
		w := nrvBitWriter{width: width}
		values := []uint32{2, 3, 4, 5, 7, 8, 100, 255, 256, 4097, 65535, nrvEndMarker}
		for _, v := range values {
			w.gamma11(v)
		}
		w.putBit(1)
		stream := w.finish()

		r := nrvBitReader{src: stream, width: width}
		for _, v := range values {
			got, err := r.gamma(nrvEndMarker)
			require.NoError(t, err)
			require.Equal(t, v, got, "width %d", width)
		}
		require.Equal(t, uint32(1), r.bit())
		require.Equal(t, len(stream), r.ip)
	}
}

// bitsWritten counts the bits put into a writer that only received bits.
func bitsWritten(w *nrvBitWriter) int {
	words := len(w.out) / w.width
	if w.n == 0 {
		return words * w.width * 8
	}

	return (words-1)*w.width*8 + w.n
}

func TestNRVGammaBits(t *testing.T) {
	for v := uint32(2); v < 5000; v++ {
		w := nrvBitWriter{width: 4}
		w.gamma11(v)
		require.Equal(t, gamma11Bits(v), bitsWritten(&w), "gamma11 %d", v)

		w = nrvBitWriter{width: 4}
		w.gamma12(v)
		require.Equal(t, gamma12Bits(v), bitsWritten(&w), "gamma12 %d", v)
	}
}

func TestNRVStats(t *testing.T) {
	src := textBytes(8000)
	_, res := compressOrFail(t, src, format.MethodNRV2ELE32, 6, nil)

	st := res.NRV
	require.Positive(t, st.FirstOffset)
	require.Positive(t, st.MinOffset)
	require.GreaterOrEqual(t, st.MaxOffset, st.MinOffset)
	require.GreaterOrEqual(t, st.MinMatch, 2)
	require.GreaterOrEqual(t, st.MaxMatch, st.MinMatch)
	require.LessOrEqual(t, st.MaxOffset, 8000)
}

func TestNRVMaxOffset(t *testing.T) {
	src := textBytes(20000)

	conf := &Config{NRV: DefaultConfig().NRV}
	require.NoError(t, conf.NRV.MaxOffset.Set(0xd00))
	require.NoError(t, conf.NRV.MaxMatch.Set(64))

	packed, res := compressOrFail(t, src, format.MethodNRV2BLE16, 8, conf)
	require.LessOrEqual(t, res.NRV.MaxOffset, 0xd00)
	require.LessOrEqual(t, res.NRV.MaxMatch, 64)

	out := make([]byte, len(src))
	_, err := Decompress(packed, out, format.MethodNRV2BLE16, res)
	require.NoError(t, err)
	require.Equal(t, src, out)
}

func TestNRVOverlapGuard(t *testing.T) {
	// Distinct bytes: eight literals, then the terminator.
	plain := []byte("abcdefgh")
	v, err := nrvVariantOf(format.MethodNRV2B8)
	require.NoError(t, err)
	enc := newNRVEncoder(v, plain, nrvLevels[1], 1<<20, 1<<16)
	stream := enc.encode(nil)
	enc.close()

	for overhead := 0; overhead <= len(stream); overhead++ {
		srcOff := len(plain) + overhead - len(stream)
		if srcOff < 0 {
			continue
		}
		buf := make([]byte, srcOff+len(stream))
		copy(buf[srcOff:], stream)

		_, err := nrvDecode(v, buf[srcOff:], nil, len(plain), srcOff)
		if srcOff >= len(plain) {
			require.NoError(t, err, "overhead %d", overhead)
		}
		if err != nil {
			require.ErrorIs(t, err, errs.ErrOutputOverrun)
			continue
		}

		n, err := nrvDecode(v, buf[srcOff:], buf[:len(plain)], len(plain), -1)
		require.NoError(t, err)
		require.Equal(t, len(plain), n)
		require.Equal(t, plain, buf[:len(plain)])
	}
}

func TestNRVLookbehind(t *testing.T) {
	// NRV2B_8 stream whose first token is a match at offset 1.
	// Flag byte: 0 (match), gamma 1,1 -> M=3, length bits 0,1 -> code 1.
	w := nrvBitWriter{width: 1}
	w.putBit(0)
	w.gamma11(3)
	w.putByte(0)
	w.putBit(0)
	w.putBit(1)
	stream := w.finish()

	v, err := nrvVariantOf(format.MethodNRV2B8)
	require.NoError(t, err)
	_, err = nrvDecode(v, stream, make([]byte, 16), 16, -1)
	require.ErrorIs(t, err, errs.ErrLookbehindOverrun)
}
