package compress

import (
	"fmt"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// nrvEndMarker is the offset prefix value that, combined with a 0xff offset byte,
// terminates an NRV stream.
const nrvEndMarker = 0x1000002

// nrvVariant describes one NRV method: the token grammar and the bit-buffer width.
type nrvVariant struct {
	kind  byte // 'b', 'd' or 'e'
	width int  // bit buffer size in bytes: 1, 2 or 4
}

func nrvVariantOf(method format.Method) (nrvVariant, error) {
	var v nrvVariant
	switch {
	case method.IsNRV2B():
		v.kind = 'b'
	case method.IsNRV2D():
		v.kind = 'd'
	case method.IsNRV2E():
		v.kind = 'e'
	default:
		return v, fmt.Errorf("%w: %s is not an NRV method", errs.ErrInvalidArgument, method)
	}
	v.width = method.BitWidth() / 8

	return v, nil
}

// far returns the offset above which every match is one byte longer than coded.
func (v nrvVariant) far() int {
	if v.kind == 'b' {
		return 0xd00
	}

	return 0x500
}

// nrvLevel holds the match finder effort for one compression level.
type nrvLevel struct {
	depth int  // hash chain candidates examined per position
	lazy  bool // look one position ahead before committing a match
}

var nrvLevels = [MaxLevel + 1]nrvLevel{
	1:  {depth: 4},
	2:  {depth: 8},
	3:  {depth: 16},
	4:  {depth: 32},
	5:  {depth: 48, lazy: true},
	6:  {depth: 96, lazy: true},
	7:  {depth: 256, lazy: true},
	8:  {depth: 1024, lazy: true},
	9:  {depth: 4096, lazy: true},
	10: {depth: 16384, lazy: true},
}

type nrvBackend struct{}

var _ Backend = (*nrvBackend)(nil)

func (b *nrvBackend) Init() error { return nil }

func (b *nrvBackend) Version() string { return "nrv 1.03 (native)" }

func (b *nrvBackend) Compress(src []byte, cb Callback, method format.Method, level int, conf *Config, res *Result) ([]byte, error) {
	v, err := nrvVariantOf(method)
	if err != nil {
		return nil, err
	}

	enc := newNRVEncoder(v, src, nrvLevels[level], conf.NRV.MaxOffset.Value(), conf.NRV.MaxMatch.Value())
	defer enc.close()
	out := enc.encode(cb)
	res.NRV = enc.stats

	return out, nil
}

func (b *nrvBackend) Decompress(src, dst []byte, method format.Method, _ *Result) (int, error) {
	v, err := nrvVariantOf(method)
	if err != nil {
		return 0, err
	}

	return nrvDecode(v, src, dst, len(dst), -1)
}

func (b *nrvBackend) TestOverlap(buf, _ []byte, srcOff, srcLen, dstLen int, method format.Method, _ *Result) (int, error) {
	v, err := nrvVariantOf(method)
	if err != nil {
		return 0, err
	}

	return nrvDecode(v, buf[srcOff:srcOff+srcLen], nil, dstLen, srcOff)
}

func (b *nrvBackend) DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, method format.Method, _ *Result) (int, error) {
	v, err := nrvVariantOf(method)
	if err != nil {
		return 0, err
	}

	return nrvDecode(v, buf[srcOff:srcOff+srcLen], buf[:dstLen], dstLen, -1)
}
