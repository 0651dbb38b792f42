package compress

import (
	"fmt"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// Level bounds accepted by every backend. LevelBest asks for the strongest setting.
const (
	MinLevel  = 1
	MaxLevel  = 10
	LevelBest = MaxLevel
)

// Backend is one codec family.
//
// Callers normally use the package level functions, which validate arguments,
// merge configuration and maintain the Result before delegating here.
type Backend interface {
	// Init prepares internal tables. It is idempotent and cheap to call again.
	Init() error
	// Version describes the backend implementation.
	Version() string
	// Compress encodes src into a newly allocated slice.
	// conf is fully merged and validated; res is reset and carries the debug fields.
	Compress(src []byte, cb Callback, method format.Method, level int, conf *Config, res *Result) ([]byte, error)
	// Decompress decodes src into dst and returns the number of bytes produced.
	Decompress(src, dst []byte, method format.Method, res *Result) (int, error)
	// TestOverlap checks whether the payload buf[srcOff:srcOff+srcLen] can be
	// decoded into buf[:dstLen] in place. tbuf is scratch space of at least
	// srcOff+srcLen bytes for backends that simulate the decode.
	TestOverlap(buf, tbuf []byte, srcOff, srcLen, dstLen int, method format.Method, res *Result) (int, error)
	// DecompressInPlace decodes buf[srcOff:srcOff+srcLen] into buf[:dstLen].
	DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, method format.Method, res *Result) (int, error)
}

var backends = map[format.Family]Backend{
	format.FamilyNRV:     &nrvBackend{},
	format.FamilyLZMA:    &lzmaBackend{},
	format.FamilyDeflate: &deflateBackend{},
	format.FamilyZstd:    &zstdBackend{},
	format.FamilyLZ4:     &lz4Backend{},
}

// GetBackend returns the backend serving method.
func GetBackend(method format.Method) (Backend, error) {
	if b, ok := backends[method.Family()]; ok {
		return b, nil
	}

	return nil, fmt.Errorf("%w: unsupported method %d (%s)", errs.ErrInvalidArgument, method, method)
}

// Init initializes every backend.
func Init() error {
	for family, b := range backends {
		if err := b.Init(); err != nil {
			return fmt.Errorf("init %s backend: %w", family, err)
		}
	}

	return nil
}

// Version returns the version string of the backend serving method, or "" if there is none.
func Version(method format.Method) string {
	b, err := GetBackend(method)
	if err != nil {
		return ""
	}

	return b.Version()
}

// MaxCompressedSize returns a destination size that any backend output for n input bytes fits in.
func MaxCompressedSize(n int) int {
	return n + n/8 + 256
}

// Compress compresses src with method at level and copies the result into dst.
//
// len(dst) is the capacity limit and is never exceeded. conf may be nil to use
// the defaults; otherwise its set fields are overlaid on the defaults. res, if
// not nil, is reset and filled for the matching Decompress call. cb, if not nil,
// receives non-decreasing progress and is never called after Compress returns.
//
// Returns:
//   - int: Compressed length (also when the data is not compressible)
//   - error: ErrNotCompressible if the output is not smaller than src (the output is still
//     copied when it fits), ErrOutputOverrun if it does not fit dst, ErrInvalidArgument for bad
//     arguments, or a backend failure
func Compress(src, dst []byte, cb Callback, method format.Method, level int, conf *Config, res *Result) (int, error) {
	b, err := GetBackend(method)
	if err != nil {
		return 0, err
	}
	if level < MinLevel || level > MaxLevel {
		return 0, fmt.Errorf("%w: level %d not in [%d, %d]", errs.ErrInvalidArgument, level, MinLevel, MaxLevel)
	}

	merged := DefaultConfig()
	merged.Overlay(conf)
	if err := merged.Validate(); err != nil {
		return 0, err
	}

	if err := b.Init(); err != nil {
		return 0, err
	}

	if res == nil {
		res = &Result{}
	}
	res.Reset()
	res.Debug = DebugResult{Method: method, Level: level, ULen: len(src)}

	prog := newProgress(cb, len(src))
	out, err := b.Compress(src, prog.callback(), method, level, merged, res)
	if err != nil {
		prog.done = true
		return 0, fmt.Errorf("compress %s: %w", method, err)
	}
	res.Debug.CLen = len(out)
	prog.finish()

	if len(out) >= len(src) {
		if len(out) <= len(dst) {
			copy(dst, out)
		}

		return len(out), errs.ErrNotCompressible
	}
	if len(out) > len(dst) {
		return len(out), fmt.Errorf("%w: %d bytes do not fit a %d byte buffer", errs.ErrOutputOverrun, len(out), len(dst))
	}

	return copy(dst, out), nil
}

// Decompress decodes src, produced by Compress with method, into dst.
//
// res must be the Result of that Compress call. It may be nil for backends that
// need no encode-time parameters; a Result recorded for another method is rejected.
//
// Returns:
//   - int: Number of bytes written to dst
//   - error: ErrInputOverrun, ErrOutputOverrun, ErrLookbehindOverrun, ErrEOFNotFound,
//     ErrInputNotConsumed for corrupt data, ErrInvalidArgument for mismatched arguments
func Decompress(src, dst []byte, method format.Method, res *Result) (int, error) {
	b, err := checkDecode(method, res)
	if err != nil {
		return 0, err
	}

	n, err := b.Decompress(src, dst, method, res)
	if err != nil {
		return n, fmt.Errorf("decompress %s: %w", method, err)
	}

	return n, nil
}

// TestOverlap reports whether the payload at buf[srcOff:srcOff+srcLen] can be
// decompressed in place into buf[:dstLen] without the output overwriting input
// that has not been consumed yet. buf is not modified. tbuf is scratch space of
// at least srcOff+srcLen bytes; it may be nil for NRV and LZ4.
//
// Returns:
//   - int: Number of bytes the decode produces
//   - error: ErrOutputOverrun if the geometry is unsafe, or a decode failure
func TestOverlap(buf, tbuf []byte, srcOff, srcLen, dstLen int, method format.Method, res *Result) (int, error) {
	b, err := checkDecode(method, res)
	if err != nil {
		return 0, err
	}
	if err := checkGeometry(buf, srcOff, srcLen, dstLen); err != nil {
		return 0, err
	}

	n, err := b.TestOverlap(buf, tbuf, srcOff, srcLen, dstLen, method, res)
	if err != nil {
		return n, fmt.Errorf("test overlap %s (src_off %d, src_len %d, dst_len %d): %w",
			method, srcOff, srcLen, dstLen, err)
	}

	return n, nil
}

// DecompressInPlace decodes buf[srcOff:srcOff+srcLen] into buf[:dstLen].
// Only geometries accepted by TestOverlap are guaranteed to decode correctly.
func DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, method format.Method, res *Result) (int, error) {
	b, err := checkDecode(method, res)
	if err != nil {
		return 0, err
	}
	if err := checkGeometry(buf, srcOff, srcLen, dstLen); err != nil {
		return 0, err
	}

	n, err := b.DecompressInPlace(buf, srcOff, srcLen, dstLen, method, res)
	if err != nil {
		return n, fmt.Errorf("decompress in place %s: %w", method, err)
	}

	return n, nil
}

func checkDecode(method format.Method, res *Result) (Backend, error) {
	b, err := GetBackend(method)
	if err != nil {
		return nil, err
	}
	if res != nil && res.Debug.Method != 0 && res.Debug.Method != method {
		return nil, fmt.Errorf("%w: result was produced by %s, not %s", errs.ErrInvalidArgument, res.Debug.Method, method)
	}

	return b, b.Init()
}

func checkGeometry(buf []byte, srcOff, srcLen, dstLen int) error {
	if srcOff < 0 || srcLen < 0 || dstLen < 0 || srcOff+srcLen > len(buf) || dstLen > len(buf) {
		return fmt.Errorf("%w: src_off %d, src_len %d, dst_len %d outside a %d byte buffer",
			errs.ErrInvalidArgument, srcOff, srcLen, dstLen, len(buf))
	}

	return nil
}
