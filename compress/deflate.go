package compress

import (
	"bufio"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/internal/pool"
)

// deflateBackend produces raw RFC 1951 streams without a zlib wrapper.
type deflateBackend struct{}

var _ Backend = (*deflateBackend)(nil)

func (b *deflateBackend) Init() error { return nil }

func (b *deflateBackend) Version() string { return "deflate (github.com/klauspost/compress/flate)" }

func (b *deflateBackend) Compress(src []byte, cb Callback, _ format.Method, level int, conf *Config, res *Result) ([]byte, error) {
	c := &conf.Deflate

	out := pool.GetStreamBuffer()
	defer pool.PutStreamBuffer(out)

	w, err := newDeflateWriter(out, level, c.WindowBits.Value(), c.Strategy.Value())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidArgument, err)
	}
	if _, err := io.Copy(w, &countingReader{r: &inPlaceReader{buf: src, end: len(src)}, total: len(src), cb: cb}); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrError, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrError, err)
	}

	res.Deflate = DeflateResult{WindowBits: c.WindowBits.Value(), Strategy: c.Strategy.Value()}

	return out.Clone(), nil
}

func newDeflateWriter(w io.Writer, level, windowBits, strategy int) (*flate.Writer, error) {
	switch strategy {
	case StrategyHuffmanOnly:
		return flate.NewWriter(w, flate.HuffmanOnly)
	case StrategyRLE:
		return flate.NewWriterWindow(w, flate.MinCustomWindowSize)
	}
	if windowBits < 15 {
		return flate.NewWriterWindow(w, 1<<windowBits)
	}

	return flate.NewWriter(w, min(level, flate.BestCompression))
}

func (b *deflateBackend) Decompress(src, dst []byte, _ format.Method, _ *Result) (int, error) {
	return decodeStream(deflateDecoder, src, dst)
}

func (b *deflateBackend) TestOverlap(buf, tbuf []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return testInPlace(deflateDecoder, buf, tbuf, srcOff, srcLen, dstLen)
}

func (b *deflateBackend) DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return decodeInPlace(deflateDecoder, buf, srcOff, srcLen, dstLen, false)
}

// deflateDecoder reads through io.ByteReader, so it never consumes input past
// the final block. Running out of input before that block is a truncation,
// which the library reports as a clean end when the cut falls between blocks.
func deflateDecoder(r io.Reader, w io.Writer) error {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	t := &endTracker{r: br}
	zr := flate.NewReader(t)
	defer zr.Close()

	if _, err := io.Copy(w, zr); err != nil {
		return err
	}
	if t.hitEnd {
		return fmt.Errorf("%w: deflate stream has no final block", errs.ErrEOFNotFound)
	}

	return nil
}
