package compress

import (
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/internal/pool"
)

// lzmaBackend produces classic .lzma streams: a 13 byte header carrying the
// properties, the dictionary capacity and the uncompressed size, then the
// range coded data.
type lzmaBackend struct{}

var _ Backend = (*lzmaBackend)(nil)

func (b *lzmaBackend) Init() error { return nil }

func (b *lzmaBackend) Version() string { return "lzma (github.com/ulikunitz/xz)" }

func (b *lzmaBackend) Compress(src []byte, cb Callback, _ format.Method, _ int, conf *Config, res *Result) ([]byte, error) {
	c := &conf.LZMA
	props := lzma.Properties{
		LC: c.LitContextBits.Value(),
		LP: c.LitPosBits.Value(),
		PB: c.PosBits.Value(),
	}
	dictCap := lzmaDictCap(c.DictSize.Value(), len(src))
	// the library's binary tree matcher emits distances its own reader
	// rejects on larger inputs, so every level uses the hash table
	matcher := lzma.HashTable4

	out := pool.GetStreamBuffer()
	defer pool.PutStreamBuffer(out)

	wc := lzma.WriterConfig{
		Properties:   &props,
		DictCap:      dictCap,
		Matcher:      matcher,
		SizeInHeader: true,
		Size:         int64(len(src)),
		EOSMarker:    len(src) == 0,
	}
	w, err := wc.NewWriter(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidArgument, err)
	}
	if _, err := io.Copy(w, &countingReader{r: &inPlaceReader{buf: src, end: len(src)}, total: len(src), cb: cb}); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrError, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrError, err)
	}

	res.LZMA = LZMAResult{
		PosBits:           props.PB,
		LitPosBits:        props.LP,
		LitContextBits:    props.LC,
		DictSize:          uint32(dictCap),
		FastMode:          1,
		NumFastBytes:      c.NumFastBytes.Value(),
		MatchFinderCycles: c.MatchFinderCycles.Value(),
		NumProbs:          lzmaNumProbs(props.LC, props.LP),
	}

	return out.Clone(), nil
}

func (b *lzmaBackend) Decompress(src, dst []byte, _ format.Method, res *Result) (int, error) {
	if err := lzmaCheckHeader(src, res); err != nil {
		return 0, err
	}

	return decodeStream(lzmaDecoder, src, dst)
}

func (b *lzmaBackend) TestOverlap(buf, tbuf []byte, srcOff, srcLen, dstLen int, _ format.Method, res *Result) (int, error) {
	if err := lzmaCheckHeader(buf[srcOff:srcOff+srcLen], res); err != nil {
		return 0, err
	}

	return testInPlace(lzmaDecoder, buf, tbuf, srcOff, srcLen, dstLen)
}

func (b *lzmaBackend) DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, _ format.Method, res *Result) (int, error) {
	if err := lzmaCheckHeader(buf[srcOff:srcOff+srcLen], res); err != nil {
		return 0, err
	}

	return decodeInPlace(lzmaDecoder, buf, srcOff, srcLen, dstLen, false)
}

func lzmaDecoder(r io.Reader, w io.Writer) error {
	zr, err := lzma.ReaderConfig{DictCap: lzma.MinDictCap}.NewReader(r)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, zr)

	return err
}

// lzmaDictCap clamps the configured dictionary to the library minimum and to
// what the input can use.
func lzmaDictCap(configured uint32, n int) int {
	dictCap := int(configured)
	if n < dictCap {
		dictCap = n
	}

	return max(dictCap, lzma.MinDictCap)
}

// lzmaCheckHeader checks that the stream was produced with the parameters
// recorded in res. The loader decodes with those parameters, not with the
// header, so a mismatch is an argument error.
func lzmaCheckHeader(src []byte, res *Result) error {
	if res == nil {
		return fmt.Errorf("%w: lzma decoding needs the compression result", errs.ErrInvalidArgument)
	}
	if len(src) < lzma.HeaderLen {
		return fmt.Errorf("%w: lzma header needs %d bytes, have %d", errs.ErrInputOverrun, lzma.HeaderLen, len(src))
	}
	props, err := lzma.PropertiesForCode(src[0])
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrError, err)
	}
	want := res.LZMA
	if want.NumProbs == 0 {
		return nil
	}
	if props.LC != want.LitContextBits || props.LP != want.LitPosBits || props.PB != want.PosBits {
		return fmt.Errorf("%w: stream properties %s do not match lc %d lp %d pb %d",
			errs.ErrInvalidArgument, props.String(), want.LitContextBits, want.LitPosBits, want.PosBits)
	}

	return nil
}
