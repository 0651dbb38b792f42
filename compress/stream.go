package compress

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/xpack/errs"
)

// streamDecoder decodes a whole stream from r into w.
// It must return once the stream terminator has been decoded.
type streamDecoder func(r io.Reader, w io.Writer) error

// inPlaceReader serves the compressed payload straight out of the shared
// buffer and counts how much of it has been consumed.
type inPlaceReader struct {
	buf  []byte
	off  int // payload start
	end  int // payload end
	used int // bytes consumed so far
}

func (r *inPlaceReader) Read(p []byte) (int, error) {
	if r.off+r.used >= r.end {
		return 0, io.EOF
	}
	n := copy(p, r.buf[r.off+r.used:r.end])
	r.used += n

	return n, nil
}

func (r *inPlaceReader) ReadByte() (byte, error) {
	if r.off+r.used >= r.end {
		return 0, io.EOF
	}
	c := r.buf[r.off+r.used]
	r.used++

	return c, nil
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// endTracker records whether the decoder ran into the end of its input.
// Decoders that stop right after their terminator never do, so hitting the
// end means the stream was cut short even when the library reports success.
type endTracker struct {
	r      byteReader
	hitEnd bool
}

func (t *endTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if errors.Is(err, io.EOF) {
		t.hitEnd = true
	}

	return n, err
}

func (t *endTracker) ReadByte() (byte, error) {
	c, err := t.r.ReadByte()
	if errors.Is(err, io.EOF) {
		t.hitEnd = true
	}

	return c, err
}

// inPlaceWriter writes decoded bytes at the front of the shared buffer.
// With guard set, a write that would reach payload bytes the reader has not
// consumed yet fails instead.
type inPlaceWriter struct {
	buf    []byte
	op     int
	dstLen int
	guard  bool
	r      *inPlaceReader
}

func (w *inPlaceWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if w.op+len(p) > w.dstLen {
		return 0, fmt.Errorf("%w: %d bytes at %d exceed %d", errs.ErrOutputOverrun, len(p), w.op, w.dstLen)
	}
	if w.guard && w.op+len(p)-1 >= w.r.off+w.r.used {
		return 0, overlapError(w.op+len(p)-1, w.r.off+w.r.used)
	}
	copy(w.buf[w.op:], p)
	w.op += len(p)

	return len(p), nil
}

// decodeInPlace runs dec over buf[srcOff:srcOff+srcLen] writing into buf[:dstLen].
func decodeInPlace(dec streamDecoder, buf []byte, srcOff, srcLen, dstLen int, guard bool) (int, error) {
	r := &inPlaceReader{buf: buf, off: srcOff, end: srcOff + srcLen}
	w := &inPlaceWriter{buf: buf, dstLen: dstLen, guard: guard, r: r}

	if err := dec(r, w); err != nil {
		return w.op, classifyStreamError(err)
	}
	if r.used != srcLen {
		return w.op, fmt.Errorf("%w: %d of %d bytes used", errs.ErrInputNotConsumed, r.used, srcLen)
	}
	if w.op != dstLen {
		return w.op, fmt.Errorf("%w: stream ended after %d of %d bytes", errs.ErrEOFNotFound, w.op, dstLen)
	}

	return w.op, nil
}

// testInPlace replays an in-place decode in tbuf, leaving buf untouched.
func testInPlace(dec streamDecoder, buf, tbuf []byte, srcOff, srcLen, dstLen int) (int, error) {
	need := max(srcOff+srcLen, dstLen)
	if len(tbuf) < need {
		tbuf = make([]byte, need)
	}
	copy(tbuf[srcOff:srcOff+srcLen], buf[srcOff:srcOff+srcLen])

	return decodeInPlace(dec, tbuf, srcOff, srcLen, dstLen, true)
}

// decodeStream decodes src into dst with dec.
func decodeStream(dec streamDecoder, src, dst []byte) (int, error) {
	r := &inPlaceReader{buf: src, end: len(src)}
	w := &inPlaceWriter{buf: dst, dstLen: len(dst), r: r}

	if err := dec(r, w); err != nil {
		return w.op, classifyStreamError(err)
	}
	if r.used != len(src) {
		return w.op, fmt.Errorf("%w: %d of %d bytes used", errs.ErrInputNotConsumed, r.used, len(src))
	}

	return w.op, nil
}

// classifyStreamError maps library decode failures onto the codec taxonomy.
// Errors already in the taxonomy pass through.
func classifyStreamError(err error) error {
	for _, known := range []error{
		errs.ErrOutputOverrun, errs.ErrInputOverrun, errs.ErrLookbehindOverrun,
		errs.ErrEOFNotFound, errs.ErrInputNotConsumed, errs.ErrInvalidArgument,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errs.ErrInputOverrun, err)
	}

	return fmt.Errorf("%w: %w", errs.ErrError, err)
}
