package compress

import (
	"fmt"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/errs"
)

// nrvBitReader serves bits MSB first from little-endian words of 1, 2 or 4 bytes.
// A new word is consumed only when the previous one is exhausted, exactly as the
// loaders do it, so ip always matches the loader's input cursor.
type nrvBitReader struct {
	src   []byte
	ip    int
	width int
	bb    uint32
	bc    int
	err   error
}

func (r *nrvBitReader) load(boundary bool) bool {
	if r.ip+r.width > len(r.src) {
		if boundary && r.ip == len(r.src) {
			r.err = fmt.Errorf("%w: stream ends at %d without terminator", errs.ErrEOFNotFound, r.ip)
		} else {
			r.err = fmt.Errorf("%w: bit buffer at %d", errs.ErrInputOverrun, r.ip)
		}

		return false
	}

	le := endian.GetLittleEndianEngine()
	switch r.width {
	case 1:
		r.bb = uint32(r.src[r.ip])
	case 2:
		r.bb = uint32(le.Uint16(r.src[r.ip:]))
	default:
		r.bb = le.Uint32(r.src[r.ip:])
	}
	r.ip += r.width
	r.bc = r.width * 8

	return true
}

// bit returns the next bit, or 0 once an error is recorded.
func (r *nrvBitReader) bit() uint32 {
	if r.bc == 0 && (r.err != nil || !r.load(false)) {
		return 0
	}
	r.bc--

	return (r.bb >> uint(r.bc)) & 1
}

// flag is bit at a token boundary, where running out of input means the
// terminator is missing rather than a token being cut short.
func (r *nrvBitReader) flag() uint32 {
	if r.bc == 0 && (r.err != nil || !r.load(true)) {
		return 0
	}
	r.bc--

	return (r.bb >> uint(r.bc)) & 1
}

func (r *nrvBitReader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.ip >= len(r.src) {
		r.err = fmt.Errorf("%w: byte at %d", errs.ErrInputOverrun, r.ip)
		return 0
	}
	c := r.src[r.ip]
	r.ip++

	return c
}

// gamma reads the variable length code shared by all variants, starting from 1.
func (r *nrvBitReader) gamma(limit uint32) (uint32, error) {
	m := uint32(1)
	for {
		m = m*2 + r.bit()
		stop := r.bit()
		if r.err != nil {
			return 0, r.err
		}
		if m > limit {
			return 0, fmt.Errorf("%w: match length code %d", errs.ErrOutputOverrun, m)
		}
		if stop == 1 {
			return m, nil
		}
	}
}

// nrvDecode decodes src into dst[:dstLen] and returns the number of bytes produced.
//
// dst may be nil to only replay the token stream. When guard is not negative, src
// is taken to start at offset guard of the buffer whose prefix is the output, and
// every write must land on a byte the reader has already consumed.
//
// src and dst may share memory; reads of src always happen before the writes they
// could affect.
func nrvDecode(v nrvVariant, src, dst []byte, dstLen, guard int) (int, error) {
	r := nrvBitReader{src: src, width: v.width}
	far := uint32(v.far())
	last := uint32(1)
	op := 0

	for {
		for {
			f := r.flag()
			if r.err != nil {
				return op, r.err
			}
			if f == 0 {
				break
			}
			c := r.byte()
			if r.err != nil {
				return op, r.err
			}
			if op >= dstLen {
				return op, fmt.Errorf("%w: literal at %d", errs.ErrOutputOverrun, op)
			}
			if guard >= 0 && op >= guard+r.ip {
				return op, overlapError(op, guard+r.ip)
			}
			if dst != nil {
				dst[op] = c
			}
			op++
		}

		mOff := uint32(1)
		for {
			mOff = mOff*2 + r.bit()
			stop := r.bit()
			if r.err != nil {
				return op, r.err
			}
			if mOff > nrvEndMarker {
				return op, fmt.Errorf("%w: offset prefix %#x at %d", errs.ErrLookbehindOverrun, mOff, op)
			}
			if stop == 1 {
				break
			}
			if v.kind != 'b' {
				mOff = (mOff-1)*2 + r.bit()
			}
		}

		var mLen uint32
		if mOff == 2 {
			mOff = last
			if v.kind != 'b' {
				mLen = r.bit()
			}
		} else {
			c := r.byte()
			if r.err != nil {
				return op, r.err
			}
			mOff = (mOff-3)*256 + uint32(c)
			if mOff == 0xffffffff {
				break
			}
			if v.kind != 'b' {
				mLen = (mOff ^ 0xffffffff) & 1
				mOff >>= 1
			}
			mOff++
			last = mOff
		}

		limit := uint32(dstLen) + 2
		switch v.kind {
		case 'b':
			mLen = r.bit()
			mLen = mLen*2 + r.bit()
			if mLen == 0 {
				g, err := r.gamma(limit)
				if err != nil {
					return op, err
				}
				mLen = g + 2
			}
		case 'd':
			mLen = mLen*2 + r.bit()
			if mLen == 0 {
				g, err := r.gamma(limit)
				if err != nil {
					return op, err
				}
				mLen = g + 2
			}
		default:
			switch {
			case mLen == 1:
				mLen = 1 + r.bit()
			case r.bit() == 1:
				mLen = 3 + r.bit()
			default:
				g, err := r.gamma(limit)
				if err != nil {
					return op, err
				}
				mLen = g + 3
			}
		}
		if r.err != nil {
			return op, r.err
		}
		if mOff > far {
			mLen++
		}

		total := int(mLen) + 1
		if int64(mOff) > int64(op) {
			return op, fmt.Errorf("%w: offset %d at output position %d", errs.ErrLookbehindOverrun, mOff, op)
		}
		if op+total > dstLen {
			return op, fmt.Errorf("%w: match of %d bytes at %d", errs.ErrOutputOverrun, total, op)
		}
		if guard >= 0 && op+total-1 >= guard+r.ip {
			return op, overlapError(op+total-1, guard+r.ip)
		}
		if dst != nil {
			from := op - int(mOff)
			for k := range total {
				dst[op+k] = dst[from+k]
			}
		}
		op += total
	}

	if r.ip != len(src) {
		return op, fmt.Errorf("%w: %d of %d bytes used", errs.ErrInputNotConsumed, r.ip, len(src))
	}

	return op, nil
}

func overlapError(write, read int) error {
	return fmt.Errorf("%w: write at %d reaches unread input at %d", errs.ErrOutputOverrun, write, read)
}
