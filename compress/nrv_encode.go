package compress

import (
	"math/bits"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/internal/pool"
)

const (
	nrvHashSize       = 1 << 16
	nrvProgressStride = 1 << 14
	nrvLiteralBits    = 9
)

// nrvBitWriter interleaves bit-buffer words with literal and offset bytes.
//
// A word is reserved at the current output position when its first bit is
// written, which is where the decoder will look for it.
type nrvBitWriter struct {
	out   []byte
	width int
	pos   int
	bits  uint32
	n     int
}

func (w *nrvBitWriter) putBit(b uint32) {
	if w.n == 0 {
		w.pos = len(w.out)
		for range w.width {
			w.out = append(w.out, 0)
		}
	}
	w.bits = w.bits<<1 | b
	w.n++
	if w.n == w.width*8 {
		w.flushWord()
	}
}

func (w *nrvBitWriter) putByte(c byte) {
	w.out = append(w.out, c)
}

func (w *nrvBitWriter) flushWord() {
	v := w.bits << uint(w.width*8-w.n)
	le := endian.GetLittleEndianEngine()
	switch w.width {
	case 1:
		w.out[w.pos] = byte(v)
	case 2:
		le.PutUint16(w.out[w.pos:], uint16(v))
	default:
		le.PutUint32(w.out[w.pos:], v)
	}
	w.bits = 0
	w.n = 0
}

func (w *nrvBitWriter) finish() []byte {
	if w.n > 0 {
		w.flushWord()
	}

	return w.out
}

// gamma11 writes v >= 2 as data/stop bit pairs.
func (w *nrvBitWriter) gamma11(v uint32) {
	for i := bits.Len32(v) - 2; i >= 0; i-- {
		w.putBit((v >> uint(i)) & 1)
		if i == 0 {
			w.putBit(1)
		} else {
			w.putBit(0)
		}
	}
}

// gamma12 writes v >= 2 in the NRV2D/NRV2E offset code, which spends three bits
// per extra pair of value bits.
func (w *nrvBitWriter) gamma12(v uint32) {
	i := v - 2
	if i >= 2 {
		t := uint32(2)
		for {
			i -= t
			t <<= 2
			if i < t {
				break
			}
		}
		for {
			t >>= 1
			w.putBit(boolBit(i&t != 0))
			w.putBit(0)
			t >>= 1
			w.putBit(boolBit(i&t != 0))
			if t <= 2 {
				break
			}
		}
	}
	w.putBit(i & 1)
	w.putBit(1)
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}

func gamma11Bits(v uint32) int {
	return 2 * (bits.Len32(v) - 1)
}

func gamma12Bits(v uint32) int {
	i := v - 2
	if i < 2 {
		return 2
	}
	n := 2
	t := uint32(2)
	for {
		i -= t
		t <<= 2
		n += 3
		if i < t {
			return n
		}
	}
}

// nrvEncoder is a greedy (optionally lazy) LZ77 parser over hash chains keyed by
// the next two bytes.
type nrvEncoder struct {
	v        nrvVariant
	src      []byte
	level    nrvLevel
	window   int
	maxMatch int
	head     []int32
	prev     []int32
	last     int // offset of the previous match
	w        nrvBitWriter
	stats    NRVResult
	run      int // literals since the last match
	release  []func()
}

type nrvMatch struct {
	length int
	offset int
	gain   int // bits saved against coding the same bytes as literals
}

func newNRVEncoder(v nrvVariant, src []byte, level nrvLevel, window, maxMatch int) *nrvEncoder {
	e := &nrvEncoder{
		v:        v,
		src:      src,
		level:    level,
		window:   window,
		maxMatch: maxMatch,
		last:     1,
		w:        nrvBitWriter{width: v.width, out: make([]byte, 0, len(src)/2+16)},
	}

	var releaseHead, releasePrev func()
	e.head, releaseHead = pool.GetInt32Slice(nrvHashSize, -1)
	e.prev, releasePrev = pool.GetInt32Slice(len(src), -1)
	e.release = []func(){releaseHead, releasePrev}

	return e
}

// close returns the match finder tables to their pool.
func (e *nrvEncoder) close() {
	for _, r := range e.release {
		r()
	}
	e.release = nil
	e.head, e.prev = nil, nil
}

func (e *nrvEncoder) hash(p int) int {
	return int(e.src[p])<<8 | int(e.src[p+1])
}

func (e *nrvEncoder) insert(p int) {
	if p+1 >= len(e.src) {
		return
	}
	h := e.hash(p)
	e.prev[p] = e.head[h]
	e.head[h] = int32(p)
}

func (e *nrvEncoder) matchLen(p, offset int) int {
	limit := len(e.src) - p
	if limit > e.maxMatch {
		limit = e.maxMatch
	}
	n := 0
	for n < limit && e.src[p+n] == e.src[p+n-offset] {
		n++
	}

	return n
}

// lengthCode converts a match length into the coded length, or 0 if the match
// is too short to be coded at this offset.
func (e *nrvEncoder) lengthCode(length, offset int) int {
	code := length - 1
	if offset > e.v.far() {
		code--
	}
	if code < 1 {
		return 0
	}

	return code
}

func (e *nrvEncoder) cost(length, offset int) int {
	code := uint32(e.lengthCode(length, offset))
	repeat := offset == e.last
	n := 1
	switch e.v.kind {
	case 'b':
		if repeat {
			n += 2
		} else {
			n += gamma11Bits(uint32((offset-1)>>8)+3) + 8
		}
		n += 2
		if code >= 4 {
			n += gamma11Bits(code - 2)
		}
	case 'd':
		if repeat {
			n += 3
		} else {
			n += gamma12Bits(uint32((offset-1)>>7)+3) + 8
		}
		n++
		if code >= 4 {
			n += gamma11Bits(code - 2)
		}
	default:
		if repeat {
			n += 3
		} else {
			n += gamma12Bits(uint32((offset-1)>>7)+3) + 8
		}
		switch {
		case code <= 2:
			n++
		case code <= 4:
			n += 2
		default:
			n += 1 + gamma11Bits(code-3)
		}
	}

	return n
}

func (e *nrvEncoder) consider(best *nrvMatch, length, offset int) {
	if e.lengthCode(length, offset) == 0 {
		return
	}
	gain := length*nrvLiteralBits - e.cost(length, offset)
	if gain > best.gain || (gain == best.gain && length > best.length) {
		*best = nrvMatch{length: length, offset: offset, gain: gain}
	}
}

// find returns the most profitable match at p; gain is 0 if there is none.
func (e *nrvEncoder) find(p int) nrvMatch {
	var best nrvMatch
	if p+1 >= len(e.src) {
		return best
	}

	limit := min(len(e.src)-p, e.maxMatch)
	if e.last <= p {
		e.consider(&best, e.matchLen(p, e.last), e.last)
	}

	cand := e.head[e.hash(p)]
	for depth := e.level.depth; cand >= 0 && depth > 0 && best.length < limit; depth-- {
		offset := p - int(cand)
		if offset > e.window {
			break
		}
		if offset != e.last {
			e.consider(&best, e.matchLen(p, offset), offset)
		}
		cand = e.prev[cand]
	}

	return best
}

func (e *nrvEncoder) encode(cb Callback) []byte {
	n := len(e.src)
	nextReport := 0
	for p := 0; p < n; {
		if cb != nil && p >= nextReport {
			cb(p, n)
			nextReport = p + nrvProgressStride
		}

		m := e.find(p)
		if m.gain > 0 && e.level.lazy && p+1 < n {
			e.insert(p)
			next := e.find(p + 1)
			if next.length > m.length && next.gain > m.gain {
				e.literal(p)
				p++

				continue
			}
			e.emitMatch(m)
			for q := p + 1; q < p+m.length; q++ {
				e.insert(q)
			}
			p += m.length

			continue
		}

		if m.gain > 0 {
			e.emitMatch(m)
			for q := p; q < p+m.length; q++ {
				e.insert(q)
			}
			p += m.length

			continue
		}

		e.insert(p)
		e.literal(p)
		p++
	}

	e.endRun()
	e.w.putBit(0)
	if e.v.kind == 'b' {
		e.w.gamma11(nrvEndMarker)
	} else {
		e.w.gamma12(nrvEndMarker)
	}
	e.w.putByte(0xff)

	return e.w.finish()
}

func (e *nrvEncoder) literal(p int) {
	e.w.putBit(1)
	e.w.putByte(e.src[p])
	e.run++
}

func (e *nrvEncoder) endRun() {
	if e.run == 0 {
		return
	}
	if e.stats.MinRun == 0 || e.run < e.stats.MinRun {
		e.stats.MinRun = e.run
	}
	if e.run > e.stats.MaxRun {
		e.stats.MaxRun = e.run
	}
	e.run = 0
}

func (e *nrvEncoder) emitMatch(m nrvMatch) {
	e.endRun()
	e.record(m)

	code := uint32(e.lengthCode(m.length, m.offset))
	repeat := m.offset == e.last
	off := uint32(m.offset - 1)
	w := &e.w

	w.putBit(0)
	switch e.v.kind {
	case 'b':
		if repeat {
			w.gamma11(2)
		} else {
			w.gamma11(off>>8 + 3)
			w.putByte(byte(off))
		}
		if code < 4 {
			w.putBit(code >> 1)
			w.putBit(code & 1)
		} else {
			w.putBit(0)
			w.putBit(0)
			w.gamma11(code - 2)
		}
	case 'd':
		hi, lo := uint32(0), uint32(0)
		if code < 4 {
			hi, lo = code>>1, code&1
		}
		if repeat {
			w.putBit(0)
			w.putBit(1)
			w.putBit(hi)
		} else {
			w.gamma12(off>>7 + 3)
			w.putByte(byte((off&0x7f)<<1 | (hi ^ 1)))
		}
		w.putBit(lo)
		if code >= 4 {
			w.gamma11(code - 2)
		}
	default:
		x := boolBit(code <= 2)
		if repeat {
			w.putBit(0)
			w.putBit(1)
			w.putBit(x)
		} else {
			w.gamma12(off>>7 + 3)
			w.putByte(byte((off&0x7f)<<1 | (x ^ 1)))
		}
		switch {
		case code <= 2:
			w.putBit(code - 1)
		case code <= 4:
			w.putBit(1)
			w.putBit(code - 3)
		default:
			w.putBit(0)
			w.gamma11(code - 3)
		}
	}

	e.last = m.offset
}

func (e *nrvEncoder) record(m nrvMatch) {
	s := &e.stats
	if s.FirstOffset == 0 {
		s.FirstOffset = m.offset
	}
	if m.offset == e.last {
		s.SameMatchOffsets++
	}
	if s.MinOffset == 0 || m.offset < s.MinOffset {
		s.MinOffset = m.offset
	}
	if m.offset > s.MaxOffset {
		s.MaxOffset = m.offset
	}
	if s.MinMatch == 0 || m.length < s.MinMatch {
		s.MinMatch = m.length
	}
	if m.length > s.MaxMatch {
		s.MaxMatch = m.length
	}
}
