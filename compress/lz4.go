package compress

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// lz4HCLevels maps facade levels 4 and up onto the HC search depth.
var lz4HCLevels = [MaxLevel + 1]lz4.CompressionLevel{
	4:  lz4.Level1,
	5:  lz4.Level3,
	6:  lz4.Level5,
	7:  lz4.Level6,
	8:  lz4.Level7,
	9:  lz4.Level8,
	10: lz4.Level9,
}

// lz4Backend produces a single raw LZ4 block.
type lz4Backend struct{}

var _ Backend = (*lz4Backend)(nil)

func (b *lz4Backend) Init() error { return nil }

func (b *lz4Backend) Version() string { return "lz4 (github.com/pierrec/lz4/v4)" }

func (b *lz4Backend) Compress(src []byte, cb Callback, _ format.Method, level int, _ *Config, _ *Result) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	if cb != nil {
		cb(0, len(src))
	}

	var (
		n   int
		err error
	)
	if level < 4 {
		lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
		n, err = lc.CompressBlock(src, dst)
		lz4CompressorPool.Put(lc)
	} else {
		hc := lz4.CompressorHC{Level: lz4HCLevels[level]}
		n, err = hc.CompressBlock(src, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrError, err)
	}

	return dst[:n], nil
}

func (b *lz4Backend) Decompress(src, dst []byte, _ format.Method, _ *Result) (int, error) {
	n, err := lz4.UncompressBlock(src, dst)
	if err == nil {
		return n, nil
	}

	// The library reports every failure the same way; replay the block to
	// find out what went wrong.
	if n, werr := lz4Walk(src, nil, len(dst), -1); werr != nil {
		return n, werr
	}

	return 0, fmt.Errorf("%w: %w", errs.ErrError, err)
}

func (b *lz4Backend) TestOverlap(buf, _ []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return lz4Walk(buf[srcOff:srcOff+srcLen], nil, dstLen, srcOff)
}

func (b *lz4Backend) DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return lz4Walk(buf[srcOff:srcOff+srcLen], buf[:dstLen], dstLen, -1)
}

// lz4Walk decodes an LZ4 block sequence by sequence. dst and guard follow the
// same rules as nrvDecode.
func lz4Walk(src, dst []byte, dstLen, guard int) (int, error) {
	ip, op := 0, 0

	length := func(n int) (int, error) {
		if n != 15 {
			return n, nil
		}
		for {
			if ip >= len(src) {
				return 0, fmt.Errorf("%w: length extension at %d", errs.ErrInputOverrun, ip)
			}
			c := src[ip]
			ip++
			n += int(c)
			if c != 255 {
				return n, nil
			}
		}
	}

	for {
		if ip >= len(src) {
			return op, fmt.Errorf("%w: block ends at %d without a final literal run", errs.ErrEOFNotFound, ip)
		}
		token := src[ip]
		ip++

		lit, err := length(int(token >> 4))
		if err != nil {
			return op, err
		}
		if ip+lit > len(src) {
			return op, fmt.Errorf("%w: %d literals at %d", errs.ErrInputOverrun, lit, ip)
		}
		if op+lit > dstLen {
			return op, fmt.Errorf("%w: %d literals at %d", errs.ErrOutputOverrun, lit, op)
		}
		if lit > 0 && guard >= 0 && op+lit-1 >= guard+ip+lit {
			return op, overlapError(op+lit-1, guard+ip+lit)
		}
		if dst != nil {
			copy(dst[op:op+lit], src[ip:ip+lit])
		}
		ip += lit
		op += lit

		if ip == len(src) {
			return op, nil
		}

		if ip+2 > len(src) {
			return op, fmt.Errorf("%w: match offset at %d", errs.ErrInputOverrun, ip)
		}
		offset := int(src[ip]) | int(src[ip+1])<<8
		ip += 2
		if offset == 0 || offset > op {
			return op, fmt.Errorf("%w: offset %d at output position %d", errs.ErrLookbehindOverrun, offset, op)
		}

		mlen, err := length(int(token & 0x0f))
		if err != nil {
			return op, err
		}
		mlen += 4
		if op+mlen > dstLen {
			return op, fmt.Errorf("%w: match of %d bytes at %d", errs.ErrOutputOverrun, mlen, op)
		}
		if guard >= 0 && op+mlen-1 >= guard+ip {
			return op, overlapError(op+mlen-1, guard+ip)
		}
		if dst != nil {
			from := op - offset
			for k := range mlen {
				dst[op+k] = dst[from+k]
			}
		}
		op += mlen
	}
}
