package compress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

const zstdMaxWindow = 1 << 27

// zstdDecoderPool pools decoders for DecodeAll; they run without allocations
// after a warmup.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxWindow(zstdMaxWindow),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}

		return decoder
	},
}

type zstdBackend struct{}

var _ Backend = (*zstdBackend)(nil)

func (b *zstdBackend) Init() error { return nil }

func (b *zstdBackend) Version() string { return "zstd (github.com/klauspost/compress/zstd)" }

// zstdLevel spreads the ten facade levels over the zstd level range.
func zstdLevel(level int) zstd.EncoderLevel {
	return zstd.EncoderLevelFromZstd(level * 2)
}

func (b *zstdBackend) Compress(src []byte, cb Callback, _ format.Method, level int, conf *Config, res *Result) ([]byte, error) {
	windowLog := conf.Zstd.WindowLog.Value()
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstdLevel(level)),
		zstd.WithWindowSize(1<<windowLog),
		zstd.WithEncoderCRC(false),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidArgument, err)
	}
	defer encoder.Close()

	if cb != nil {
		cb(0, len(src))
	}
	out := encoder.EncodeAll(src, nil)
	res.Zstd = ZstdResult{WindowLog: windowLog}

	return out, nil
}

func (b *zstdBackend) Decompress(src, dst []byte, _ format.Method, _ *Result) (int, error) {
	if len(src) == 0 {
		return 0, fmt.Errorf("%w: empty zstd stream", errs.ErrEOFNotFound)
	}

	decoder, _ := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(decoder)

	out, err := decoder.DecodeAll(src, nil)
	if err != nil {
		return 0, classifyStreamError(err)
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("%w: %d bytes do not fit a %d byte buffer", errs.ErrOutputOverrun, len(out), len(dst))
	}

	return copy(dst, out), nil
}

func (b *zstdBackend) TestOverlap(buf, tbuf []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return testInPlace(zstdDecoder, buf, tbuf, srcOff, srcLen, dstLen)
}

func (b *zstdBackend) DecompressInPlace(buf []byte, srcOff, srcLen, dstLen int, _ format.Method, _ *Result) (int, error) {
	return decodeInPlace(zstdDecoder, buf, srcOff, srcLen, dstLen, false)
}

// zstdDecoder buffers whole blocks before emitting them. Input copied into its
// block buffer may be overwritten in place.
func zstdDecoder(r io.Reader, w io.Writer) error {
	decoder, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxWindow(zstdMaxWindow),
	)
	if err != nil {
		return err
	}
	defer decoder.Close()

	_, err = io.Copy(w, decoder)

	return err
}
