// Package compress provides the compression facade used by xpack packers.
//
// Every persisted method id (see format.Method) is served by exactly one codec
// backend. The facade dispatches on the method's family through a single table,
// merges the caller's configuration onto the backend defaults, and fills a
// Result describing the parameters chosen at encode time.
//
// # Backends
//
//   - NRV2B, NRV2D, NRV2E: byte-oriented LZ77 codecs with an interleaved bit buffer
//     of 8, 16 or 32 bits. Implemented natively; these are what the 16-bit loaders decode.
//   - LZMA: range-coded LZ77 (github.com/ulikunitz/xz/lzma), classic 13-byte header.
//   - DEFLATE: raw deflate (github.com/klauspost/compress/flate).
//   - ZSTD: a single Zstandard frame (github.com/klauspost/compress/zstd).
//   - LZ4: a single LZ4 block (github.com/pierrec/lz4/v4).
//
// # Basic Usage
//
//	dst := make([]byte, compress.MaxCompressedSize(len(src)))
//	var res compress.Result
//	n, err := compress.Compress(src, dst, nil, format.MethodNRV2BLE16, 7, nil, &res)
//	if err != nil {
//	    return err
//	}
//
//	out := make([]byte, len(src))
//	if _, err := compress.Decompress(dst[:n], out, format.MethodNRV2BLE16, &res); err != nil {
//	    return err
//	}
//
// # In-place decompression
//
// A packed executable decompresses its payload into the very buffer that holds it.
// The compressed bytes sit at the end of a region of dstLen+overhead bytes and the
// output grows from the start of that region. TestOverlap decides whether a given
// geometry is safe: the decoder's write cursor must never reach a byte it has not
// consumed yet.
//
// NRV and LZ4 replay their token streams without writing anything. The stream
// codecs run a guarded decode in the scratch buffer passed as tbuf; the guard fails
// as soon as a write would reach input that is still unread. DecompressInPlace
// performs the same decode for real, so an OK from TestOverlap always predicts a
// correct in-place result.
//
// # Configuration
//
// Config holds one struct per backend. Each tunable is an OptVar carrying its
// default, bounds and an "explicitly set" flag. Config.Overlay copies only the set
// fields, and values outside their bounds are rejected by OptVar.Set and again by
// Config.Validate before any backend sees them.
//
// # Thread Safety
//
// The package level functions are safe for concurrent use. Config and Result values
// belong to the caller and must not be shared between concurrent calls.
package compress
