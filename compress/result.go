package compress

import "github.com/arloliu/xpack/format"

// DebugResult records the call that produced a Result.
type DebugResult struct {
	Method format.Method
	Level  int
	ULen   int // uncompressed length
	CLen   int // compressed length
}

// LZMAResult holds the parameters the LZMA decoder needs.
type LZMAResult struct {
	PosBits           int
	LitPosBits        int
	LitContextBits    int
	DictSize          uint32
	FastMode          int
	NumFastBytes      int
	MatchFinderCycles int
	NumProbs          uint32
}

// NRVResult holds statistics of the emitted NRV token stream.
// The loaders use MaxOffset and FirstOffset to pick decoder variants.
type NRVResult struct {
	MinOffset        int
	MaxOffset        int
	MinMatch         int
	MaxMatch         int
	MinRun           int
	MaxRun           int
	FirstOffset      int // offset of the first match, 0 when there is none
	SameMatchOffsets int // matches that reused the previous offset
}

// DeflateResult records the effective DEFLATE window.
type DeflateResult struct {
	WindowBits int
	Strategy   int
}

// ZstdResult records the effective Zstandard window.
type ZstdResult struct {
	WindowLog int
}

// Result describes one compression call. It is filled by Compress and must be
// passed unchanged to Decompress, TestOverlap and DecompressInPlace.
type Result struct {
	Debug   DebugResult
	LZMA    LZMAResult
	NRV     NRVResult
	Deflate DeflateResult
	Zstd    ZstdResult
}

// Reset clears every field.
func (r *Result) Reset() {
	*r = Result{}
}

// Ratio returns CLen/ULen in 1/10000 units, rounded up, or 0 for empty input.
func (r *Result) Ratio() int {
	return Ratio(r.Debug.ULen, r.Debug.CLen)
}

// Ratio returns c/u in 1/10000 units, rounded up. Values above 10000 mean the data grew.
func Ratio(u, c int) int {
	if u <= 0 {
		return 0
	}

	return int((int64(c)*10000 + int64(u) - 1) / int64(u))
}
