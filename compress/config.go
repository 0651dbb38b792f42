package compress

import (
	"cmp"
	"fmt"

	"github.com/arloliu/xpack/errs"
)

// OptVar is an optional tunable with a default and inclusive bounds.
//
// The zero value is unset with all bounds at zero; build values with NewOptVar.
type OptVar[T cmp.Ordered] struct {
	value T
	def   T
	min   T
	max   T
	set   bool
}

// NewOptVar returns an unset OptVar holding def.
//
// It panics if def lies outside [min, max].
func NewOptVar[T cmp.Ordered](def, minValue, maxValue T) OptVar[T] {
	if minValue > maxValue || def < minValue || def > maxValue {
		panic(fmt.Sprintf("compress: invalid OptVar bounds: default %v not in [%v, %v]", def, minValue, maxValue))
	}

	return OptVar[T]{value: def, def: def, min: minValue, max: maxValue}
}

// Set assigns v and marks the value explicitly set.
//
// Returns:
//   - error: ErrInvalidArgument if v lies outside the bounds; the value is left unchanged
func (o *OptVar[T]) Set(v T) error {
	if v < o.min || v > o.max {
		return fmt.Errorf("%w: %v not in [%v, %v]", errs.ErrInvalidArgument, v, o.min, o.max)
	}
	o.value = v
	o.set = true

	return nil
}

// MustSet is like Set but panics on an out-of-range value.
func (o *OptVar[T]) MustSet(v T) {
	if err := o.Set(v); err != nil {
		panic(err)
	}
}

// Value returns the current value.
func (o OptVar[T]) Value() T { return o.value }

// Default returns the default value.
func (o OptVar[T]) Default() T { return o.def }

// Min returns the lower bound.
func (o OptVar[T]) Min() T { return o.min }

// Max returns the upper bound.
func (o OptVar[T]) Max() T { return o.max }

// IsSet reports whether the value was assigned explicitly.
func (o OptVar[T]) IsSet() bool { return o.set }

// Valid reports whether the current value lies within the bounds.
func (o OptVar[T]) Valid() bool { return o.value >= o.min && o.value <= o.max }

// Reset restores the default and clears the set flag.
func (o *OptVar[T]) Reset() {
	o.value = o.def
	o.set = false
}

// Overlay copies other's value onto o when other is set. Bounds are kept.
func (o *OptVar[T]) Overlay(other OptVar[T]) {
	if other.set {
		o.value = other.value
		o.set = true
	}
}

func (o OptVar[T]) String() string {
	if o.set {
		return fmt.Sprint(o.value)
	}

	return fmt.Sprintf("%v (default)", o.value)
}

// LZMAConfig tunes the LZMA backend.
type LZMAConfig struct {
	PosBits           OptVar[int]    // pb
	LitPosBits        OptVar[int]    // lp
	LitContextBits    OptVar[int]    // lc
	DictSize          OptVar[uint32] // dictionary capacity in bytes
	FastMode          OptVar[int]    // recorded for the loader; the encoder always uses the hash table matcher
	NumFastBytes      OptVar[int]
	MatchFinderCycles OptVar[int]
	// MaxNumProbs limits the decoder's probability table; 0 means unlimited.
	MaxNumProbs uint32
}

// DeflateConfig tunes the DEFLATE backend. Field names follow zlib.
type DeflateConfig struct {
	MemLevel   OptVar[int]
	WindowBits OptVar[int]
	Strategy   OptVar[int] // 0 default, 1 filtered, 2 huffman only, 3 rle, 4 fixed
}

// NRVConfig tunes the NRV backends. Unset values are derived from the level.
type NRVConfig struct {
	MaxOffset OptVar[int]
	MaxMatch  OptVar[int]
}

// ZstdConfig tunes the ZSTD backend. Unset values are derived from the level.
type ZstdConfig struct {
	WindowLog OptVar[int]
}

// Config groups the per-backend tunables.
type Config struct {
	LZMA    LZMAConfig
	Deflate DeflateConfig
	NRV     NRVConfig
	Zstd    ZstdConfig
}

// Deflate strategies.
const (
	StrategyDefault = iota
	StrategyFiltered
	StrategyHuffmanOnly
	StrategyRLE
	StrategyFixed
)

const (
	nrvMinMatchLimit = 16
	nrvMaxMatchLimit = 1 << 20
	nrvMaxOffsetCap  = 1 << 24
)

// DefaultConfig returns a configuration with every tunable unset at its default.
func DefaultConfig() *Config {
	return &Config{
		LZMA: LZMAConfig{
			PosBits:           NewOptVar(2, 0, 4),
			LitPosBits:        NewOptVar(0, 0, 4),
			LitContextBits:    NewOptVar(3, 0, 8),
			DictSize:          NewOptVar[uint32](1<<22, 1, 1<<30),
			FastMode:          NewOptVar(0, 0, 1),
			NumFastBytes:      NewOptVar(64, 5, 273),
			MatchFinderCycles: NewOptVar(0, 0, 1000000),
		},
		Deflate: DeflateConfig{
			MemLevel:   NewOptVar(8, 1, 9),
			WindowBits: NewOptVar(15, 9, 15),
			Strategy:   NewOptVar(StrategyDefault, StrategyDefault, StrategyFixed),
		},
		NRV: NRVConfig{
			MaxOffset: NewOptVar(1<<20, 1, nrvMaxOffsetCap),
			MaxMatch:  NewOptVar(1<<16, nrvMinMatchLimit, nrvMaxMatchLimit),
		},
		Zstd: ZstdConfig{
			WindowLog: NewOptVar(22, 10, 27),
		},
	}
}

// Overlay copies every explicitly set field of other onto c.
// A nil other is a no-op.
func (c *Config) Overlay(other *Config) {
	if other == nil {
		return
	}

	c.LZMA.PosBits.Overlay(other.LZMA.PosBits)
	c.LZMA.LitPosBits.Overlay(other.LZMA.LitPosBits)
	c.LZMA.LitContextBits.Overlay(other.LZMA.LitContextBits)
	c.LZMA.DictSize.Overlay(other.LZMA.DictSize)
	c.LZMA.FastMode.Overlay(other.LZMA.FastMode)
	c.LZMA.NumFastBytes.Overlay(other.LZMA.NumFastBytes)
	c.LZMA.MatchFinderCycles.Overlay(other.LZMA.MatchFinderCycles)
	if other.LZMA.MaxNumProbs != 0 {
		c.LZMA.MaxNumProbs = other.LZMA.MaxNumProbs
	}

	c.Deflate.MemLevel.Overlay(other.Deflate.MemLevel)
	c.Deflate.WindowBits.Overlay(other.Deflate.WindowBits)
	c.Deflate.Strategy.Overlay(other.Deflate.Strategy)

	c.NRV.MaxOffset.Overlay(other.NRV.MaxOffset)
	c.NRV.MaxMatch.Overlay(other.NRV.MaxMatch)

	c.Zstd.WindowLog.Overlay(other.Zstd.WindowLog)
}

// Validate checks every value against its bounds and the cross-field limits.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"lzma.pos_bits", c.LZMA.PosBits.Valid()},
		{"lzma.lit_pos_bits", c.LZMA.LitPosBits.Valid()},
		{"lzma.lit_context_bits", c.LZMA.LitContextBits.Valid()},
		{"lzma.dict_size", c.LZMA.DictSize.Valid()},
		{"lzma.fast_mode", c.LZMA.FastMode.Valid()},
		{"lzma.num_fast_bytes", c.LZMA.NumFastBytes.Valid()},
		{"lzma.match_finder_cycles", c.LZMA.MatchFinderCycles.Valid()},
		{"deflate.mem_level", c.Deflate.MemLevel.Valid()},
		{"deflate.window_bits", c.Deflate.WindowBits.Valid()},
		{"deflate.strategy", c.Deflate.Strategy.Valid()},
		{"nrv.max_offset", c.NRV.MaxOffset.Valid()},
		{"nrv.max_match", c.NRV.MaxMatch.Valid()},
		{"zstd.window_log", c.Zstd.WindowLog.Valid()},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s out of range", errs.ErrInvalidArgument, chk.name)
		}
	}

	if c.LZMA.MaxNumProbs != 0 {
		probs := lzmaNumProbs(c.LZMA.LitContextBits.Value(), c.LZMA.LitPosBits.Value())
		if probs > c.LZMA.MaxNumProbs {
			return fmt.Errorf("%w: lzma needs %d probabilities, limit is %d",
				errs.ErrInvalidArgument, probs, c.LZMA.MaxNumProbs)
		}
	}

	return nil
}

// lzmaNumProbs returns the size of the LZMA decoder's probability table.
func lzmaNumProbs(lc, lp int) uint32 {
	return 1846 + (768 << uint(lc+lp))
}
