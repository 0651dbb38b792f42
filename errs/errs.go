// Package errs defines the sentinel errors shared by all xpack packages.
//
// Codec statuses keep the numeric codes persisted by older tools so that
// diagnostics stay comparable; use Code to recover them from a wrapped error.
package errs

import (
	"errors"
	"fmt"
)

// Codec statuses.
var (
	ErrError             = errors.New("compression error")
	ErrOutOfMemory       = errors.New("out of memory")
	ErrNotCompressible   = errors.New("not compressible")
	ErrInputOverrun      = errors.New("input overrun")
	ErrOutputOverrun     = errors.New("output overrun")
	ErrLookbehindOverrun = errors.New("lookbehind overrun")
	ErrEOFNotFound       = errors.New("end of stream not found")
	ErrInputNotConsumed  = errors.New("input not consumed")
	ErrNotYetImplemented = errors.New("not yet implemented")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Packer conditions.
var (
	ErrCantPack                = errors.New("can't pack")
	ErrAlreadyPacked           = errors.New("already packed")
	ErrUnknownExecutableFormat = errors.New("unknown executable format")
	ErrCantUnpack              = errors.New("can't unpack")
	ErrNotPacked               = errors.New("not packed")
	ErrChecksum                = errors.New("checksum error")
	ErrInvalidHeaderSize       = errors.New("invalid pack header size")
	ErrInvalidMagicNumber      = errors.New("invalid pack header magic number")
	ErrHeaderChecksum          = errors.New("pack header checksum mismatch")
	ErrInvalidState            = errors.New("invalid packer state")
)

// Linker conditions. All of them are programming errors and wrap ErrInternal.
var (
	ErrInternal          = errors.New("internal error")
	ErrInvalidBlob       = fmt.Errorf("%w: invalid loader blob", ErrInternal)
	ErrBlobMismatch      = fmt.Errorf("%w: linker already holds a different loader blob", ErrInternal)
	ErrUnknownFragment   = fmt.Errorf("%w: unknown loader fragment", ErrInternal)
	ErrUnknownSymbol     = fmt.Errorf("%w: unknown symbol", ErrInternal)
	ErrUnresolvedSymbol  = fmt.Errorf("%w: unresolved symbol", ErrInternal)
	ErrSymbolRedefined   = fmt.Errorf("%w: symbol redefined", ErrInternal)
	ErrRelocationRange   = fmt.Errorf("%w: relocation out of range", ErrInternal)
	ErrAlreadyRelocated  = fmt.Errorf("%w: loader already relocated", ErrInternal)
	ErrNotRelocated      = fmt.Errorf("%w: loader not relocated", ErrInternal)
	ErrWriteSizeMismatch = fmt.Errorf("%w: written byte count mismatch", ErrInternal)
)

var codes = []struct {
	err  error
	code int
}{
	{ErrError, -1},
	{ErrOutOfMemory, -2},
	{ErrNotCompressible, -3},
	{ErrInputOverrun, -4},
	{ErrOutputOverrun, -5},
	{ErrLookbehindOverrun, -6},
	{ErrEOFNotFound, -7},
	{ErrInputNotConsumed, -8},
	{ErrNotYetImplemented, -9},
	{ErrInvalidArgument, -10},
}

// Code returns the historical numeric status of err: 0 for nil, the matching
// negative code for a codec status, and -1 for anything else.
func Code(err error) int {
	if err == nil {
		return 0
	}

	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return -1
}

// IsCorruption reports whether err signals corrupt compressed data.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrInputOverrun) ||
		errors.Is(err, ErrOutputOverrun) ||
		errors.Is(err, ErrLookbehindOverrun) ||
		errors.Is(err, ErrEOFNotFound) ||
		errors.Is(err, ErrInputNotConsumed)
}

// CantPackError reports why a file was rejected by a packer.
type CantPackError struct {
	Format string
	Reason string
	Err    error
}

// NewCantPack returns a CantPackError wrapping ErrCantPack.
func NewCantPack(format, reason string) *CantPackError {
	return &CantPackError{Format: format, Reason: reason, Err: ErrCantPack}
}

// NewNotCompressible reports a file that no trial could shrink enough.
func NewNotCompressible(format string) *CantPackError {
	return &CantPackError{Format: format, Reason: "not compressible", Err: ErrNotCompressible}
}

// NewAlreadyPacked reports a file that already carries a pack header.
func NewAlreadyPacked(format string) *CantPackError {
	return &CantPackError{Format: format, Reason: "already packed by xpack", Err: ErrAlreadyPacked}
}

func (e *CantPackError) Error() string {
	if e.Format == "" {
		return e.Reason
	}

	return e.Format + ": " + e.Reason
}

// Unwrap makes every CantPackError match ErrCantPack as well as its cause.
func (e *CantPackError) Unwrap() []error {
	if e.Err == nil || e.Err == ErrCantPack {
		return []error{ErrCantPack}
	}

	return []error{ErrCantPack, e.Err}
}

// InternalError reports a broken invariant: a programming error, never bad input.
type InternalError struct {
	Op  string
	Err error
}

// NewInternal returns an InternalError for op. err may be nil.
func NewInternal(op string, err error) *InternalError {
	return &InternalError{Op: op, Err: err}
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return "internal error: " + e.Op
	}

	return "internal error: " + e.Op + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInternal}
	}

	return []error{ErrInternal, e.Err}
}
