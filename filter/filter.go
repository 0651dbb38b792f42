// Package filter implements the reversible call-trick transforms applied to
// 16-bit code before compression.
//
// A call-trick filter rewrites the relative operand that follows a near call
// (0xE8) or jump (0xE9) opcode into an absolute one. Calls to the same target
// then carry identical operands, which the match finder picks up. The loader
// runs the inverse transform after decompression.
package filter

import (
	"fmt"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// Filter is the state of one filter run over a buffer.
//
// Calls and LastCall are recomputed by every Scan, Do and Undo; the loader
// needs them to size its own unfilter loop.
type Filter struct {
	ID       format.Filter
	AddValue uint16 // added to every absolute operand
	Calls    int    // operands rewritten by the last run
	LastCall int    // offset just past the last rewritten operand, 0 if none
	BufLen   int    // length of the buffer of the last run
}

// New returns a filter for id.
func New(id format.Filter) (*Filter, error) {
	if !Valid(id) {
		return nil, fmt.Errorf("%w: unsupported filter %#x", errs.ErrInvalidArgument, int(id))
	}

	return &Filter{ID: id}, nil
}

// Valid reports whether id names a concrete filter, including the identity filter.
func Valid(id format.Filter) bool {
	return id == format.FilterNoop || id.IsCallTrick16()
}

// IDs returns every concrete call-trick filter id in ascending order.
func IDs() []format.Filter {
	return []format.Filter{
		format.FilterCT16E8, format.FilterCT16E9, format.FilterCT16E8E9,
		format.FilterCT16E8BS, format.FilterCT16E9BS, format.FilterCT16E8E9BS,
	}
}

// Scan counts the operands Do would rewrite, leaving buf untouched.
func (f *Filter) Scan(buf []byte) error {
	return f.run(buf, modeScan)
}

// Do applies the transform to buf.
func (f *Filter) Do(buf []byte) error {
	return f.run(buf, modeDo)
}

// Undo reverses Do on buf.
func (f *Filter) Undo(buf []byte) error {
	return f.run(buf, modeUndo)
}

// Stub16Calls returns the count the 16-bit loader is patched with. Loaders for
// single-opcode filters count down over the operand stream instead of the calls.
func (f *Filter) Stub16Calls() int {
	if f.ID%3 != 0 {
		return f.LastCall - 2*f.Calls
	}

	return f.Calls
}

// Opcodes reports whether the filter rewrites call and jump operands.
func (f *Filter) Opcodes() (call, jump bool) {
	switch f.ID {
	case format.FilterCT16E8, format.FilterCT16E8BS:
		return true, false
	case format.FilterCT16E9, format.FilterCT16E9BS:
		return false, true
	case format.FilterCT16E8E9, format.FilterCT16E8E9BS:
		return true, true
	default:
		return false, false
	}
}

// ByteSwapped reports whether absolute operands are stored big-endian.
func (f *Filter) ByteSwapped() bool {
	return f.ID >= format.FilterCT16E8BS && f.ID <= format.FilterCT16E8E9BS
}

func (f *Filter) String() string {
	return fmt.Sprintf("%s calls=%d lastcall=%d", f.ID, f.Calls, f.LastCall)
}

type mode uint8

const (
	modeScan mode = iota
	modeDo
	modeUndo
)

func (f *Filter) run(buf []byte, m mode) error {
	if !Valid(f.ID) {
		return fmt.Errorf("%w: unsupported filter %#x", errs.ErrInvalidArgument, int(f.ID))
	}

	f.Calls = 0
	f.LastCall = 0
	f.BufLen = len(buf)
	if f.ID == format.FilterNoop {
		return nil
	}

	call, jump := f.Opcodes()
	le := endian.GetLittleEndianEngine()
	be := endian.GetBigEndianEngine()

	for i := 0; i < len(buf)-3; i++ {
		op := buf[i]
		if !(call && op == 0xe8) && !(jump && op == 0xe9) {
			continue
		}

		a := uint16(i + 1)
		operand := buf[i+1 : i+3]
		switch m {
		case modeDo:
			v := le.Uint16(operand) + a + f.AddValue
			if f.ByteSwapped() {
				be.PutUint16(operand, v)
			} else {
				le.PutUint16(operand, v)
			}
		case modeUndo:
			var v uint16
			if f.ByteSwapped() {
				v = be.Uint16(operand)
			} else {
				v = le.Uint16(operand)
			}
			le.PutUint16(operand, v-a-f.AddValue)
		}

		f.Calls++
		f.LastCall = i + 3
		i += 2
	}

	return nil
}
