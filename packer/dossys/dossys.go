// Package dossys packs DOS device drivers (.sys files).
//
// A device driver starts with a device header whose strategy routine pointer
// is redirected to the loader. The packed file keeps the header, followed by
// the loader entry, the pack header, the compressed driver and the
// decompressor. At run time the entry moves the payload to the top of the
// segment, the decompressor expands it in place, unfilters call operands and
// jumps to the original strategy routine.
package dossys

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/filter"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/linker"
	"github.com/arloliu/xpack/packer"
	"github.com/arloliu/xpack/stub"
)

const (
	probeSize = 128
	minSize   = 1024
	maxSize   = 0x10000

	// maxEntry and maxDecompressor bound the two halves of the loader.
	maxEntry        = 128
	maxDecompressor = 256
	// maxImage is the highest offset the expanded driver may use in its segment.
	maxImage = 0xfffe
	// smallOffsets is the largest match offset the short decoder table handles.
	smallOffsets = 0xd00
	// overlapRangeLimit is the size from which the overlap search runs exhaustively.
	overlapRangeLimit = 0xfe00
	overlapRange      = 32
)

var magic = []byte{0xff, 0xff, 0xff, 0xff}

var (
	methods = []format.Method{format.MethodNRV2BLE16}
	filters = []format.Filter{
		format.FilterCT16E8E9BS, format.FilterCT16E8E9, format.FilterCT16E8BS,
		format.FilterCT16E8, format.FilterCT16E9BS, format.FilterCT16E9,
	}
)

func init() {
	packer.Register(New)
}

// Packer packs dos/sys files.
type Packer struct {
	*packer.Base
}

var _ packer.Packer = (*Packer)(nil)

// New returns a dos/sys packer for in.
func New(in packer.InputFile, opts *packer.Options) packer.Packer {
	return &Packer{Base: packer.NewBase(format.ExeDOSSYS, in, opts)}
}

// FullName returns the loader family name.
func (p *Packer) FullName() string {
	return "i086-dos16.sys"
}

// Methods returns the only method the 16-bit decompressor implements.
func (p *Packer) Methods(_ format.Method, _ int) []format.Method {
	return methods
}

// Filters returns the call-trick filters the loader can undo, best first.
func (p *Packer) Filters() []format.Filter {
	return filters
}

// CanPack checks the device header magic, the extension and the size.
func (p *Packer) CanPack() (bool, error) {
	if err := p.CheckState("can pack", packer.StateUnprobed); err != nil {
		return false, err
	}

	probe, err := p.ReadProbe(probeSize)
	if err != nil {
		return false, p.Fail(err)
	}
	if !bytes.HasPrefix(probe, magic) {
		return false, nil
	}
	if !p.Opts.Force && !strings.EqualFold(filepath.Ext(p.In.Name()), ".sys") {
		return false, nil
	}
	if err := p.CheckAlreadyPacked(probe); err != nil {
		return false, p.Fail(err)
	}

	size := p.In.Size()
	if size < minSize {
		return false, p.Fail(errs.NewCantPack(p.Name(), "file is too small for dos/sys"))
	}
	if size > maxSize {
		return false, p.Fail(errs.NewCantPack(p.Name(), "file is too large for dos/sys"))
	}

	return true, p.Accept()
}

// BuildLoader selects the loader fragments for the current trial.
func (p *Packer) BuildLoader(ft *filter.Filter) error {
	blob, err := stub.DOS16SYS()
	if err != nil {
		return err
	}
	if err := p.InitLoader(blob, linker.WithFilterFragments(filterFragments(p.Opts.CPU))); err != nil {
		return err
	}

	l := p.Linker()
	i8086 := p.Opts.CPU == format.CPU8086
	nrv := p.PH.Result.NRV
	filtered := ft != nil && ft.ID != format.FilterNoop

	if err := l.Add(
		"SYSMAIN1",
		pick(i8086, "SYSI0861", "SYSI2861"),
		"SYSMAIN2",
		pick(nrv.FirstOffset == 1, "SYSSBBBP", ""),
		pick(filtered, "SYSCALLT", ""),
		"SYSMAIN3,UPX1HEAD,SYSCUTPO,NRV2B160,NRVDDONE,NRVDECO1",
		pick(nrv.MaxOffset <= smallOffsets, "NRVLED00", "NRVGTD00"),
		"NRVDECO2",
	); err != nil {
		return err
	}
	if filtered {
		if err := l.AddFilter(ft.ID); err != nil {
			return err
		}
	}

	return l.Add("SYSMAIN5", pick(i8086, "SYSI0862", "SYSI2862"), "SYSJUMP1")
}

// filterFragments returns the unfilter loop fragments for a call-trick filter.
func filterFragments(cpu format.CPU) linker.FilterFragments {
	i8086 := cpu == format.CPU8086

	return func(id format.Filter) ([]string, error) {
		if !id.IsCallTrick16() {
			return nil, errors.Wrapf(errs.ErrInvalidArgument, "no 16-bit unfilter loop for %s", id)
		}

		swap := func(sub string) []string {
			switch {
			case id < format.FilterCT16E8BS:
				return []string{sub}
			case i8086:
				if sub == "CT16SUB0" {
					return []string{"CT16I086"}
				}
				return []string{"CT16I087"}
			default:
				if sub == "CT16SUB0" {
					return []string{"CT16I286", sub}
				}
				return []string{"CT16I287", sub}
			}
		}

		if id%3 == 0 {
			names := []string{"CALLTR16"}
			names = append(names, swap("CT16SUB0")...)
			return append(names, "CALLTRI2"), nil
		}

		names := []string{pick(id%3 == 1, "CT16E800", "CT16E900"), "CALLTRI5", "CT16JUL2"}
		names = append(names, swap("CT16SUB1")...)

		return append(names, "CALLTRI6"), nil
	}
}

// PatchLoader defines the loader symbols and writes entry, payload and decompressor.
func (p *Packer) PatchLoader(out packer.OutputFile, l *linker.Linker, calls int) error {
	if err := p.CheckState("patch loader", packer.StateCompressed); err != nil {
		return err
	}

	eLen, err := l.SectionStart("SYSCUTPO")
	if err != nil {
		return p.Fail(err)
	}
	lsize := l.Size()
	dLen := lsize - eLen
	if eLen <= 0 || eLen >= maxEntry || dLen <= 0 || dLen >= maxDecompressor {
		return p.Fail(errs.NewInternal("patch loader", errors.Errorf("entry %d, decompressor %d bytes", eLen, dLen)))
	}

	h := &p.PH
	if h.ULen+dLen+h.Overlap > maxImage {
		return p.Fail(errs.NewNotCompressible(p.Name()))
	}

	le := endian.GetLittleEndianEngine()
	defs := []struct {
		name  string
		value int64
	}{
		{"attribute", int64(le.Uint16(p.Ibuf[4:]))},
		{"interrupt", int64(le.Uint16(p.Ibuf[8:]))},
		{"calltrick_calls", int64(calls)},
		{"copy_source", int64(h.CLen + lsize - 1)},
		{"copy_destination", int64(h.ULen + dLen + h.Overlap)},
		{"neg_e_len", -int64(eLen)},
		{"NRV2B160", int64(h.ULen + h.Overlap + 1)},
		{"original_strategy", int64(le.Uint16(p.Ibuf[6:]))},
	}
	for _, d := range defs {
		if err := l.Define(d.name, d.value); err != nil {
			return p.Fail(err)
		}
	}
	if err := l.Relocate(); err != nil {
		return p.Fail(err)
	}
	loader, err := l.Loader()
	if err != nil {
		return p.Fail(err)
	}
	if _, err := h.PackHeader().Patch(loader[:eLen]); err != nil {
		return p.Fail(err)
	}

	if ce := p.Logger().Check(zap.DebugLevel, "Patched loader"); ce != nil {
		ce.Write(
			zap.Int("e_len", eLen),
			zap.Int("d_len", dLen),
			zap.Int("c_len", h.CLen),
			zap.Int("calls", calls),
			zap.Strings("fragments", l.Selected()),
		)
	}

	return p.WriteOutput(out, loader[:eLen], p.Obuf, loader[eLen:])
}

// Pack compresses the driver into out.
func (p *Packer) Pack(out packer.OutputFile) error {
	if err := p.CheckState("pack", packer.StateCanPackChecked); err != nil {
		return err
	}
	if err := p.LoadInput(); err != nil {
		return p.Fail(err)
	}

	p.PH.ULen = p.FileSize
	rng := 0
	if p.PH.ULen < overlapRangeLimit {
		rng = overlapRange
	}
	if err := p.CompressWithFilters(p, rng, 0); err != nil {
		return err
	}
	if err := p.PatchLoader(out, p.Linker(), p.Filter.Stub16Calls()); err != nil {
		return err
	}
	if err := p.VerifyOverlappingDecompression(); err != nil {
		return err
	}

	return p.CheckFinalCompressionRatio(out)
}

// CanUnpack reports whether the input is a driver packed by this format.
func (p *Packer) CanUnpack() (bool, error) {
	if err := p.CheckState("can unpack", packer.StateUnprobed); err != nil {
		return false, err
	}

	probe, err := p.ReadProbe(probeSize)
	if err != nil {
		return false, p.Fail(err)
	}
	if !bytes.HasPrefix(probe, magic) {
		return false, nil
	}
	if _, _, err := p.ReadPackHeader(probeSize); err != nil {
		if errors.Is(err, errs.ErrNotPacked) {
			return false, nil
		}
		return false, p.Fail(err)
	}

	return true, p.Accept()
}

// Unpack restores the original driver into out.
func (p *Packer) Unpack(out packer.OutputFile) error {
	data, err := p.unpack()
	if err != nil {
		return err
	}

	return p.WriteOutput(out, data)
}

// Test decompresses the payload and verifies both checksums.
func (p *Packer) Test() error {
	_, err := p.unpack()
	return err
}

func (p *Packer) unpack() ([]byte, error) {
	if err := p.CheckState("unpack", packer.StateCanPackChecked); err != nil {
		return nil, err
	}

	pos, size, err := p.ReadPackHeader(probeSize)
	if err != nil {
		return nil, p.Fail(err)
	}
	start := pos + size
	if p.FileSize <= start+p.PH.CLen {
		return nil, p.Fail(errors.Wrapf(errs.ErrCantUnpack, "file of %d bytes truncated before the decompressor", p.FileSize))
	}

	data, err := p.DecompressPayload(p.Ibuf[start : start+p.PH.CLen])
	if err != nil {
		return nil, p.Fail(err)
	}

	return data, nil
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}

	return no
}
