package packer

import (
	"bytes"
	"slices"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arloliu/xpack/compress"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/filter"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/section"
)

const (
	// minGain is the smallest saving worth a loader.
	minGain = 512
	// bigGain is a saving accepted regardless of the input size.
	bigGain = 4096
	// overlapSlack bounds the overlap search above ULen.
	overlapSlack = 512
)

// trial is one (method, level, filter) candidate.
type trial struct {
	header   Header
	obuf     []byte
	filtered []byte
	ft       *filter.Filter
	total    int // compressed length plus loader size
}

// CompressWithFilters runs the (method, level, filter) trials over Ibuf[:PH.ULen] and
// keeps the one with the smallest compressed length plus loader size; ties keep
// the earlier trial. p.BuildLoader runs for every candidate so the loader size
// is exact, and once more for the winner.
//
// overlapRange is the precision of the overlap search, upper caps the overlap
// (0 for no cap beyond ULen+512).
func (b *Base) CompressWithFilters(p Packer, overlapRange, upper int) error {
	if err := b.checkState("compress", StateCanPackChecked); err != nil {
		return err
	}
	ulen := b.PH.ULen
	if ulen <= 0 || ulen > len(b.Ibuf) {
		return b.fail(errs.NewInternal("compress", errors.Errorf("u_len %d of %d input bytes", ulen, len(b.Ibuf))))
	}

	level := b.Opts.LevelFor(ulen)
	methods, err := b.methodPlan(p, level)
	if err != nil {
		return b.fail(err)
	}
	filters, err := b.filterPlan(p)
	if err != nil {
		return b.fail(err)
	}

	levels := b.levelPlan(level)

	prog := newProgressScaler(b.Opts.Progress, len(methods)*len(levels)*len(filters), ulen)
	var best *trial
	for _, m := range methods {
		for _, lvl := range levels {
			for _, fid := range filters {
				t, err := b.runTrial(p, m, fid, lvl, overlapRange, upper, prog.trial())
				prog.next()
				if err != nil {
					return b.fail(err)
				}
				if t == nil {
					continue
				}
				if ce := b.lg.Check(zap.DebugLevel, "Trial"); ce != nil {
					ce.Write(
						zap.Stringer("method", m),
						zap.Stringer("filter", fid),
						zap.Int("level", lvl),
						zap.Int("c_len", t.header.CLen),
						zap.Int("loader", t.total-t.header.CLen),
						zap.Int("overlap", t.header.Overlap),
					)
				}
				if best == nil || t.total < best.total {
					best = t
				}
			}
		}
	}
	if best == nil {
		return b.fail(errs.NewNotCompressible(p.Name()))
	}

	b.PH = best.header
	b.Obuf = best.obuf
	b.Filtered = best.filtered
	b.Filter = best.ft
	if err := p.BuildLoader(best.ft); err != nil {
		return b.fail(err)
	}
	b.lg.Debug("Selected trial",
		zap.Stringer("method", b.PH.Method),
		zap.Stringer("filter", b.PH.Filter),
		zap.Int("level", b.PH.Level),
		zap.Int("u_len", b.PH.ULen),
		zap.Int("c_len", b.PH.CLen),
		zap.Int("overlap", b.PH.Overlap),
		zap.Int("loader", b.LoaderSize()),
	)

	return b.advance(StateCompressed)
}

// runTrial returns nil without an error when the candidate is skipped.
func (b *Base) runTrial(p Packer, m format.Method, fid format.Filter, level, overlapRange, upper int, cb compress.Callback) (*trial, error) {
	ulen := b.PH.ULen
	ft, err := filter.New(fid)
	if err != nil {
		return nil, err
	}
	ft.AddValue = b.FilterAddValue

	buf := slices.Clone(b.Ibuf[:ulen])
	if err := ft.Do(buf); err != nil {
		return nil, err
	}
	if fid != format.FilterNoop && ft.Calls == 0 {
		return nil, nil
	}

	obuf := make([]byte, compress.MaxCompressedSize(ulen))
	var res compress.Result
	clen, err := compress.Compress(buf, obuf, cb, m, level, b.Opts.Config, &res)
	if errors.Is(err, errs.ErrNotCompressible) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !CheckCompressionRatio(ulen, clen) {
		return nil, nil
	}

	b.PH = Header{
		Format:    b.exe,
		Method:    m,
		Level:     level,
		ULen:      ulen,
		CLen:      clen,
		UAdler:    compress.Adler32(buf, compress.AdlerInit),
		CAdler:    compress.Adler32(obuf[:clen], compress.AdlerInit),
		UFileSize: b.FileSize,
		Filter:    fid,
		Result:    res,
	}
	overhead, err := b.FindOverlapOverhead(obuf[:clen], overlapRange, upper)
	if err != nil {
		return nil, err
	}
	b.PH.Overlap = overhead

	if err := p.BuildLoader(ft); err != nil {
		return nil, err
	}

	return &trial{
		header:   b.PH,
		obuf:     obuf[:clen:clen],
		filtered: buf,
		ft:       ft,
		total:    clen + b.LoaderSize(),
	}, nil
}

func (b *Base) methodPlan(p Packer, level int) ([]format.Method, error) {
	all := p.Methods(b.Opts.Method, level)
	if len(all) == 0 {
		return nil, errs.NewInternal("method plan", errors.Errorf("%s lists no methods", p.Name()))
	}

	switch {
	case b.Opts.Method != format.MethodNone:
		if !slices.Contains(all, b.Opts.Method) {
			return nil, errs.NewCantPack(p.Name(), "method "+b.Opts.Method.String()+" is not supported")
		}
		return []format.Method{b.Opts.Method}, nil
	case b.Opts.Brute:
		return all, nil
	default:
		return all[:1], nil
	}
}

// levelPlan returns the compression levels to try. Ultra brute adds the two
// strongest levels after the selected one.
func (b *Base) levelPlan(level int) []int {
	if !b.Opts.UltraBrute {
		return []int{level}
	}
	levels := []int{level}
	for _, l := range []int{compress.LevelBest - 1, compress.LevelBest} {
		if !slices.Contains(levels, l) {
			levels = append(levels, l)
		}
	}

	return levels
}

func (b *Base) filterPlan(p Packer) ([]format.Filter, error) {
	all := p.Filters()
	want := b.Opts.Filter

	switch {
	case want == format.FilterNoop:
		return []format.Filter{format.FilterNoop}, nil
	case want != format.FilterNone:
		if !slices.Contains(all, want) {
			return nil, errs.NewCantPack(p.Name(), "filter "+want.String()+" is not supported")
		}
		return []format.Filter{want}, nil
	case len(all) == 0:
		return []format.Filter{format.FilterNoop}, nil
	case b.Opts.Brute:
		return append(slices.Clone(all), format.FilterNoop), nil
	default:
		return []format.Filter{all[0], format.FilterNoop}, nil
	}
}

// FindOverlapOverhead returns the smallest extra room past PH.ULen that lets
// payload decompress in place, found by bisection. The search stops early once
// a working value lies within overlapRange of the lower bound.
func (b *Base) FindOverlapOverhead(payload []byte, overlapRange, upper int) (int, error) {
	ulen, clen := b.PH.ULen, len(payload)
	low, high := 1, ulen+overlapSlack
	if upper > 0 {
		high = min(high, upper)
	}
	m := min(16, high)

	buf := make([]byte, ulen+high)
	tbuf := make([]byte, ulen+high)
	overhead := 0
	for high >= low {
		n := ulen + m
		off := n - clen
		ok := off >= 0
		if ok {
			copy(buf[off:n], payload)
			_, err := compress.TestOverlap(buf[:n], tbuf[:n], off, clen, ulen, b.PH.Method, &b.PH.Result)
			ok = err == nil
		}
		if ok {
			overhead = m
			if m-low < overlapRange {
				break
			}
			high = m - 1
		} else {
			low = m + 1
		}
		m = (low + high) / 2
	}

	if overhead == 0 {
		return 0, errs.NewInternal("find overlap overhead",
			errors.Errorf("no safe overlap for %s u_len %d c_len %d", b.PH.Method, ulen, clen))
	}

	return overhead, nil
}

// VerifyOverlappingDecompression decompresses Obuf in place with the chosen
// overlap and checks the result against the filtered and the original input.
func (b *Base) VerifyOverlappingDecompression() error {
	h := &b.PH
	n := h.ULen + h.Overlap
	if h.CLen > n || len(b.Obuf) != h.CLen {
		return b.fail(errs.NewInternal("verify", errors.Errorf("c_len %d does not fit %d bytes", h.CLen, n)))
	}

	buf := make([]byte, n)
	off := n - h.CLen
	copy(buf[off:], b.Obuf)
	got, err := compress.DecompressInPlace(buf, off, h.CLen, h.ULen, h.Method, &h.Result)
	if err != nil {
		return b.fail(errs.NewInternal("verify in-place decompression", err))
	}
	out := buf[:h.ULen]
	if got != h.ULen {
		return b.fail(errs.NewInternal("verify", errors.Errorf("decompressed %d of %d bytes", got, h.ULen)))
	}
	if sum := compress.Adler32(out, compress.AdlerInit); sum != h.UAdler {
		return b.fail(errs.NewInternal("verify", errors.Wrapf(errs.ErrChecksum, "adler32 %#08x, want %#08x", sum, h.UAdler)))
	}
	if !bytes.Equal(out, b.Filtered) {
		return b.fail(errs.NewInternal("verify", errors.New("decompressed data differs from the filtered input")))
	}

	if h.Filter != format.FilterNoop {
		ft, err := filter.New(h.Filter)
		if err != nil {
			return b.fail(err)
		}
		ft.AddValue = b.FilterAddValue
		if err := ft.Undo(out); err != nil {
			return b.fail(err)
		}
	}
	if !bytes.Equal(out, b.Ibuf[:h.ULen]) {
		return b.fail(errs.NewInternal("verify", errors.New("unfiltered data differs from the input")))
	}

	return nil
}

// CheckCompressionRatio reports whether compressing u bytes to c is worth a loader:
// the gain must be at least 512 bytes, and at least 1/16 of u unless it reaches 4096.
func CheckCompressionRatio(u, c int) bool {
	if c >= u {
		return false
	}
	gain := u - c
	if gain < minGain {
		return false
	}

	return gain >= bigGain || gain >= u/16
}

// CheckFinalCompressionRatio applies CheckCompressionRatio to the written file.
func (b *Base) CheckFinalCompressionRatio(out OutputFile) error {
	if !CheckCompressionRatio(b.FileSize, int(out.BytesWritten())) {
		return b.fail(errs.NewNotCompressible(b.Name()))
	}

	return nil
}

// CheckAlreadyPacked fails when buf carries a pack header.
func (b *Base) CheckAlreadyPacked(buf []byte) error {
	if _, _, err := section.Find(buf); err == nil {
		return errs.NewAlreadyPacked(b.Name())
	}

	return nil
}
