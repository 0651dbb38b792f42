package packer

import (
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/arloliu/xpack/compress"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/filter"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/internal/pool"
	"github.com/arloliu/xpack/linker"
	"github.com/arloliu/xpack/section"
)

// Header is the in-memory description of the payload being built or read.
// PackHeader converts it to the persisted form.
type Header struct {
	Format    format.Executable
	Method    format.Method
	Level     int
	ULen      int
	CLen      int
	UAdler    uint32 // adler32 of the filtered, uncompressed data
	CAdler    uint32 // adler32 of the compressed data
	UFileSize int
	Filter    format.Filter
	FilterCTO uint8

	// Overlap is the extra room the in-place decompression needs past ULen.
	Overlap int
	// Result is the codec result of the compression, needed to decode it again.
	Result compress.Result
}

// PackHeader returns the persisted header for h.
func (h *Header) PackHeader() *section.PackHeader {
	ph := section.NewPackHeader(h.Format)
	ph.Method = h.Method
	ph.Level = uint8(h.Level)
	ph.UAdler = h.UAdler
	ph.CAdler = h.CAdler
	ph.ULen = uint32(h.ULen)
	ph.CLen = uint32(h.CLen)
	ph.UFileSize = uint32(h.UFileSize)
	ph.Filter = h.Filter
	ph.FilterCTO = h.FilterCTO

	return ph
}

// headerFrom converts a parsed header back.
func headerFrom(ph section.PackHeader) Header {
	return Header{
		Format:    ph.Format,
		Method:    ph.Method,
		Level:     int(ph.Level),
		ULen:      int(ph.ULen),
		CLen:      int(ph.CLen),
		UAdler:    ph.UAdler,
		CAdler:    ph.CAdler,
		UFileSize: int(ph.UFileSize),
		Filter:    ph.Filter,
		FilterCTO: ph.FilterCTO,
	}
}

// Base carries the state and steps shared by all format packers.
type Base struct {
	Opts     *Options
	In       InputFile
	FileSize int
	Ibuf     []byte // the whole input once LoadInput ran
	PH       Header

	// Obuf and Filtered hold the compressed payload and the filtered input of PH.
	Obuf     []byte
	Filtered []byte
	// Filter is the filter state of PH, with Calls and LastCall of the filtered input.
	Filter *filter.Filter
	// FilterAddValue is added to every absolute call-trick operand.
	FilterAddValue uint16

	exe    format.Executable
	lg     *zap.Logger
	state  State
	linker *linker.Linker
}

// NewBase returns the shared part of a packer for exe. A nil opts uses the defaults.
func NewBase(exe format.Executable, in InputFile, opts *Options) *Base {
	if opts == nil {
		opts = &Options{Method: format.MethodNone, Filter: format.FilterNone}
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Base{
		Opts: opts,
		In:   in,
		exe:  exe,
		lg:   lg.Named(exe.String()).With(zap.String("file", in.Name())),
	}
}

// Format returns the executable format id.
func (b *Base) Format() format.Executable {
	return b.exe
}

// Name returns the short format name.
func (b *Base) Name() string {
	return b.exe.String()
}

// State returns the lifecycle position.
func (b *Base) State() State {
	return b.state
}

// Header returns the pack header of the last pack or unpack.
func (b *Base) Header() Header {
	return b.PH
}

// Logger returns the packer's logger.
func (b *Base) Logger() *zap.Logger {
	return b.lg
}

// CheckState fails with ErrInvalidState unless the packer is in one of want.
func (b *Base) CheckState(op string, want ...State) error {
	return b.checkState(op, want...)
}

// Accept records a successful CanPack or CanUnpack.
func (b *Base) Accept() error {
	return b.advance(StateCanPackChecked)
}

// Fail moves the packer to StateFailed and returns err.
func (b *Base) Fail(err error) error {
	return b.fail(err)
}

// ReadProbe reads up to n bytes from the start of the input.
func (b *Base) ReadProbe(n int) ([]byte, error) {
	if size := b.In.Size(); int64(n) > size {
		n = int(size)
	}
	buf := make([]byte, n)
	if err := ReadAt(b.In, buf, 0); err != nil {
		return nil, err
	}

	return buf, nil
}

// LoadInput reads the whole input into Ibuf.
func (b *Base) LoadInput() error {
	if b.Ibuf != nil {
		return nil
	}
	buf, err := ReadAll(b.In)
	if err != nil {
		return err
	}
	b.Ibuf = buf
	b.FileSize = len(buf)

	return nil
}

// InitLoader starts a fresh loader from blob for the current trial.
func (b *Base) InitLoader(blob []byte, opts ...linker.Option) error {
	if err := b.checkState("build loader", StateCanPackChecked, StateLoaderBuilt); err != nil {
		return err
	}

	l, err := linker.New(append([]linker.Option{linker.WithLogger(b.lg)}, opts...)...)
	if err != nil {
		return err
	}
	if err := l.Register(blob); err != nil {
		return err
	}
	b.linker = l

	return b.advance(StateLoaderBuilt)
}

// Linker returns the loader of the current trial, nil before InitLoader.
func (b *Base) Linker() *linker.Linker {
	return b.linker
}

// LoaderSize returns the size of the current loader, 0 before InitLoader.
func (b *Base) LoaderSize() int {
	if b.linker == nil {
		return 0
	}

	return b.linker.Size()
}

// WriteOutput writes parts to out and checks that every byte arrived.
// It moves the packer to StateWritten.
func (b *Base) WriteOutput(out OutputFile, parts ...[]byte) error {
	if err := b.checkState("write", StateCompressed, StateCanPackChecked); err != nil {
		return err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	img := pool.GetImageBuffer()
	defer pool.PutImageBuffer(img)
	img.Reserve(total)
	for _, p := range parts {
		_, _ = img.Write(p)
	}

	before := out.BytesWritten()
	n, err := img.WriteTo(out)
	if err != nil {
		return b.fail(errors.Wrap(err, "write output"))
	}
	if n != int64(total) || out.BytesWritten()-before != int64(total) {
		return b.fail(errors.Wrapf(errs.ErrWriteSizeMismatch, "wrote %d of %d bytes", n, img.Len()))
	}
	if ce := b.lg.Check(zap.DebugLevel, "Wrote output"); ce != nil {
		ce.Write(zap.Int("parts", len(parts)), zap.Int64("size", n))
	}

	return b.advance(StateWritten)
}

// ReadPackHeader finds the pack header in the first window bytes of Ibuf and
// loads it into PH. It returns the header offset and size.
func (b *Base) ReadPackHeader(window int) (int, int, error) {
	if err := b.LoadInput(); err != nil {
		return 0, 0, err
	}
	if window > len(b.Ibuf) {
		window = len(b.Ibuf)
	}

	pos, ph, err := section.Find(b.Ibuf[:window])
	if err != nil {
		return 0, 0, err
	}
	if ph.Format != b.exe {
		return 0, 0, errors.Wrapf(errs.ErrNotPacked, "packed as %s, not %s", ph.Format, b.exe)
	}
	b.PH = headerFrom(ph)

	return pos, ph.Size(), nil
}

// DecompressPayload checks, decompresses and unfilters payload as described by PH.
func (b *Base) DecompressPayload(payload []byte) ([]byte, error) {
	h := &b.PH
	if len(payload) != h.CLen {
		return nil, errors.Wrapf(errs.ErrCantUnpack, "payload is %d bytes, header says %d", len(payload), h.CLen)
	}
	if sum := compress.Adler32(payload, compress.AdlerInit); sum != h.CAdler {
		return nil, errors.Wrapf(errs.ErrChecksum, "compressed data adler32 %#08x, header %#08x", sum, h.CAdler)
	}

	out := make([]byte, h.ULen)
	n, err := compress.Decompress(payload, out, h.Method, &h.Result)
	if err != nil {
		return nil, errors.Wrap(err, "decompress payload")
	}
	if n != h.ULen {
		return nil, errors.Wrapf(errs.ErrCantUnpack, "decompressed %d bytes, header says %d", n, h.ULen)
	}
	if sum := compress.Adler32(out, compress.AdlerInit); sum != h.UAdler {
		return nil, errors.Wrapf(errs.ErrChecksum, "uncompressed data adler32 %#08x, header %#08x", sum, h.UAdler)
	}

	if h.Filter != format.FilterNoop {
		ft, err := filter.New(h.Filter)
		if err != nil {
			return nil, errors.Wrap(errs.ErrCantUnpack, err.Error())
		}
		ft.AddValue = b.FilterAddValue
		if err := ft.Undo(out); err != nil {
			return nil, err
		}
	}

	return out, nil
}
