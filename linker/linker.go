// Package linker assembles loaders from named fragments.
//
// A loader blob (see Object) is registered once per linker. A packer then
// selects fragments in order, defines the numeric facts its loader needs and
// relocates the result once:
//
//	l, _ := linker.New(linker.WithFilterFragments(resolve))
//	_ = l.Register(blob)
//	_ = l.Add("MAIN1", cond ? "ALT" : "", "MAIN2,HEADER,CUT")
//	_ = l.Define("copy_source", n)
//	_ = l.Relocate()
//	code, _ := l.Loader()
//
// Fragments are immutable; every selection copies their bytes into the
// linker's own output.
package linker

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/internal/hash"
	"github.com/arloliu/xpack/internal/options"
)

// FilterFragments returns the fragment names implementing the unfilter loop of a filter.
type FilterFragments func(id format.Filter) ([]string, error)

// Option configures a Linker.
type Option = options.Option[*Linker]

// WithFilterFragments sets the resolver used by AddFilter.
func WithFilterFragments(fn FilterFragments) Option {
	return options.NoError(func(l *Linker) {
		l.filterFragments = fn
	})
}

// WithSymbolRedefinition allows Define to overwrite a symbol with a different value.
func WithSymbolRedefinition(allow bool) Option {
	return options.NoError(func(l *Linker) {
		l.allowRedefine = allow
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(lg *zap.Logger) Option {
	return options.New(func(l *Linker) error {
		if lg == nil {
			return fmt.Errorf("%w: nil logger", errs.ErrInvalidArgument)
		}
		l.lg = lg

		return nil
	})
}

// Linker is not safe for concurrent use; packers build one per pack operation.
type Linker struct {
	lg              *zap.Logger
	filterFragments FilterFragments
	allowRedefine   bool

	id       uint64
	obj      *Object
	sections map[string]*Section
	labels   map[string]Symbol
	externs  map[string]struct{}

	selected []string
	starts   map[string]int
	out      []byte
	defined  map[string]int64

	relocated bool
}

// New returns an empty linker.
func New(opts ...Option) (*Linker, error) {
	l := &Linker{
		lg:      zap.NewNop(),
		starts:  make(map[string]int),
		defined: make(map[string]int64),
	}
	if err := options.Apply(l, opts...); err != nil {
		return nil, err
	}

	return l, nil
}

// Register parses blob and makes its fragments available.
// Registering the same blob again is a no-op; a different blob fails.
func (l *Linker) Register(blob []byte) error {
	id := hash.ID(blob)
	if l.obj != nil {
		if id == l.id {
			return nil
		}

		return fmt.Errorf("%w: have %s, got %s", errs.ErrBlobMismatch, hash.String(l.id), hash.String(id))
	}

	obj, err := Unmarshal(blob)
	if err != nil {
		return err
	}

	l.id = id
	l.obj = obj
	l.sections = make(map[string]*Section, len(obj.Sections))
	for i := range obj.Sections {
		l.sections[obj.Sections[i].Name] = &obj.Sections[i]
	}
	l.labels = make(map[string]Symbol)
	l.externs = make(map[string]struct{})
	for _, sym := range obj.Symbols {
		if sym.IsExtern() {
			l.externs[sym.Name] = struct{}{}
		} else {
			l.labels[sym.Name] = sym
		}
	}

	if ce := l.lg.Check(zap.DebugLevel, "Registered loader blob"); ce != nil {
		ce.Write(
			zap.String("name", obj.Name),
			zap.String("id", hash.String(id)),
			zap.Int("sections", len(obj.Sections)),
			zap.Int("symbols", len(obj.Symbols)),
		)
	}

	return nil
}

// ID returns the identity of the registered blob, or 0.
func (l *Linker) ID() uint64 {
	return l.id
}

// Has reports whether the registered blob holds a fragment called name.
func (l *Linker) Has(name string) bool {
	_, ok := l.sections[name]
	return ok
}

// Add appends fragments to the loader. Each argument may hold several
// comma-separated names; empty names are skipped.
func (l *Linker) Add(names ...string) error {
	if l.obj == nil {
		return fmt.Errorf("%w: no loader blob registered", errs.ErrInvalidBlob)
	}
	if l.relocated {
		return errs.ErrAlreadyRelocated
	}

	for _, arg := range names {
		for _, name := range strings.Split(arg, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if err := l.add(name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *Linker) add(name string) error {
	s, ok := l.sections[name]
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownFragment, name)
	}
	if _, dup := l.starts[name]; dup {
		return fmt.Errorf("%w: fragment %q selected twice", errs.ErrInternal, name)
	}

	l.starts[name] = len(l.out)
	l.selected = append(l.selected, name)
	l.out = append(l.out, s.Data...)

	return nil
}

// AddFilter appends the unfilter fragments of filter id.
func (l *Linker) AddFilter(id format.Filter) error {
	if l.filterFragments == nil {
		return fmt.Errorf("%w: no filter fragments for %s", errs.ErrInternal, id)
	}

	names, err := l.filterFragments(id)
	if err != nil {
		return err
	}

	return l.Add(names...)
}

// Selected returns the selected fragment names in order.
func (l *Linker) Selected() []string {
	return append([]string(nil), l.selected...)
}

// SectionStart returns the offset of a selected fragment in the loader.
func (l *Linker) SectionStart(name string) (int, error) {
	off, ok := l.starts[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q not selected", errs.ErrUnknownFragment, name)
	}

	return off, nil
}

// Size returns the current loader size.
func (l *Linker) Size() int {
	return len(l.out)
}

// Define binds an extern to a value.
func (l *Linker) Define(name string, value int64) error {
	if l.relocated {
		return errs.ErrAlreadyRelocated
	}
	if _, ok := l.externs[name]; !ok {
		return fmt.Errorf("%w: %q is not an extern of the loader", errs.ErrUnknownSymbol, name)
	}
	if old, ok := l.defined[name]; ok && old != value && !l.allowRedefine {
		return fmt.Errorf("%w: %q from %d to %d", errs.ErrSymbolRedefined, name, old, value)
	}
	l.defined[name] = value

	return nil
}

// Symbol returns the value a relocation against name resolves to.
// Packer definitions come first, then labels, then fragment start addresses.
func (l *Linker) Symbol(name string) (int64, error) {
	if v, ok := l.defined[name]; ok {
		return v, nil
	}
	if _, ok := l.externs[name]; ok {
		return 0, fmt.Errorf("%w: extern %q is not defined", errs.ErrUnresolvedSymbol, name)
	}
	if sym, ok := l.labels[name]; ok {
		start, ok := l.starts[sym.Section]
		if !ok {
			return 0, fmt.Errorf("%w: label %q lives in unselected fragment %q", errs.ErrUnresolvedSymbol, name, sym.Section)
		}

		return int64(start) + int64(sym.Offset), nil
	}
	if start, ok := l.starts[name]; ok {
		return int64(start), nil
	}

	return 0, fmt.Errorf("%w: %q", errs.ErrUnresolvedSymbol, name)
}

// Relocate patches every relocation of the selected fragments.
// It can run only once.
func (l *Linker) Relocate() error {
	if l.relocated {
		return errs.ErrAlreadyRelocated
	}
	if l.obj == nil {
		return fmt.Errorf("%w: no loader blob registered", errs.ErrInvalidBlob)
	}

	for _, name := range l.selected {
		start := l.starts[name]
		for _, r := range l.sections[name].Relocs {
			s, err := l.Symbol(r.Symbol)
			if err != nil {
				return fmt.Errorf("%s+%#x: %w", name, r.Offset, err)
			}

			pos := start + int(r.Offset)
			v := s + r.Addend
			if r.Type.PCRelative() {
				v -= int64(pos)
			}
			if err := patch(l.out[pos:], r.Type, v); err != nil {
				return fmt.Errorf("%s+%#x (%s): %w", name, r.Offset, r.Symbol, err)
			}
		}
	}

	l.relocated = true
	if ce := l.lg.Check(zap.DebugLevel, "Relocated loader"); ce != nil {
		ce.Write(zap.Strings("fragments", l.selected), zap.Int("size", len(l.out)))
	}

	return nil
}

// Loader returns the relocated loader.
func (l *Linker) Loader() ([]byte, error) {
	if !l.relocated {
		return nil, errs.ErrNotRelocated
	}

	return l.out, nil
}

func patch(b []byte, t RelocType, v int64) error {
	if err := checkRange(t, v); err != nil {
		return err
	}

	le := endian.GetLittleEndianEngine()
	be := endian.GetBigEndianEngine()
	switch t {
	case RelocAbs8, RelocRel8:
		b[0] = byte(v)
	case RelocAbs16, RelocRel16:
		le.PutUint16(b, uint16(v))
	case RelocAbs32, RelocRel32:
		le.PutUint32(b, uint32(v))
	case RelocAbs16BE:
		be.PutUint16(b, uint16(v))
	case RelocAbs32BE:
		be.PutUint32(b, uint32(v))
	default:
		return fmt.Errorf("%w: relocation type %d", errs.ErrInvalidBlob, t)
	}

	return nil
}

// checkRange accepts signed or unsigned values for absolute relocations and
// signed values for relative ones.
func checkRange(t RelocType, v int64) error {
	bits := t.Width() * 8
	if bits == 0 {
		return fmt.Errorf("%w: relocation type %d", errs.ErrInvalidBlob, t)
	}

	lo := int64(-1) << (bits - 1)
	hi := int64(math.MaxUint32)
	if bits < 32 {
		hi = int64(1)<<bits - 1
	}
	if t.PCRelative() {
		hi = int64(1)<<(bits-1) - 1
	}
	if v < lo || v > hi {
		return fmt.Errorf("%w: %s value %d outside [%d, %d]", errs.ErrRelocationRange, t, v, lo, hi)
	}

	return nil
}
