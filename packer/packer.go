// Package packer defines the contract every executable format packer fulfils
// and the lifecycle they share.
//
// A format packer embeds *Base and implements the format specific steps:
// probing the input, choosing loader fragments and laying out the output.
// Base runs the (method, filter) trials, sizes the in-place decompression
// overlap and verifies the result:
//
//	p, err := packer.Detect(in, opts)
//	...
//	err = p.Pack(out)
//
// Packers are single-use and not safe for concurrent use.
package packer

import (
	"sync"

	"github.com/go-faster/errors"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/filter"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/linker"
)

// Packer packs and unpacks one input file of one executable format.
type Packer interface {
	// Format returns the executable format id.
	Format() format.Executable
	// Name returns the short format name, e.g. "dos/sys".
	Name() string
	// FullName returns the name including the loader variant.
	FullName() string
	// Methods returns the methods to try, best first.
	Methods(method format.Method, level int) []format.Method
	// Filters returns the filters to try, best first. Nil means the format never filters.
	Filters() []format.Filter

	// CanPack probes the input. It returns false without an error when the
	// input is not of this format, and an error when it is but cannot be packed.
	CanPack() (bool, error)
	// BuildLoader assembles the loader for the current trial.
	BuildLoader(ft *filter.Filter) error
	// PatchLoader defines the symbols of loader, relocates it and writes the
	// output. calls is the filter count the loader's unfilter loop runs with.
	PatchLoader(out OutputFile, loader *linker.Linker, calls int) error
	// Pack compresses the input into out.
	Pack(out OutputFile) error

	// CanUnpack reports whether the input is a file packed by this format.
	CanUnpack() (bool, error)
	// Unpack restores the original file into out.
	Unpack(out OutputFile) error
	// Test decompresses in memory and verifies the checksums.
	Test() error

	// State returns the lifecycle position.
	State() State
}

// Factory returns a packer for in.
type Factory func(in InputFile, opts *Options) Packer

// Registry holds the known formats in registration order.
type Registry struct {
	mu        sync.RWMutex
	factories []Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a format.
func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = append(r.factories, f)
}

// Len returns the number of registered formats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.factories)
}

// Detect returns the first packer that accepts in for packing.
//
// A format that recognizes the input but rejects it ends the search with its
// error. When no format recognizes the input the error wraps
// ErrUnknownExecutableFormat.
func (r *Registry) Detect(in InputFile, opts *Options) (Packer, error) {
	return r.detect(in, opts, Packer.CanPack)
}

// DetectUnpack returns the first packer that recognizes in as packed.
func (r *Registry) DetectUnpack(in InputFile, opts *Options) (Packer, error) {
	p, err := r.detect(in, opts, Packer.CanUnpack)
	if errors.Is(err, errs.ErrUnknownExecutableFormat) {
		return nil, errors.Wrap(errs.ErrNotPacked, in.Name())
	}

	return p, err
}

func (r *Registry) detect(in InputFile, opts *Options, probe func(Packer) (bool, error)) (Packer, error) {
	if opts == nil {
		var err error
		if opts, err = NewOptions(); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	factories := append([]Factory(nil), r.factories...)
	r.mu.RUnlock()

	for _, f := range factories {
		p := f(in, opts)
		ok, err := probe(p)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}

	return nil, errors.Wrap(errs.ErrUnknownExecutableFormat, in.Name())
}

var defaultRegistry = NewRegistry()

// Register adds a format to the default registry. Format packages call it from init.
func Register(f Factory) {
	defaultRegistry.Register(f)
}

// Detect runs Registry.Detect on the default registry.
func Detect(in InputFile, opts *Options) (Packer, error) {
	return defaultRegistry.Detect(in, opts)
}

// DetectUnpack runs Registry.DetectUnpack on the default registry.
func DetectUnpack(in InputFile, opts *Options) (Packer, error) {
	return defaultRegistry.DetectUnpack(in, opts)
}
