// Package options implements functional options shared by the linker and the packers.
package options

import "github.com/hashicorp/go-multierror"

// Option configures a target of type T.
type Option[T any] interface {
	apply(T) error
}

// Func adapts a function to Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	if f == nil || f.applyFunc == nil {
		return nil
	}

	return f.applyFunc(target)
}

// New creates an option that may reject its argument.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError creates an option that always succeeds.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies opts to target in order.
//
// Every option is applied even after a failure, so that a caller sees all
// rejected settings at once. The returned error is a *multierror.Error listing
// each failure, or nil.
func Apply[T any](target T, opts ...Option[T]) error {
	var result *multierror.Error
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
