package packer

import (
	"github.com/go-faster/errors"

	"github.com/arloliu/xpack/errs"
)

// State is the lifecycle position of a packer.
type State uint8

const (
	StateUnprobed       State = iota // nothing checked yet
	StateCanPackChecked              // CanPack or CanUnpack accepted the input
	StateLoaderBuilt                 // a loader is assembled for the current trial
	StateCompressed                  // the best trial is chosen and its loader rebuilt
	StateWritten                     // output written
	StateFailed                      // terminal
)

func (s State) String() string {
	switch s {
	case StateUnprobed:
		return "unprobed"
	case StateCanPackChecked:
		return "can-pack-checked"
	case StateLoaderBuilt:
		return "loader-built"
	case StateCompressed:
		return "compressed"
	case StateWritten:
		return "written"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// transitions lists the legal successors of each state. Any state may fail.
var transitions = map[State][]State{
	StateUnprobed:       {StateCanPackChecked},
	StateCanPackChecked: {StateLoaderBuilt, StateWritten},
	StateLoaderBuilt:    {StateLoaderBuilt, StateCompressed},
	StateCompressed:     {StateWritten},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return from != StateFailed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// checkState fails unless the packer is in one of want.
func (b *Base) checkState(op string, want ...State) error {
	for _, s := range want {
		if b.state == s {
			return nil
		}
	}

	return errors.Wrapf(errs.ErrInvalidState, "%s in state %s", op, b.state)
}

// advance moves to the next state or fails with ErrInvalidState.
func (b *Base) advance(to State) error {
	if !CanTransition(b.state, to) {
		return errors.Wrapf(errs.ErrInvalidState, "%s -> %s", b.state, to)
	}
	b.state = to

	return nil
}

// fail moves to StateFailed and returns err unchanged.
func (b *Base) fail(err error) error {
	if err != nil && b.state != StateFailed {
		b.state = StateFailed
	}

	return err
}
