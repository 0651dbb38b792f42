package packer

import "github.com/arloliu/xpack/compress"

// progressScaler maps the progress of each trial onto one range covering all
// trials, so the reported value never goes backwards.
type progressScaler struct {
	cb     compress.Callback
	trials int
	unit   int // total of one trial
	done   int // completed trials
	last   int
}

func newProgressScaler(cb compress.Callback, trials, unit int) *progressScaler {
	if trials < 1 {
		trials = 1
	}

	return &progressScaler{cb: cb, trials: trials, unit: unit, last: -1}
}

// trial returns the callback for the next trial, or nil when nothing listens.
func (s *progressScaler) trial() compress.Callback {
	if s.cb == nil {
		return nil
	}
	base := s.done * s.unit

	return func(current, _ int) {
		if current > s.unit {
			current = s.unit
		}
		s.report(base + current)
	}
}

// next closes the current trial whether or not it reported completion.
func (s *progressScaler) next() {
	if s.done < s.trials {
		s.done++
	}
	s.report(s.done * s.unit)
}

func (s *progressScaler) report(v int) {
	if s.cb == nil || v <= s.last {
		return
	}
	s.last = v
	s.cb(v, s.trials*s.unit)
}
