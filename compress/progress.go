package compress

import "io"

// Callback receives compression progress: current of total input bytes consumed.
// It runs synchronously on the compressing goroutine.
type Callback func(current, total int)

// progress wraps a Callback for the duration of one call. Reports never go
// backwards and nothing is reported once the call has finished.
type progress struct {
	cb    Callback
	total int
	last  int
	done  bool
}

func newProgress(cb Callback, total int) *progress {
	return &progress{cb: cb, total: total, last: -1}
}

func (p *progress) report(current int) {
	if p == nil || p.cb == nil || p.done {
		return
	}
	if current > p.total {
		current = p.total
	}
	if current < p.last {
		return
	}
	p.last = current
	p.cb(current, p.total)
}

// callback returns the guarded Callback handed to backends, or nil.
func (p *progress) callback() Callback {
	if p.cb == nil {
		return nil
	}

	return func(current, _ int) { p.report(current) }
}

// finish reports completion and disables the callback.
func (p *progress) finish() {
	if p == nil {
		return
	}
	p.report(p.total)
	p.done = true
}

// countingReader reports the number of bytes read from r.
type countingReader struct {
	r     io.Reader
	n     int
	total int
	cb    Callback
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += n
	if c.cb != nil && n > 0 {
		c.cb(c.n, c.total)
	}

	return n, err
}
