package options

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

var errNegative = errors.New("level cannot be negative")

type trialConfig struct {
	Level  int
	Method string
	Brute  bool
	Last   string
}

func (c *trialConfig) setLevel(v int) error {
	if v < 0 {
		return errNegative
	}
	c.Level = v
	c.Last = "level"

	return nil
}

func withLevel(v int) Option[*trialConfig] {
	return New(func(c *trialConfig) error { return c.setLevel(v) })
}

func withMethod(m string) Option[*trialConfig] {
	return NoError(func(c *trialConfig) {
		c.Method = m
		c.Last = "method"
	})
}

func withBrute(b bool) Option[*trialConfig] {
	return NoError(func(c *trialConfig) {
		c.Brute = b
		c.Last = "brute"
	})
}

func TestApply(t *testing.T) {
	t.Run("applies in order", func(t *testing.T) {
		c := &trialConfig{}
		require.NoError(t, Apply(c, withLevel(9), withMethod("nrv2b"), withBrute(true)))
		require.Equal(t, 9, c.Level)
		require.Equal(t, "nrv2b", c.Method)
		require.True(t, c.Brute)
		require.Equal(t, "brute", c.Last)
	})

	t.Run("later options win", func(t *testing.T) {
		c := &trialConfig{}
		require.NoError(t, Apply(c, withLevel(1), withLevel(7)))
		require.Equal(t, 7, c.Level)
	})

	t.Run("empty and nil options", func(t *testing.T) {
		c := &trialConfig{}
		require.NoError(t, Apply(c))
		require.NoError(t, Apply[*trialConfig](c, nil))

		var typedNil *Func[*trialConfig]
		require.NoError(t, Apply[*trialConfig](c, typedNil, &Func[*trialConfig]{}))
		require.Equal(t, trialConfig{}, *c)
	})

	t.Run("collects every failure", func(t *testing.T) {
		c := &trialConfig{}
		err := Apply(c, withLevel(-1), withMethod("lzma"), withLevel(-2))
		require.ErrorIs(t, err, errNegative)

		var merr *multierror.Error
		require.ErrorAs(t, err, &merr)
		require.Len(t, merr.Errors, 2)
		require.Equal(t, "lzma", c.Method)
		require.Equal(t, 0, c.Level)
	})
}

func TestFuncApply(t *testing.T) {
	var n int
	opt := NoError(func(p *int) { *p = 42 })
	require.NoError(t, opt.apply(&n))
	require.Equal(t, 42, n)

	failing := New(func(*int) error { return errNegative })
	require.ErrorIs(t, failing.apply(&n), errNegative)
}
