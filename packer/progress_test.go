package packer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProgressScaler(t *testing.T) {
	var got [][2]int
	s := newProgressScaler(func(current, total int) {
		got = append(got, [2]int{current, total})
	}, 3, 100)

	cb := s.trial()
	cb(10, 100)
	cb(100, 100)
	s.next()

	// a skipped trial reports nothing of its own
	s.trial()
	s.next()

	cb = s.trial()
	cb(150, 100)
	cb(50, 100)
	s.next()
	s.next()

	require.Equal(t, [][2]int{
		{10, 300}, {100, 300}, {200, 300}, {300, 300},
	}, got)
}

func TestProgressScalerWithoutCallback(t *testing.T) {
	s := newProgressScaler(nil, 0, 100)
	require.Nil(t, s.trial())
	s.next()
}
