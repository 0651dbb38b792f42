package packer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateUnprobed, StateCanPackChecked, true},
		{StateUnprobed, StateLoaderBuilt, false},
		{StateUnprobed, StateCompressed, false},
		{StateCanPackChecked, StateLoaderBuilt, true},
		{StateCanPackChecked, StateWritten, true},
		{StateCanPackChecked, StateCompressed, false},
		{StateLoaderBuilt, StateLoaderBuilt, true},
		{StateLoaderBuilt, StateCompressed, true},
		{StateLoaderBuilt, StateWritten, false},
		{StateCompressed, StateWritten, true},
		{StateCompressed, StateLoaderBuilt, false},
		{StateWritten, StateCanPackChecked, false},
		{StateWritten, StateFailed, true},
		{StateFailed, StateFailed, false},
		{StateFailed, StateCanPackChecked, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			require.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "unprobed", StateUnprobed.String())
	require.Equal(t, "loader-built", StateLoaderBuilt.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "unknown", State(42).String())
}

func TestAcceptOnlyOnce(t *testing.T) {
	p := newFake(t, codeLike(64))
	require.NoError(t, p.Accept())
	require.Error(t, p.Accept())
}
