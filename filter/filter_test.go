package filter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// sample holds a near call at 1 and a near jump at 5.
var sample = []byte{0x90, 0xe8, 0x10, 0x00, 0x90, 0xe9, 0x20, 0x00, 0x90, 0x90}

func TestFilterDo(t *testing.T) {
	tests := []struct {
		id       format.Filter
		want     []byte
		calls    int
		lastCall int
		stub     int
	}{
		{
			id:   format.FilterNoop,
			want: sample,
		},
		{
			id:       format.FilterCT16E8,
			want:     []byte{0x90, 0xe8, 0x12, 0x00, 0x90, 0xe9, 0x20, 0x00, 0x90, 0x90},
			calls:    1,
			lastCall: 4,
			stub:     2,
		},
		{
			id:       format.FilterCT16E9,
			want:     []byte{0x90, 0xe8, 0x10, 0x00, 0x90, 0xe9, 0x26, 0x00, 0x90, 0x90},
			calls:    1,
			lastCall: 8,
			stub:     6,
		},
		{
			id:       format.FilterCT16E8E9,
			want:     []byte{0x90, 0xe8, 0x12, 0x00, 0x90, 0xe9, 0x26, 0x00, 0x90, 0x90},
			calls:    2,
			lastCall: 8,
			stub:     2,
		},
		{
			id:       format.FilterCT16E8BS,
			want:     []byte{0x90, 0xe8, 0x00, 0x12, 0x90, 0xe9, 0x20, 0x00, 0x90, 0x90},
			calls:    1,
			lastCall: 4,
			stub:     2,
		},
		{
			id:       format.FilterCT16E8E9BS,
			want:     []byte{0x90, 0xe8, 0x00, 0x12, 0x90, 0xe9, 0x00, 0x26, 0x90, 0x90},
			calls:    2,
			lastCall: 8,
			stub:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			f, err := New(tt.id)
			require.NoError(t, err)

			buf := bytes.Clone(sample)
			require.NoError(t, f.Do(buf))
			require.Equal(t, tt.want, buf)
			assert.Equal(t, tt.calls, f.Calls)
			assert.Equal(t, tt.lastCall, f.LastCall)
			assert.Equal(t, len(sample), f.BufLen)
			assert.Equal(t, tt.stub, f.Stub16Calls())

			require.NoError(t, f.Undo(buf))
			require.Equal(t, sample, buf)
			assert.Equal(t, tt.calls, f.Calls)
		})
	}
}

func TestFilterScan(t *testing.T) {
	f, err := New(format.FilterCT16E8E9)
	require.NoError(t, err)

	buf := bytes.Clone(sample)
	require.NoError(t, f.Scan(buf))
	require.Equal(t, sample, buf)
	require.Equal(t, 2, f.Calls)
	require.Equal(t, 8, f.LastCall)
}

func TestFilterSkipsOperands(t *testing.T) {
	// The operand of the first call is itself an E8 byte and must not count.
	buf := []byte{0xe8, 0xe8, 0xe8, 0x00, 0x00}
	f, err := New(format.FilterCT16E8)
	require.NoError(t, err)

	require.NoError(t, f.Scan(buf))
	require.Equal(t, 1, f.Calls)
	require.Equal(t, 3, f.LastCall)
}

func TestFilterTail(t *testing.T) {
	// An opcode in the last three bytes has no complete operand.
	buf := []byte{0x90, 0x90, 0xe8, 0x01, 0x02}
	f, err := New(format.FilterCT16E8)
	require.NoError(t, err)

	require.NoError(t, f.Do(buf))
	require.Equal(t, 0, f.Calls)
	require.Equal(t, 0, f.LastCall)
	require.Equal(t, []byte{0x90, 0x90, 0xe8, 0x01, 0x02}, buf)

	require.NoError(t, f.Do(nil))
	require.Equal(t, 0, f.Calls)
}

func TestFilterAddValue(t *testing.T) {
	f := &Filter{ID: format.FilterCT16E8, AddValue: 0x100}
	buf := []byte{0xe8, 0xff, 0xff, 0x90}

	require.NoError(t, f.Do(buf))
	require.Equal(t, []byte{0xe8, 0x00, 0x01, 0x90}, buf)
	require.NoError(t, f.Undo(buf))
	require.Equal(t, []byte{0xe8, 0xff, 0xff, 0x90}, buf)
}

func TestFilterRoundTripRandom(t *testing.T) {
	src := make([]byte, 1<<14)
	x := uint32(0x12345678)
	for i := range src {
		x = x*1103515245 + 12345
		src[i] = byte(x >> 16)
		if i%7 == 0 {
			src[i] = 0xe8
		}
	}

	for _, id := range IDs() {
		f, err := New(id)
		require.NoError(t, err)

		buf := bytes.Clone(src)
		require.NoError(t, f.Do(buf))
		calls := f.Calls
		require.Positive(t, calls, id.String())

		require.NoError(t, f.Undo(buf))
		require.Equal(t, src, buf, id.String())
		require.Equal(t, calls, f.Calls, id.String())
	}
}

func TestFilterValid(t *testing.T) {
	for _, id := range IDs() {
		assert.True(t, Valid(id), id.String())
	}
	assert.True(t, Valid(format.FilterNoop))
	assert.False(t, Valid(format.FilterNone))
	assert.False(t, Valid(format.Filter(0x07)))

	_, err := New(format.Filter(0x26))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	f := &Filter{ID: format.FilterSkip}
	require.ErrorIs(t, f.Do([]byte{1, 2, 3, 4}), errs.ErrInvalidArgument)
}

func TestFilterOpcodes(t *testing.T) {
	f := &Filter{ID: format.FilterCT16E9BS}
	call, jump := f.Opcodes()
	assert.False(t, call)
	assert.True(t, jump)
	assert.True(t, f.ByteSwapped())

	f.ID = format.FilterCT16E8E9
	call, jump = f.Opcodes()
	assert.True(t, call)
	assert.True(t, jump)
	assert.False(t, f.ByteSwapped())
}
