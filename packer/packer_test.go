package packer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// refusing recognizes nothing.
type refusing struct{ *fakePacker }

func (r refusing) CanPack() (bool, error)   { return false, nil }
func (r refusing) CanUnpack() (bool, error) { return false, nil }

// rejecting recognizes everything and refuses to pack it.
type rejecting struct{ *fakePacker }

func (r rejecting) CanPack() (bool, error) {
	return false, errs.NewCantPack("reject", "file is too small")
}

func TestRegistryDetect(t *testing.T) {
	data := codeLike(4096)

	t.Run("first accepting format wins", func(t *testing.T) {
		r := NewRegistry()
		r.Register(func(in InputFile, opts *Options) Packer { return refusing{newFake(t, data)} })
		r.Register(func(in InputFile, opts *Options) Packer { return newFake(t, data) })
		require.Equal(t, 2, r.Len())

		p, err := r.Detect(MemoryInput("a.com", data), nil)
		require.NoError(t, err)
		require.Equal(t, "test-loader", p.FullName())
		require.Equal(t, StateCanPackChecked, p.State())
	})

	t.Run("rejection stops the search", func(t *testing.T) {
		r := NewRegistry()
		r.Register(func(in InputFile, opts *Options) Packer { return rejecting{newFake(t, data)} })
		r.Register(func(in InputFile, opts *Options) Packer { return newFake(t, data) })

		_, err := r.Detect(MemoryInput("a.com", data), nil)
		require.ErrorIs(t, err, errs.ErrCantPack)
	})

	t.Run("unknown format", func(t *testing.T) {
		r := NewRegistry()
		r.Register(func(in InputFile, opts *Options) Packer { return refusing{newFake(t, data)} })

		_, err := r.Detect(MemoryInput("a.com", data), nil)
		require.ErrorIs(t, err, errs.ErrUnknownExecutableFormat)
		_, err = r.DetectUnpack(MemoryInput("a.com", data), nil)
		require.ErrorIs(t, err, errs.ErrNotPacked)
	})
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts []Option
	}{
		{"filtered", codeLike(6000), nil},
		{"zeros", make([]byte, 3000), nil},
		{"brute", codeLike(4096), []Option{WithBrute(true)}},
		{"no filter", codeLike(4096), []Option{WithFilter(format.FilterNoop), WithLevel(10)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFake(t, tt.data, tt.opts...)
			ok, err := p.CanPack()
			require.NoError(t, err)
			require.True(t, ok)

			packed := MemoryOutput()
			require.NoError(t, p.Pack(packed))
			require.Equal(t, StateWritten, p.State())
			require.Less(t, len(packed.Bytes()), len(tt.data))

			u := newFake(t, nil)
			u.In = MemoryInput("packed.com", packed.Bytes())
			ok, err = u.CanUnpack()
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, u.Test())

			restored := MemoryOutput()
			require.NoError(t, u.Unpack(restored))
			require.Equal(t, tt.data, restored.Bytes())
			require.Equal(t, p.PH.Filter, u.PH.Filter)
			require.Equal(t, p.PH.Method, u.PH.Method)
		})
	}
}

func TestUnpackDetectsCorruption(t *testing.T) {
	data := codeLike(4096)
	p := newFake(t, data)
	_, err := p.CanPack()
	require.NoError(t, err)
	packed := MemoryOutput()
	require.NoError(t, p.Pack(packed))

	bad := append([]byte(nil), packed.Bytes()...)
	bad[len(bad)-3] ^= 0x55

	u := newFake(t, nil)
	u.In = MemoryInput("packed.com", bad)
	ok, err := u.CanUnpack()
	require.NoError(t, err)
	require.True(t, ok)
	require.ErrorIs(t, u.Test(), errs.ErrChecksum)
}

func TestWriteOutputState(t *testing.T) {
	p := newFake(t, codeLike(4096))
	err := p.WriteOutput(MemoryOutput(), []byte{1})
	require.ErrorIs(t, err, errs.ErrInvalidState)
}

// shortWriter drops the last byte of every write without reporting an error.
type shortWriter struct{ n int64 }

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.n += int64(len(p) - 1)

	return len(p) - 1, nil
}

func (s *shortWriter) BytesWritten() int64 { return s.n }

func TestWriteOutputSizeMismatch(t *testing.T) {
	p := newFake(t, codeLike(4096))
	_, err := p.CanPack()
	require.NoError(t, err)

	err = p.WriteOutput(&shortWriter{}, []byte{1, 2, 3})
	require.ErrorIs(t, err, errs.ErrWriteSizeMismatch)
	require.ErrorIs(t, err, errs.ErrInternal)
	require.Equal(t, StateFailed, p.State())
}
