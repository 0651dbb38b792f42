package packer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryInput(t *testing.T) {
	in := MemoryInput("a.sys", []byte("0123456789"))
	require.Equal(t, "a.sys", in.Name())
	require.Equal(t, int64(10), in.Size())

	buf := make([]byte, 3)
	require.NoError(t, ReadAt(in, buf, 4))
	require.Equal(t, []byte("456"), buf)
	require.Error(t, ReadAt(in, buf, 8))

	all, err := ReadAll(in)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), all)
}

func TestMemoryOutput(t *testing.T) {
	out := MemoryOutput()
	_, err := out.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = out.Write([]byte("de"))
	require.NoError(t, err)
	require.Equal(t, int64(5), out.BytesWritten())
	require.Equal(t, []byte("abcde"), out.Bytes())
}

func TestOpenInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driver.sys")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	in, err := OpenInput(path)
	require.NoError(t, err)
	defer in.Close()
	require.Equal(t, int64(5), in.Size())
	require.Equal(t, path, in.Name())

	data, err := ReadAll(in)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)

	_, err = OpenInput(dir)
	require.ErrorContains(t, err, "not a regular file")
	_, err = OpenInput(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestTempOutput(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "out.sys")
		out, err := CreateTempOutput(dest)
		require.NoError(t, err)
		require.Equal(t, filepath.Dir(dest), filepath.Dir(out.Name()))

		_, err = out.Write([]byte("packed"))
		require.NoError(t, err)
		require.Equal(t, int64(6), out.BytesWritten())
		_, err = os.Stat(dest)
		require.ErrorIs(t, err, os.ErrNotExist)

		require.NoError(t, out.Commit(0o600))
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		require.Equal(t, []byte("packed"), data)
		_, err = os.Stat(out.Name())
		require.ErrorIs(t, err, os.ErrNotExist)

		require.Error(t, out.Commit(0o600))
		out.Abort()
		_, err = os.Stat(dest)
		require.NoError(t, err)
	})

	t.Run("abort", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "out.sys")
		out, err := CreateTempOutput(dest)
		require.NoError(t, err)
		_, err = out.Write([]byte("partial"))
		require.NoError(t, err)

		out.Abort()
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestBackupName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"driver.sys", "driver.sy~"},
		{"dir/a.exe", "dir/a.ex~"},
		{"a.c", "a.c~"},
		{"a.", "a.~"},
		{"noext", "noext.~"},
		{"archive.tar.gz", "archive.tar.gz~"},
		{"long.html", "long.htm~"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			require.Equal(t, tt.want, BackupName(tt.path))
		})
	}
}
