package packer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
)

// InputFile is the file being packed or unpacked.
type InputFile interface {
	io.Reader
	io.Seeker
	Name() string
	Size() int64
}

// OutputFile receives packed or unpacked data sequentially.
type OutputFile interface {
	io.Writer
	BytesWritten() int64
}

// ReadAt reads exactly len(buf) bytes at off.
func ReadAt(in InputFile, buf []byte, off int64) error {
	if _, err := in.Seek(off, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek %s to %d", in.Name(), off)
	}
	if _, err := io.ReadFull(in, buf); err != nil {
		return errors.Wrapf(err, "read %d bytes of %s at %d", len(buf), in.Name(), off)
	}

	return nil
}

// ReadAll reads the whole input.
func ReadAll(in InputFile) ([]byte, error) {
	buf := make([]byte, in.Size())
	if err := ReadAt(in, buf, 0); err != nil {
		return nil, err
	}

	return buf, nil
}

// FileInput is an InputFile backed by an open file.
type FileInput struct {
	*os.File
	size int64
}

// OpenInput opens a regular file for packing.
func OpenInput(path string) (*FileInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open input")
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat input")
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Errorf("%s: not a regular file", path)
	}

	return &FileInput{File: f, size: st.Size()}, nil
}

// Size returns the file size at open time.
func (f *FileInput) Size() int64 {
	return f.size
}

// MemInput is an InputFile over a byte slice.
type MemInput struct {
	*bytes.Reader
	name string
}

// MemoryInput returns an InputFile reading data under the given name.
func MemoryInput(name string, data []byte) *MemInput {
	return &MemInput{Reader: bytes.NewReader(data), name: name}
}

// Name returns the name given to MemoryInput.
func (m *MemInput) Name() string {
	return m.name
}

// MemOutput is an OutputFile collecting everything in memory.
type MemOutput struct {
	buf bytes.Buffer
}

// MemoryOutput returns an empty in-memory OutputFile.
func MemoryOutput() *MemOutput {
	return &MemOutput{}
}

func (m *MemOutput) Write(p []byte) (int, error) {
	return m.buf.Write(p)
}

// BytesWritten returns the number of bytes written so far.
func (m *MemOutput) BytesWritten() int64 {
	return int64(m.buf.Len())
}

// Bytes returns the data written so far.
func (m *MemOutput) Bytes() []byte {
	return m.buf.Bytes()
}

// TempOutput writes into a temporary file next to its destination. The
// destination only appears once Commit succeeds; Abort removes the temporary.
type TempOutput struct {
	f       *os.File
	dest    string
	written int64
	done    bool
}

// CreateTempOutput creates the temporary file for dest in dest's directory.
func CreateTempOutput(dest string) (*TempOutput, error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temporary output")
	}

	return &TempOutput{f: f, dest: dest}, nil
}

func (t *TempOutput) Write(p []byte) (int, error) {
	n, err := t.f.Write(p)
	t.written += int64(n)

	return n, err
}

// BytesWritten returns the number of bytes written so far.
func (t *TempOutput) BytesWritten() int64 {
	return t.written
}

// Name returns the temporary path.
func (t *TempOutput) Name() string {
	return t.f.Name()
}

// Commit syncs the temporary file, applies mode and renames it over the destination.
func (t *TempOutput) Commit(mode os.FileMode) error {
	if t.done {
		return errors.Errorf("%s: output already finished", t.dest)
	}
	t.done = true

	if err := t.f.Sync(); err != nil {
		t.remove()
		return errors.Wrap(err, "sync output")
	}
	if err := t.f.Close(); err != nil {
		_ = os.Remove(t.f.Name())
		return errors.Wrap(err, "close output")
	}
	if err := os.Chmod(t.f.Name(), mode); err != nil {
		_ = os.Remove(t.f.Name())
		return errors.Wrap(err, "chmod output")
	}
	if err := os.Rename(t.f.Name(), t.dest); err != nil {
		_ = os.Remove(t.f.Name())
		return errors.Wrap(err, "rename output")
	}

	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (t *TempOutput) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.remove()
}

func (t *TempOutput) remove() {
	_ = t.f.Close()
	_ = os.Remove(t.f.Name())
}

// BackupName returns the backup name of path. The last letter of a
// three-letter extension becomes '~'; shorter extensions get '~' appended.
func BackupName(path string) string {
	ext := filepath.Ext(path)
	switch {
	case ext == "":
		return path + ".~"
	case len(ext) < 4:
		return path + "~"
	default:
		return path[:len(path)-1] + "~"
	}
}
