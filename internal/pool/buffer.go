package pool

import (
	"io"
	"sync"
)

// Buffer kinds served by this package.
//
// Stream buffers collect the output of one codec call. Image buffers hold a
// whole packed executable while its loader and payload are joined.
const (
	streamBufferSize  = 64 << 10
	streamBufferLimit = 1 << 20
	imageBufferSize   = 128 << 10
	imageBufferLimit  = 16 << 20
)

// Buffer is an append-only byte slice.
type Buffer struct {
	B []byte
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

// Reserve makes room for n more bytes so the following writes do not reallocate.
func (b *Buffer) Reserve(n int) {
	if cap(b.B)-len(b.B) >= n {
		return
	}
	grown := make([]byte, len(b.B), len(b.B)+n)
	copy(grown, b.B)
	b.B = grown
}

func (b *Buffer) Bytes() []byte { return b.B }

func (b *Buffer) Len() int { return len(b.B) }

// Clone copies the contents out of the buffer. The copy outlives a Put.
func (b *Buffer) Clone() []byte {
	return append([]byte(nil), b.B...)
}

// WriteTo writes the whole buffer to w in one call.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.B)
	return int64(n), err
}

// bufferPool forgets buffers that grew past limit.
type bufferPool struct {
	p     sync.Pool
	limit int
}

func newBufferPool(size, limit int) *bufferPool {
	bp := &bufferPool{limit: limit}
	bp.p.New = func() any { return &Buffer{B: make([]byte, 0, size)} }

	return bp
}

func (bp *bufferPool) get() *Buffer {
	b, _ := bp.p.Get().(*Buffer)
	return b
}

func (bp *bufferPool) put(b *Buffer) {
	if b == nil || cap(b.B) > bp.limit {
		return
	}
	b.B = b.B[:0]
	bp.p.Put(b)
}

var (
	streamBuffers = newBufferPool(streamBufferSize, streamBufferLimit)
	imageBuffers  = newBufferPool(imageBufferSize, imageBufferLimit)
)

// GetStreamBuffer returns an empty buffer for codec output.
func GetStreamBuffer() *Buffer { return streamBuffers.get() }

// PutStreamBuffer recycles a buffer from GetStreamBuffer.
func PutStreamBuffer(b *Buffer) { streamBuffers.put(b) }

// GetImageBuffer returns an empty buffer for assembling a packed executable.
func GetImageBuffer() *Buffer { return imageBuffers.get() }

// PutImageBuffer recycles a buffer from GetImageBuffer.
func PutImageBuffer(b *Buffer) { imageBuffers.put(b) }
