package section

import (
	"bytes"
	"fmt"

	"github.com/arloliu/xpack/endian"
	"github.com/arloliu/xpack/errs"
	"github.com/arloliu/xpack/format"
)

// magicBytes is Magic in file order.
var magicBytes = []byte("XPK!")

// PackHeader describes a packed file: how the payload was compressed and how
// to check the result.
type PackHeader struct {
	Version uint8             // byte offset 4
	Format  format.Executable // byte offset 5
	Method  format.Method     // byte offset 6
	Level   uint8             // byte offset 7
	UAdler  uint32            // byte offset 8-11, adler32 of the uncompressed data
	CAdler  uint32            // byte offset 12-15, adler32 of the compressed data

	// ULen and CLen are the uncompressed and compressed payload lengths.
	// Their width depends on the format, see HeaderSizeFor.
	ULen      uint32
	CLen      uint32
	UFileSize uint32 // original file size, absent for dos/com and dos/sys
	Filter    format.Filter
	FilterCTO uint8 // filter parameter, 32-byte layout only
	NMru      int   // 32-byte layout only

	// HeaderChecksum is the last byte: the sum of bytes 4..size-2 modulo 251.
	HeaderChecksum uint8
}

// NewPackHeader returns a header for exe with the current version.
func NewPackHeader(exe format.Executable) *PackHeader {
	return &PackHeader{Version: Version, Format: exe}
}

// HeaderSizeFor returns the serialized header size of exe.
func HeaderSizeFor(exe format.Executable) int {
	switch exe {
	case format.ExeDOSCOM, format.ExeDOSSYS:
		return HeaderSizeDOS16
	case format.ExeDOSEXE:
		return HeaderSizeDOSEXE
	default:
		return HeaderSize
	}
}

// Size returns the serialized size of h.
func (h *PackHeader) Size() int {
	return HeaderSizeFor(h.Format)
}

// Bytes serializes h and fills in HeaderChecksum.
// Lengths that do not fit the layout of the format are rejected.
func (h *PackHeader) Bytes() ([]byte, error) {
	size := h.Size()
	b := make([]byte, size)
	copy(b, magicBytes)
	b[offVersion] = h.Version
	b[offFormat] = byte(h.Format)
	b[offMethod] = byte(h.Method)
	b[offLevel] = h.Level

	engine := endian.ForExecutable(h.Format)
	engine.PutUint32(b[offUAdler:], h.UAdler)
	engine.PutUint32(b[offCAdler:], h.CAdler)

	switch size {
	case HeaderSizeDOS16:
		if h.ULen > 0xffff || h.CLen > 0xffff {
			return nil, fmt.Errorf("%w: %s lengths %d/%d exceed 16 bits", errs.ErrInvalidArgument, h.Format, h.ULen, h.CLen)
		}
		engine.PutUint16(b[16:], uint16(h.ULen))
		engine.PutUint16(b[18:], uint16(h.CLen))
		b[20] = byte(h.Filter)
	case HeaderSizeDOSEXE:
		if h.ULen > 0xffffff || h.CLen > 0xffffff || h.UFileSize > 0xffffff {
			return nil, fmt.Errorf("%w: %s lengths exceed 24 bits", errs.ErrInvalidArgument, h.Format)
		}
		endian.PutUint24(engine, b[16:], h.ULen)
		endian.PutUint24(engine, b[19:], h.CLen)
		endian.PutUint24(engine, b[22:], h.UFileSize)
		b[25] = byte(h.Filter)
	default:
		engine.PutUint32(b[16:], h.ULen)
		engine.PutUint32(b[20:], h.CLen)
		engine.PutUint32(b[24:], h.UFileSize)
		b[28] = byte(h.Filter)
		b[29] = h.FilterCTO
		if h.NMru > 0 {
			b[30] = byte(h.NMru - 1)
		}
	}

	h.HeaderChecksum = Checksum(b)
	b[size-1] = h.HeaderChecksum

	return b, nil
}

// Parse reads a header from the start of data. Extra trailing bytes are ignored.
func (h *PackHeader) Parse(data []byte) error {
	if len(data) < len(magicBytes) {
		return errs.ErrInvalidHeaderSize
	}
	if !bytes.Equal(data[:len(magicBytes)], magicBytes) {
		return errs.ErrInvalidMagicNumber
	}
	if len(data) < offLengths {
		return errs.ErrInvalidHeaderSize
	}

	exe := format.Executable(data[offFormat])
	size := HeaderSizeFor(exe)
	if len(data) < size {
		return fmt.Errorf("%w: %s header needs %d bytes, have %d", errs.ErrInvalidHeaderSize, exe, size, len(data))
	}
	b := data[:size]
	if sum := Checksum(b); sum != b[size-1] {
		return fmt.Errorf("%w: stored %d, computed %d", errs.ErrHeaderChecksum, b[size-1], sum)
	}
	if b[offVersion] == 0 || b[offVersion] > Version {
		return fmt.Errorf("%w: pack header version %d", errs.ErrCantUnpack, b[offVersion])
	}

	engine := endian.ForExecutable(exe)
	*h = PackHeader{
		Version:        b[offVersion],
		Format:         exe,
		Method:         format.Method(b[offMethod]),
		Level:          b[offLevel],
		UAdler:         engine.Uint32(b[offUAdler:]),
		CAdler:         engine.Uint32(b[offCAdler:]),
		HeaderChecksum: b[size-1],
	}

	switch size {
	case HeaderSizeDOS16:
		h.ULen = uint32(engine.Uint16(b[16:]))
		h.CLen = uint32(engine.Uint16(b[18:]))
		h.Filter = format.Filter(b[20])
	case HeaderSizeDOSEXE:
		h.ULen = endian.Uint24(engine, b[16:])
		h.CLen = endian.Uint24(engine, b[19:])
		h.UFileSize = endian.Uint24(engine, b[22:])
		h.Filter = format.Filter(b[25])
	default:
		h.ULen = engine.Uint32(b[16:])
		h.CLen = engine.Uint32(b[20:])
		h.UFileSize = engine.Uint32(b[24:])
		h.Filter = format.Filter(b[28])
		h.FilterCTO = b[29]
		if b[30] != 0 {
			h.NMru = int(b[30]) + 1
		}
	}

	if !h.Method.IsValid() {
		return fmt.Errorf("%w: unknown method %d", errs.ErrCantUnpack, b[offMethod])
	}

	return nil
}

// ParsePackHeader parses a header from the start of data.
func ParsePackHeader(data []byte) (PackHeader, error) {
	var h PackHeader
	if err := h.Parse(data); err != nil {
		return PackHeader{}, err
	}

	return h, nil
}

// Find returns the offset of the first valid header in buf.
func Find(buf []byte) (int, PackHeader, error) {
	var lastErr error
	for from := 0; from < len(buf); {
		i := bytes.Index(buf[from:], magicBytes)
		if i < 0 {
			break
		}
		pos := from + i
		h, err := ParsePackHeader(buf[pos:])
		if err == nil {
			return pos, h, nil
		}
		lastErr = err
		from = pos + 1
	}

	if lastErr != nil {
		return -1, PackHeader{}, fmt.Errorf("%w: %w", errs.ErrNotPacked, lastErr)
	}

	return -1, PackHeader{}, errs.ErrNotPacked
}

// Contains reports whether buf holds the magic anywhere.
func Contains(buf []byte) bool {
	return bytes.Contains(buf, magicBytes)
}

// Patch serializes h over the header slot in buf, found by its magic, and
// returns the slot offset.
func (h *PackHeader) Patch(buf []byte) (int, error) {
	pos := bytes.Index(buf, magicBytes)
	if pos < 0 {
		return -1, fmt.Errorf("%w: no pack header slot", errs.ErrInternal)
	}

	b, err := h.Bytes()
	if err != nil {
		return -1, err
	}
	if pos+len(b) > len(buf) {
		return -1, fmt.Errorf("%w: pack header slot at %d too small for %d bytes", errs.ErrInternal, pos, len(b))
	}
	copy(buf[pos:], b)

	return pos, nil
}

// Checksum computes the checksum byte of a serialized header.
func Checksum(b []byte) uint8 {
	sum := 0
	for _, c := range b[offVersion : len(b)-1] {
		sum += int(c)
	}

	return uint8(sum % checksumModulus)
}
