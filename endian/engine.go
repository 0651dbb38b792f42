// Package endian provides the byte order used by executable formats, loaders
// and compressed streams.
//
// Most target formats are little-endian; a few (the ones whose format id has
// the high bit set) store headers and relocations big-endian. ForExecutable
// picks the right engine for a format so that packer code never hardcodes a
// byte order.
//
// # Basic Usage
//
//	engine := endian.ForExecutable(format.ExeDOSSYS)
//	strategy := engine.Uint16(header[6:])
//	buf = engine.AppendUint32(buf, adler)
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use. The returned
// EndianEngine instances are immutable and stateless.
package endian

import (
	"encoding/binary"

	"github.com/arloliu/xpack/format"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// It is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// ForExecutable returns the byte order used by headers and loaders of exe.
func ForExecutable(exe format.Executable) EndianEngine {
	if exe.IsBigEndian() {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// Uint24 reads a 24-bit value, as used by some loader relocations.
func Uint24(engine EndianEngine, b []byte) uint32 {
	_ = b[2]
	if engine == binary.BigEndian {
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
	}

	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

// PutUint24 writes the low 24 bits of v.
func PutUint24(engine EndianEngine, b []byte, v uint32) {
	_ = b[2]
	if engine == binary.BigEndian {
		b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
		return
	}
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}
