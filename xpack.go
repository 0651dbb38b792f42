// Package xpack compresses executables into smaller executables that restore
// themselves in memory when run.
//
// A packed file is a loader stub followed by the compressed image. The loader
// is assembled from precompiled fragments by the linker package, the image is
// compressed by one of the codecs of the compress package, and a per-format
// packer from the packer package ties both together.
//
// # Core Features
//
//   - NRV2B, NRV2D and NRV2E codecs with in-place decompression checks
//   - LZMA, Deflate, Zstd and LZ4 backends behind one compression facade
//   - Reversible call filters that make 16-bit code more compressible
//   - Brute-force search over every method and filter a format accepts
//   - Adler-32 checksums of the packed and unpacked image
//
// # Basic Usage
//
// Packing and restoring a DOS device driver:
//
//	import "github.com/arloliu/xpack"
//
//	packed, err := xpack.Pack("driver.sys", data)
//	if err != nil {
//	    // errs.ErrCantPack, errs.ErrUnknownExecutableFormat, ...
//	}
//
//	restored, err := xpack.Unpack("driver.sys", packed)
//
// Compressing a buffer without an executable around it:
//
//	out, res, err := xpack.Compress(data, format.MethodNRV2BLE32, 8)
//	back, err := xpack.Decompress(out, len(data), format.MethodNRV2BLE32, res)
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the packer and
// compress packages. For packing real files with temporary outputs and backups,
// use the packer package directly or the xpack command.
package xpack

import (
	"github.com/go-faster/errors"

	"github.com/arloliu/xpack/compress"
	"github.com/arloliu/xpack/format"
	"github.com/arloliu/xpack/packer"
	_ "github.com/arloliu/xpack/packer/dossys"
)

// Pack packs the executable data named name with the first registered format
// that accepts it.
//
// The name matters for formats recognized by extension, such as ".sys" for DOS
// device drivers.
//
// Returns:
//   - []byte: The packed executable.
//   - error: errs.ErrUnknownExecutableFormat when no format accepts the input,
//     an errs.ErrCantPack error when the format refuses it or nothing is gained.
func Pack(name string, data []byte, opts ...packer.Option) ([]byte, error) {
	o, err := packer.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	p, err := packer.Detect(packer.MemoryInput(name, data), o)
	if err != nil {
		return nil, err
	}

	out := packer.MemoryOutput()
	if err := p.Pack(out); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// Unpack restores an executable produced by Pack.
//
// Returns errs.ErrNotPacked when data was not packed by a known format, and
// errs.ErrChecksum or errs.ErrCantUnpack when it is damaged.
func Unpack(name string, data []byte, opts ...packer.Option) ([]byte, error) {
	p, err := detectUnpack(name, data, opts)
	if err != nil {
		return nil, err
	}

	out := packer.MemoryOutput()
	if err := p.Unpack(out); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// Test decompresses a packed executable and verifies its checksums without
// producing output.
func Test(name string, data []byte) error {
	p, err := detectUnpack(name, data, nil)
	if err != nil {
		return err
	}

	return p.Test()
}

func detectUnpack(name string, data []byte, opts []packer.Option) (packer.Packer, error) {
	o, err := packer.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	return packer.DetectUnpack(packer.MemoryInput(name, data), o)
}

// Compress compresses src with method at level (1..10) using the default
// codec configuration.
//
// Returns:
//   - []byte: The compressed data.
//   - *compress.Result: Encode-time parameters Decompress needs.
//   - error: errs.ErrNotCompressible when the output would not be smaller
//     than the input, errs.ErrInvalidArgument for a bad method or level.
func Compress(src []byte, method format.Method, level int) ([]byte, *compress.Result, error) {
	dst := make([]byte, compress.MaxCompressedSize(len(src)))
	res := &compress.Result{}

	n, err := compress.Compress(src, dst, nil, method, level, nil, res)
	if err != nil {
		return nil, nil, err
	}

	return dst[:n], res, nil
}

// Decompress reverses Compress. ulen is the original length of the data.
func Decompress(src []byte, ulen int, method format.Method, res *compress.Result) ([]byte, error) {
	dst := make([]byte, ulen)

	n, err := compress.Decompress(src, dst, method, res)
	if err != nil {
		return nil, err
	}
	if n != ulen {
		return nil, errors.Errorf("decompressed %d bytes, want %d", n, ulen)
	}

	return dst, nil
}
