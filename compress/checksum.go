package compress

import "hash/crc32"

const (
	// AdlerInit is the initial running value of Adler32.
	AdlerInit uint32 = 1
	// CRCInit is the initial running value of CRC32.
	CRCInit uint32 = 0

	adlerBase = 65521
	// adlerNMax is the largest n such that 255n(n+1)/2 + (n+1)(base-1) fits in 32 bits.
	adlerNMax = 5552
)

// Adler32 updates the running adler-32 checksum adler with buf.
// Start with AdlerInit.
func Adler32(buf []byte, adler uint32) uint32 {
	s1, s2 := adler&0xffff, adler>>16
	for len(buf) > 0 {
		n := len(buf)
		if n > adlerNMax {
			n = adlerNMax
		}
		for _, b := range buf[:n] {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= adlerBase
		s2 %= adlerBase
		buf = buf[n:]
	}

	return s2<<16 | s1
}

// CRC32 updates the running IEEE crc-32 checksum crc with buf.
// Start with CRCInit.
func CRC32(buf []byte, crc uint32) uint32 {
	return crc32.Update(crc, crc32.IEEETable, buf)
}
