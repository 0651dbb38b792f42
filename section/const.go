package section

// Magic starts every pack header. It reads "XPK!" in file order.
const Magic uint32 = 0x214B5058

// Version is the pack header layout written by this package.
const Version = 1

// Header sizes per executable format.
const (
	HeaderSizeDOS16  = 22 // dos/com and dos/sys: 16-bit lengths
	HeaderSizeDOSEXE = 27 // dos/exe: 24-bit lengths
	HeaderSize       = 32 // every other format
)

// Byte offsets shared by all layouts.
const (
	offVersion = 4
	offFormat  = 5
	offMethod  = 6
	offLevel   = 7
	offUAdler  = 8
	offCAdler  = 12
	offLengths = 16
)

// checksumModulus keeps the header checksum a byte.
const checksumModulus = 251
