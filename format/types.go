package format

type (
	// Method identifies a codec backend together with its variant and bit-buffer width.
	// Values are persisted in packed files and must never be renumbered.
	Method int16
	// Filter identifies a reversible preprocessing transform. Persisted in packed files.
	Filter int16
	// Executable identifies an executable container format. Persisted in packed files.
	Executable uint8
	// CPU is the minimal target CPU level a 16-bit loader may assume.
	CPU uint8
	// Family groups methods handled by the same codec backend.
	Family uint8
)

const (
	MethodNRV2BLE32 Method = 2  // MethodNRV2BLE32 is NRV2B with a 32-bit little-endian bit buffer.
	MethodNRV2B8    Method = 3  // MethodNRV2B8 is NRV2B with an 8-bit bit buffer.
	MethodNRV2BLE16 Method = 4  // MethodNRV2BLE16 is NRV2B with a 16-bit little-endian bit buffer.
	MethodNRV2DLE32 Method = 5  // MethodNRV2DLE32 is NRV2D with a 32-bit little-endian bit buffer.
	MethodNRV2D8    Method = 6  // MethodNRV2D8 is NRV2D with an 8-bit bit buffer.
	MethodNRV2DLE16 Method = 7  // MethodNRV2DLE16 is NRV2D with a 16-bit little-endian bit buffer.
	MethodNRV2ELE32 Method = 8  // MethodNRV2ELE32 is NRV2E with a 32-bit little-endian bit buffer.
	MethodNRV2E8    Method = 9  // MethodNRV2E8 is NRV2E with an 8-bit bit buffer.
	MethodNRV2ELE16 Method = 10 // MethodNRV2ELE16 is NRV2E with a 16-bit little-endian bit buffer.
	// 11..13 are reserved.
	MethodLZMA    Method = 14 // MethodLZMA is LZMA with the classic 13-byte header.
	MethodDeflate Method = 15 // MethodDeflate is raw DEFLATE.
	MethodZstd    Method = 16 // MethodZstd is a single Zstandard frame.
	MethodLZ4     Method = 17 // MethodLZ4 is a single LZ4 block.

	// Pseudo methods used in method lists and options. Never persisted.
	MethodAll        Method = -1
	MethodEnd        Method = -2
	MethodNone       Method = -3
	MethodSkip       Method = -4
	MethodUltraBrute Method = -5
)

const (
	FamilyUnknown Family = iota
	FamilyNRV
	FamilyLZMA
	FamilyDeflate
	FamilyZstd
	FamilyLZ4
)

// Family returns the backend family handling m.
func (m Method) Family() Family {
	switch {
	case m >= MethodNRV2BLE32 && m <= MethodNRV2ELE16:
		return FamilyNRV
	case m&0xff == MethodLZMA:
		return FamilyLZMA
	case m == MethodDeflate:
		return FamilyDeflate
	case m == MethodZstd:
		return FamilyZstd
	case m == MethodLZ4:
		return FamilyLZ4
	default:
		return FamilyUnknown
	}
}

// IsValid reports whether m is a real, persistable method id.
func (m Method) IsValid() bool {
	return m.Family() != FamilyUnknown
}

// IsNRV2B reports whether m belongs to the NRV2B variant.
func (m Method) IsNRV2B() bool {
	return m == MethodNRV2BLE32 || m == MethodNRV2B8 || m == MethodNRV2BLE16
}

// IsNRV2D reports whether m belongs to the NRV2D variant.
func (m Method) IsNRV2D() bool {
	return m == MethodNRV2DLE32 || m == MethodNRV2D8 || m == MethodNRV2DLE16
}

// IsNRV2E reports whether m belongs to the NRV2E variant.
func (m Method) IsNRV2E() bool {
	return m == MethodNRV2ELE32 || m == MethodNRV2E8 || m == MethodNRV2ELE16
}

// BitWidth returns the bit-buffer width in bits of an NRV method, or 0.
func (m Method) BitWidth() int {
	switch m {
	case MethodNRV2B8, MethodNRV2D8, MethodNRV2E8:
		return 8
	case MethodNRV2BLE16, MethodNRV2DLE16, MethodNRV2ELE16:
		return 16
	case MethodNRV2BLE32, MethodNRV2DLE32, MethodNRV2ELE32:
		return 32
	default:
		return 0
	}
}

func (m Method) String() string {
	switch m {
	case MethodNRV2BLE32:
		return "NRV2B_LE32"
	case MethodNRV2B8:
		return "NRV2B_8"
	case MethodNRV2BLE16:
		return "NRV2B_LE16"
	case MethodNRV2DLE32:
		return "NRV2D_LE32"
	case MethodNRV2D8:
		return "NRV2D_8"
	case MethodNRV2DLE16:
		return "NRV2D_LE16"
	case MethodNRV2ELE32:
		return "NRV2E_LE32"
	case MethodNRV2E8:
		return "NRV2E_8"
	case MethodNRV2ELE16:
		return "NRV2E_LE16"
	case MethodLZMA:
		return "LZMA"
	case MethodDeflate:
		return "DEFLATE"
	case MethodZstd:
		return "ZSTD"
	case MethodLZ4:
		return "LZ4"
	case MethodAll:
		return "ALL"
	case MethodEnd:
		return "END"
	case MethodNone:
		return "NONE"
	case MethodSkip:
		return "SKIP"
	case MethodUltraBrute:
		return "ULTRA_BRUTE"
	default:
		return "Unknown"
	}
}

// ShortName returns the lowercase family name shown in listings, e.g. "nrv2b".
func (m Method) ShortName() string {
	switch {
	case m.IsNRV2B():
		return "nrv2b"
	case m.IsNRV2D():
		return "nrv2d"
	case m.IsNRV2E():
		return "nrv2e"
	}

	switch m.Family() {
	case FamilyLZMA:
		return "lzma"
	case FamilyDeflate:
		return "deflate"
	case FamilyZstd:
		return "zstd"
	case FamilyLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ParseMethod resolves a method from its String() name or its family short name.
// A family short name selects the 32-bit little-endian variant.
func ParseMethod(name string) (Method, bool) {
	switch name {
	case "nrv2b":
		return MethodNRV2BLE32, true
	case "nrv2d":
		return MethodNRV2DLE32, true
	case "nrv2e":
		return MethodNRV2ELE32, true
	case "lzma":
		return MethodLZMA, true
	case "deflate":
		return MethodDeflate, true
	case "zstd":
		return MethodZstd, true
	case "lz4":
		return MethodLZ4, true
	}

	for m := MethodNRV2BLE32; m <= MethodLZ4; m++ {
		if m.IsValid() && m.String() == name {
			return m, true
		}
	}

	return MethodNone, false
}

func (f Family) String() string {
	switch f {
	case FamilyNRV:
		return "NRV"
	case FamilyLZMA:
		return "LZMA"
	case FamilyDeflate:
		return "DEFLATE"
	case FamilyZstd:
		return "ZSTD"
	case FamilyLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

const (
	FilterNoop       Filter = 0x00 // FilterNoop means the payload is not filtered.
	FilterCT16E8     Filter = 0x01 // FilterCT16E8 rewrites near call (E8) operands.
	FilterCT16E9     Filter = 0x02 // FilterCT16E9 rewrites near jump (E9) operands.
	FilterCT16E8E9   Filter = 0x03 // FilterCT16E8E9 rewrites both call and jump operands.
	FilterCT16E8BS   Filter = 0x04 // FilterCT16E8BS is FilterCT16E8 with byte-swapped operands.
	FilterCT16E9BS   Filter = 0x05 // FilterCT16E9BS is FilterCT16E9 with byte-swapped operands.
	FilterCT16E8E9BS Filter = 0x06 // FilterCT16E8E9BS is FilterCT16E8E9 with byte-swapped operands.

	// Pseudo filters used in filter lists and options. Never persisted.
	FilterEnd        Filter = -1
	FilterNone       Filter = -2
	FilterSkip       Filter = -3
	FilterUltraBrute Filter = -4
)

// IsCallTrick16 reports whether f is one of the 16-bit call-trick filters.
func (f Filter) IsCallTrick16() bool {
	return f >= FilterCT16E8 && f <= FilterCT16E8E9BS
}

func (f Filter) String() string {
	switch f {
	case FilterNoop:
		return "none"
	case FilterCT16E8:
		return "ct16/e8"
	case FilterCT16E9:
		return "ct16/e9"
	case FilterCT16E8E9:
		return "ct16/e8e9"
	case FilterCT16E8BS:
		return "ct16/e8/bswap"
	case FilterCT16E9BS:
		return "ct16/e9/bswap"
	case FilterCT16E8E9BS:
		return "ct16/e8e9/bswap"
	case FilterEnd:
		return "END"
	case FilterNone:
		return "NONE"
	case FilterSkip:
		return "SKIP"
	case FilterUltraBrute:
		return "ULTRA_BRUTE"
	default:
		return "Unknown"
	}
}

// Executable format ids. Formats of 128 and above are big-endian.
const (
	ExeDOSCOM          Executable = 1
	ExeDOSSYS          Executable = 2
	ExeDOSEXE          Executable = 3
	ExeDJGPP2COFF      Executable = 4
	ExeWatcomLE        Executable = 5
	ExeTMTADAM         Executable = 7
	ExeWin32PE         Executable = 9
	ExeLinuxI386       Executable = 10
	ExeWin16NE         Executable = 11
	ExeLinuxELFI386    Executable = 12
	ExeLinuxSHI386     Executable = 14
	ExeVMLinuzI386     Executable = 15
	ExeBVMLinuzI386    Executable = 16
	ExeElksAOUT        Executable = 17
	ExePS1EXE          Executable = 18
	ExeVMLinuxI386     Executable = 19
	ExeWinCEARM        Executable = 21
	ExeLinuxELF64AMD   Executable = 22
	ExeLinuxELF32ARM   Executable = 23
	ExeMachI386        Executable = 29
	ExeMachAMD64       Executable = 33
	ExeWin64PE         Executable = 36
	ExeMachARM64       Executable = 37
	ExeLinuxELF64ARM64 Executable = 42
	ExeWin64PEARM64    Executable = 43

	ExeAtariTOS       Executable = 129
	ExeSolarisSPARC   Executable = 130
	ExeMachPPC32      Executable = 131
	ExeLinuxELFPPC32  Executable = 132
	ExeLinuxELF32ARMB Executable = 133
	ExeMachFat        Executable = 134
)

// IsBigEndian reports whether packed files of this format store multi-byte fields big-endian.
func (e Executable) IsBigEndian() bool {
	return e >= 128
}

func (e Executable) String() string {
	switch e {
	case ExeDOSCOM:
		return "dos/com"
	case ExeDOSSYS:
		return "dos/sys"
	case ExeDOSEXE:
		return "dos/exe"
	case ExeWin32PE:
		return "win32/pe"
	case ExeWin64PE:
		return "win64/pe"
	case ExeLinuxELFI386:
		return "linux/i386"
	case ExeLinuxELF64AMD:
		return "linux/amd64"
	case ExeLinuxELF64ARM64:
		return "linux/arm64"
	case ExeMachAMD64:
		return "macho/amd64"
	case ExeAtariTOS:
		return "atari/tos"
	default:
		return "Unknown"
	}
}

const (
	CPUAuto CPU = iota // CPUAuto lets the packer pick its default loader variant.
	CPU8086            // CPU8086 restricts loaders to 8086 instructions.
	CPU286             // CPU286 allows 80286 instructions.
	CPU386             // CPU386 allows 80386 instructions.
)

func (c CPU) String() string {
	switch c {
	case CPUAuto:
		return "auto"
	case CPU8086:
		return "8086"
	case CPU286:
		return "286"
	case CPU386:
		return "386"
	default:
		return "Unknown"
	}
}
