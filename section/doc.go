// Package section defines the pack header, the self-description embedded in
// every packed file.
//
// The header sits inside the loader, in the fragment that precedes the
// compressed payload. Its layout depends on the executable format:
//
//	Bytes | dos/com, dos/sys (22) | dos/exe (27)      | others (32)
//	------|-----------------------|-------------------|------------------
//	0-3   | magic "XPK!"          | magic             | magic
//	4     | version               | version           | version
//	5     | format                | format            | format
//	6     | method                | method            | method
//	7     | level                 | level             | level
//	8-11  | adler32 uncompressed  | same              | same
//	12-15 | adler32 compressed    | same              | same
//	16-   | u_len:16 c_len:16     | u_len:24 c_len:24 | u_len:32 c_len:32
//	      | filter                | u_file_size:24    | u_file_size:32
//	      |                       | filter            | filter, cto, n_mru
//	last  | checksum              | checksum          | checksum
//
// Multi-byte fields follow the byte order of the format (see endian.ForExecutable).
// The checksum is the sum of bytes 4..size-2 modulo 251.
//
// Packers write the header with Patch, which locates the slot by its magic:
//
//	h := section.NewPackHeader(format.ExeDOSSYS)
//	h.Method, h.ULen, h.CLen = format.MethodNRV2BLE16, 4096, 1800
//	if _, err := h.Patch(loader[:entryLen]); err != nil {
//	    return err
//	}
//
// Unpackers locate it with Find.
package section
