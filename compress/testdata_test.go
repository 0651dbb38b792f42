package compress

import "github.com/arloliu/xpack/format"

var allMethods = []format.Method{
	format.MethodNRV2BLE32, format.MethodNRV2B8, format.MethodNRV2BLE16,
	format.MethodNRV2DLE32, format.MethodNRV2D8, format.MethodNRV2DLE16,
	format.MethodNRV2ELE32, format.MethodNRV2E8, format.MethodNRV2ELE16,
	format.MethodLZMA, format.MethodDeflate, format.MethodZstd, format.MethodLZ4,
}

// lcgBytes returns n pseudo random bytes from a fixed linear congruential generator.
func lcgBytes(n int) []byte {
	data := make([]byte, n)
	x := uint32(0x12345678)
	for i := range data {
		x = x*1103515245 + 12345
		data[i] = byte(x >> 16)
	}

	return data
}

// textBytes returns n bytes of repetitive text with some variation.
func textBytes(n int) []byte {
	words := []string{"MOV ", "AX,", "BX ", "INT 21h ", "CALL ", "near ", "ptr ", "; driver ", "strategy ", "interrupt "}
	data := make([]byte, 0, n)
	for i := 0; len(data) < n; i++ {
		data = append(data, words[(i*7+i/3)%len(words)]...)
		if i%11 == 0 {
			data = append(data, byte('0'+i%10), '\n')
		}
	}

	return data[:n]
}

// mixedBytes interleaves runs of zeros, text and noise, like a small executable.
func mixedBytes(n int) []byte {
	data := make([]byte, 0, n)
	noise := lcgBytes(n)
	text := textBytes(n)
	for i := 0; len(data) < n; i++ {
		switch i % 3 {
		case 0:
			data = append(data, make([]byte, 200+i%50)...)
		case 1:
			data = append(data, text[:300]...)
		default:
			data = append(data, noise[i%512:i%512+64]...)
		}
	}

	return data[:n]
}
