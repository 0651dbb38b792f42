// Package hash computes the 64-bit identities of loader blobs.
package hash

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ID returns the xxHash64 identity of data.
func ID(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// String formats an identity as 16 lowercase hex digits.
func String(id uint64) string {
	return fmt.Sprintf("%016x", id)
}
