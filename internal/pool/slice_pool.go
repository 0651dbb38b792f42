package pool

import "sync"

var int32SlicePool = sync.Pool{
	New: func() any { return &[]int32{} },
}

// GetInt32Slice retrieves an int32 slice of exactly size elements, all set to fill.
//
// Match finders use it for hash heads and chain links. If the pooled slice has
// insufficient capacity, a new slice is allocated. The caller must call the
// returned cleanup function once the slice is no longer used.
//
// Example:
//
//	head, release := pool.GetInt32Slice(1<<16, -1)
//	defer release()
func GetInt32Slice(size int, fill int32) ([]int32, func()) {
	ptr, _ := int32SlicePool.Get().(*[]int32)
	slice := *ptr

	if cap(slice) < size {
		slice = make([]int32, size)
	} else {
		slice = slice[:size]
	}
	*ptr = slice

	for i := range slice {
		slice[i] = fill
	}

	return slice, func() { int32SlicePool.Put(ptr) }
}
