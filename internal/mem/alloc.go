// Package mem provides the aligned buffer allocator backing cache shards.
package mem

import (
	"errors"
	"unsafe"
)

// Alignment is the buffer base alignment in bytes. 64 matches the cache
// line size of common x86-64/arm64 parts, so a shard buffer never straddles
// a line at offset zero.
const Alignment = 64

// maxAlloc caps a single allocation (1 TiB). Requests beyond it are
// reported as failures rather than handed to the runtime.
const maxAlloc = 1 << 40

// ErrAllocationFailed is returned when a request cannot be satisfied
// (non-positive or absurd size).
var ErrAllocationFailed = errors.New("mem: allocation failed")

// Aligned allocates byte buffers whose base address is Alignment-aligned.
// The zero value is ready to use.
type Aligned struct{}

// Alloc returns a buffer of exactly size bytes with an aligned base.
// It over-allocates by one alignment unit and re-slices at the first
// aligned offset; the runtime keeps the backing array alive through the
// returned slice.
func (Aligned) Alloc(size int) ([]byte, error) {
	if size <= 0 || size > maxAlloc {
		return nil, ErrAllocationFailed
	}

	raw := make([]byte, size+Alignment)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := int((Alignment - addr%Alignment) % Alignment)
	return raw[off : off+size : off+size], nil
}
