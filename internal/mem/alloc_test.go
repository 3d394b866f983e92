package mem

import (
	"errors"
	"testing"
	"unsafe"
)

func TestAligned_Alloc(t *testing.T) {
	t.Parallel()

	var a Aligned
	for _, size := range []int{1, 63, 64, 65, 1024, 4096} {
		b, err := a.Alloc(size)
		if err != nil {
			t.Fatalf("Alloc(%d): %v", size, err)
		}
		if len(b) != size {
			t.Fatalf("Alloc(%d): len = %d", size, len(b))
		}
		if addr := uintptr(unsafe.Pointer(&b[0])); addr%Alignment != 0 {
			t.Fatalf("Alloc(%d): base %#x not %d-aligned", size, addr, Alignment)
		}
		// The full length must be writable.
		b[0], b[size-1] = 0xAA, 0x55
	}
}

func TestAligned_Alloc_Failure(t *testing.T) {
	t.Parallel()

	var a Aligned
	for _, size := range []int{0, -1, maxAlloc + 1} {
		if _, err := a.Alloc(size); !errors.Is(err, ErrAllocationFailed) {
			t.Fatalf("Alloc(%d): want ErrAllocationFailed, got %v", size, err)
		}
	}
}
