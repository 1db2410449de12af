package wazero

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// AllocateExport is the guest export the host uses to reserve guest memory.
const AllocateExport = "allocate"

// ErrNullPointer is returned when a guest hands back a zero pointer or length.
var ErrNullPointer = errors.New("null pointer from guest")

// PackPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func PackPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// UnpackPtrLen unpacks a pointer and length from a packed i64.
func UnpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}

// ReadPacked copies the guest memory referenced by packed.
func ReadPacked(mod api.Module, packed uint64) ([]byte, error) {
	ptr, length := UnpackPtrLen(packed)
	if ptr == 0 || length == 0 {
		return nil, ErrNullPointer
	}
	data, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("read %d bytes at %#x: out of range", length, ptr)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteToGuest allocates guest memory for data, copies it and returns the
// packed pointer and length.
func WriteToGuest(ctx context.Context, mod api.Module, data []byte) (uint64, error) {
	allocate := mod.ExportedFunction(AllocateExport)
	if allocate == nil {
		return 0, fmt.Errorf("guest does not export %q", AllocateExport)
	}

	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("allocate in guest: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate returned no results")
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at %#x: out of range", len(data), ptr)
	}
	return PackPtrLen(ptr, uint32(len(data))), nil //nolint:gosec // G115: length bounded by guest memory
}
