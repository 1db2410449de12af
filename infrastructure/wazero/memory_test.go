package wazero

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackPtrLen(t *testing.T) {
	tests := []struct {
		ptr, length uint32
	}{
		{0, 0},
		{1024, 57},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{0x10000, 1},
	}
	for _, tt := range tests {
		packed := PackPtrLen(tt.ptr, tt.length)
		ptr, length := UnpackPtrLen(packed)
		assert.Equal(t, tt.ptr, ptr)
		assert.Equal(t, tt.length, length)
	}

	assert.Equal(t, uint64(1024)<<32|57, PackPtrLen(1024, 57))
}
