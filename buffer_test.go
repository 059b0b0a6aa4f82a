package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetSubDataValidation(t *testing.T) {
	// validation runs before the device is touched, so a bare Buffer is
	// enough to exercise the rejects
	b := &Buffer{Size: 256 * 1024, Usage: BufferUsageTransferDst}

	assert.NoError(t, b.SetSubData(0, nil), "an empty update is a no-op")

	err := b.SetSubData(0, make([]byte, setSubDataMaxSize+4))
	assert.Error(t, err, "updates above 64 KiB must go through a staging copy")

	assert.Error(t, b.SetSubData(0, make([]byte, 6)),
		"the size must be a multiple of 4")
	assert.Error(t, b.SetSubData(2, make([]byte, 8)),
		"the offset must be a multiple of 4")

	small := &Buffer{Size: 8, Usage: BufferUsageTransferDst}
	assert.Error(t, small.SetSubData(4, make([]byte, 8)),
		"the update must fit the buffer")
}
