package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAlignUp(t *testing.T) {
	assert.Equal(t, uint64(12), makeAlignUp(12, 3))
	assert.Equal(t, uint64(12), makeAlignUp(10, 3))
	assert.Equal(t, uint64(0), makeAlignUp(0, 256))
	assert.Equal(t, uint64(256), makeAlignUp(1, 256))
}

func TestSpanListFirstFit(t *testing.T) {
	l := spanList{Size: 1024}

	assert.Nil(t, l.Allocate(2048, 1), "oversized request must fail")

	first := l.Allocate(512, 1)
	require.NotNil(t, first)
	assert.EqualValues(t, 0, first.Offset)

	assert.Nil(t, l.Allocate(768, 1), "no room past the first span")

	second := l.Allocate(500, 1)
	require.NotNil(t, second)
	assert.EqualValues(t, 512, second.Offset)

	assert.Nil(t, l.Allocate(50, 1))

	tail := l.Allocate(5, 1)
	require.NotNil(t, tail)

	assert.Nil(t, l.Allocate(20, 1))

	// freeing the middle span opens a gap the next fit can use
	l.Free(second)
	refit := l.Allocate(500, 1)
	require.NotNil(t, refit)
	assert.EqualValues(t, 512, refit.Offset)

	l.Free(first)
	a := l.Allocate(20, 1)
	require.NotNil(t, a)
	assert.EqualValues(t, 0, a.Offset)

	b := l.Allocate(40, 1)
	require.NotNil(t, b)
	c := l.Allocate(12, 1)
	require.NotNil(t, c)

	assert.Nil(t, l.Allocate(500, 1))
	assert.NotNil(t, l.Allocate(5, 1))
}

func TestSpanListAlignment(t *testing.T) {
	l := spanList{Size: 1024}

	a := l.Allocate(10, 1)
	require.NotNil(t, a)

	b := l.Allocate(16, 256)
	require.NotNil(t, b)
	assert.EqualValues(t, 256, b.Offset, "span must start on its alignment")

	l.Free(a)
	assert.False(t, l.Empty())
	l.Free(b)
	assert.True(t, l.Empty())
}
