package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialNextAndIncrement(t *testing.T) {
	s := Serial(5)
	assert.Equal(t, Serial(6), s.Next())
	assert.Equal(t, Serial(5), s, "Next must not modify the receiver")

	assert.Equal(t, Serial(6), s.Increment())
	assert.Equal(t, Serial(6), s)
}

func TestSerialQueueDrainUpTo(t *testing.T) {
	var q serialQueue[string]
	for i := 0; i < 5; i++ {
		q.Enqueue(string(rune('0'+i)), Serial(i))
	}

	drained := q.DrainUpTo(2)
	require.Len(t, drained, 3)
	for i, item := range drained {
		assert.Equal(t, string(rune('0'+i)), item.value)
		assert.Equal(t, Serial(i), item.serial)
	}
	assert.Equal(t, 2, q.Len())

	var rest []string
	q.IterUpTo(4, func(v string, s Serial) {
		rest = append(rest, v)
	})
	assert.Equal(t, []string{"3", "4"}, rest)
	assert.Equal(t, 2, q.Len(), "IterUpTo must not remove entries")
}

func TestSerialQueueDrainUpToStopsAtBoundary(t *testing.T) {
	var q serialQueue[int]
	q.Enqueue(10, 1)
	q.Enqueue(20, 3)
	q.Enqueue(30, 3)
	q.Enqueue(40, 7)

	assert.Nil(t, q.DrainUpTo(0))

	drained := q.DrainUpTo(3)
	require.Len(t, drained, 3)
	assert.Equal(t, 30, drained[2].value)

	v, s, ok := q.First()
	require.True(t, ok)
	assert.Equal(t, 40, v)
	assert.Equal(t, Serial(7), s)
}

func TestSerialQueueEnqueueOutOfOrderPanics(t *testing.T) {
	var q serialQueue[int]
	q.Enqueue(1, 4)
	q.Enqueue(2, 4)
	assert.Panics(t, func() { q.Enqueue(3, 2) })
}

func TestSerialQueueDrainAll(t *testing.T) {
	var q serialQueue[int]
	q.Enqueue(1, 1)
	q.Enqueue(2, 2)

	drained := q.DrainAll()
	assert.Len(t, drained, 2)
	assert.True(t, q.Empty())

	_, _, ok := q.First()
	assert.False(t, ok)
}
