package vkr

import "fmt"

// Serial is an opaque, strictly increasing logical timestamp. The device
// stamps every queue submission with a serial and tracks the highest serial
// the driver has reported complete; everything else in the runtime - deferred
// destruction, fence waits, pool recycling - is ordered by comparing against
// those two values.
type Serial uint64

// Next returns the serial following s without modifying s.
func (s Serial) Next() Serial {
	return s + 1
}

// Increment advances s and returns the new value.
func (s *Serial) Increment() Serial {
	*s = *s + 1
	return *s
}

func (s Serial) String() string {
	return fmt.Sprintf("serial(%d)", uint64(s))
}

type serialItem[T any] struct {
	value  T
	serial Serial
}

// serialQueue is an append-only list of values paired with the serial that
// guards them. Entries must be enqueued in non-decreasing serial order; the
// queue can then be drained up to a completed serial in O(n) with no sorting.
type serialQueue[T any] struct {
	items []serialItem[T]
}

// Enqueue appends value guarded by serial. Enqueuing a serial lower than the
// current tail is a broken internal contract, not a recoverable condition,
// and panics.
func (q *serialQueue[T]) Enqueue(value T, serial Serial) {
	if n := len(q.items); n > 0 && q.items[n-1].serial > serial {
		panic(fmt.Sprintf("vkr: out of order serial enqueue: %s after %s", serial, q.items[n-1].serial))
	}
	q.items = append(q.items, serialItem[T]{value: value, serial: serial})
}

// DrainUpTo removes and returns every entry with serial <= completed,
// preserving the order of the remainder.
func (q *serialQueue[T]) DrainUpTo(completed Serial) []serialItem[T] {
	i := 0
	for i < len(q.items) && q.items[i].serial <= completed {
		i++
	}
	if i == 0 {
		return nil
	}
	drained := q.items[:i:i]
	q.items = q.items[i:]
	return drained
}

// IterUpTo calls fn for every entry with serial <= completed without
// removing anything.
func (q *serialQueue[T]) IterUpTo(completed Serial, fn func(value T, serial Serial)) {
	for _, item := range q.items {
		if item.serial > completed {
			return
		}
		fn(item.value, item.serial)
	}
}

// DrainAll removes and returns every entry.
func (q *serialQueue[T]) DrainAll() []serialItem[T] {
	drained := q.items
	q.items = nil
	return drained
}

func (q *serialQueue[T]) First() (T, Serial, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, 0, false
	}
	return q.items[0].value, q.items[0].serial, true
}

func (q *serialQueue[T]) Len() int {
	return len(q.items)
}

func (q *serialQueue[T]) Empty() bool {
	return len(q.items) == 0
}
