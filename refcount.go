package vkr

import "sync/atomic"

// refCount is embedded in every long-lived GPU object wrapper. The object is
// created with one reference; Retain and release adjust it. When the count
// hits zero the owner schedules its native handles into the device's fenced
// deleter - nothing is ever destroyed inline.
type refCount struct {
	n int32
}

func newRefCount() refCount {
	return refCount{n: 1}
}

func (r *refCount) retain() {
	atomic.AddInt32(&r.n, 1)
}

// release decrements the count and reports whether this call dropped the
// final reference. Releasing past zero is a programmer error.
func (r *refCount) release() bool {
	n := atomic.AddInt32(&r.n, -1)
	if n < 0 {
		panic("vkr: release of an already destroyed object")
	}
	return n == 0
}
