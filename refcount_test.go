package vkr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefCount(t *testing.T) {
	r := newRefCount()
	r.retain()

	assert.False(t, r.release(), "one reference still outstanding")
	assert.True(t, r.release(), "last release must report destruction")
	assert.Panics(t, func() { r.release() })
}
