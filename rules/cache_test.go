package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheConstructsOnce(t *testing.T) {
	c := NewCache[int, *IntProxy]()
	calls := 0
	build := func() *IntProxy {
		calls++
		return NewIntProxy(Path{0})
	}

	first := c.Get(3, build)
	second := c.Get(3, build)
	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)

	// A different key constructs a different child.
	third := c.Get(4, build)
	assert.Equal(t, 2, calls)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, c.Len())

	// Interleaved access never re-creates.
	assert.Same(t, first, c.Get(3, build))
	assert.Same(t, third, c.Get(4, build))
	assert.Equal(t, 2, calls)
}
