package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The literal paths below are part of the addressing contract: rules and
// their consumers depend on the exact numbering.

func TestTensorsProxyPaths(t *testing.T) {
	inputs := NewTensorsProxy(Path{0})
	assert.True(t, inputs.Len.Path().Equal(Path{0, -1}))
	assert.True(t, inputs.At(0).Path().Equal(Path{0, 0}))
	assert.True(t, inputs.At(2).Path().Equal(Path{0, 2}))
}

func TestTensorProxyFieldPaths(t *testing.T) {
	inputs := NewTensorsProxy(Path{0})
	input := inputs.At(0)

	assert.True(t, input.DType.Path().Equal(Path{0, 0, 0}))
	assert.True(t, input.Rank.Path().Equal(Path{0, 0, 1}))
	assert.True(t, input.Shape.Path().Equal(Path{0, 0, 2}))
	assert.True(t, input.Value.Path().Equal(Path{0, 0, 3}))
}

func TestShapeProxyPaths(t *testing.T) {
	input := NewTensorsProxy(Path{0}).At(0)
	assert.True(t, input.Shape.At(0).Path().Equal(Path{0, 0, 2, 0}))
	assert.True(t, input.Shape.At(2).Path().Equal(Path{0, 0, 2, 2}))
}

func TestValueProxyPaths(t *testing.T) {
	input := NewTensorsProxy(Path{0}).At(0)

	assert.True(t, input.Value.Path().Equal(Path{0, 0, 3}))
	assert.True(t, input.Value.Root().Path().Equal(Path{0, 0, 3, -1}))
	assert.True(t, input.Value.At(0).Path().Equal(Path{0, 0, 3, 0}))
	assert.True(t, input.Value.At(0).At(1).Path().Equal(Path{0, 0, 3, 0, 1}))
	assert.True(t, input.Value.At(1).At(2).At(3).Path().Equal(Path{0, 0, 3, 1, 2, 3}))
}

func TestProxyIdentity(t *testing.T) {
	inputs := NewTensorsProxy(Path{0})

	// Indexing twice returns the same cached handle.
	assert.Same(t, inputs.At(1), inputs.At(1))

	input := inputs.At(0)
	assert.Same(t, input.Shape.At(3), input.Shape.At(3))
	assert.Same(t, input.Value.At(2), input.Value.At(2))
	assert.Same(t, input.Value.At(2).At(5), input.Value.At(2).At(5))
	assert.Same(t, input.Value.Root(), input.Value.Root())

	// Distinct indices give distinct handles.
	assert.NotSame(t, inputs.At(0), inputs.At(1))
	assert.NotSame(t, input.Shape.At(0), input.Shape.At(1))
}

func TestInputsOutputsRoots(t *testing.T) {
	assert.True(t, Inputs().Path().Equal(Path{0}))
	assert.True(t, Outputs().Path().Equal(Path{1}))
	assert.True(t, Outputs().At(0).Rank.Path().Equal(Path{1, 0, 1}))
}

func TestNegativeIndexPanics(t *testing.T) {
	inputs := NewTensorsProxy(Path{0})
	assert.Panics(t, func() { inputs.At(-1) })
	assert.Panics(t, func() { inputs.At(0).Shape.At(-1) })
	assert.Panics(t, func() { inputs.At(0).Value.At(-1) })
}
