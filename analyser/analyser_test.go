package analyser_test

import (
	"testing"

	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/shapeinfer/analyser"
	"github.com/gomlx/shapeinfer/facts"
	_ "github.com/gomlx/shapeinfer/ops"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyseForwardChain(t *testing.T) {
	g := analyser.NewGraph()
	g.AddInput("x", facts.FromShape(shapes.Make(dtypes.Float32, 4, 5)))
	g.AddInput("w", facts.FromShape(shapes.Make(dtypes.Float32, 5, 6)))
	g.AddNode("matmul", "MatMul", nil, []string{"x", "w"}, []string{"h"})
	g.AddNode("act", "Sqrt", nil, []string{"h"}, []string{"y"})

	require.NoError(t, analyser.New(g).Analyse())

	shape := must.M1(g.Tensor("y").ConcreteShape())
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float32, 4, 6)))
}

func TestAnalyseBackwardPropagation(t *testing.T) {
	// Nothing is known about x when the Sqrt node first solves; the Add
	// node later pins down y from w, and the worklist revisits Sqrt,
	// which carries the facts back to x.
	g := analyser.NewGraph()
	g.AddInput("x", facts.Unknown())
	g.AddInput("w", facts.FromShape(shapes.Make(dtypes.Float32, 3)))
	g.AddNode("sqrt", "Sqrt", nil, []string{"x"}, []string{"y"})
	g.AddNode("add", "Add", nil, []string{"y", "w"}, []string{"z"})

	require.NoError(t, analyser.New(g).Analyse())

	shape := must.M1(g.Tensor("x").ConcreteShape())
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float32, 3)))
}

func TestAnalyseConstantShapeFlow(t *testing.T) {
	// A Reshape whose target shape arrives as tensor values, through a
	// Constant node: [2,6] reshaped by [3,-1] gives [3,4].
	g := analyser.NewGraph()
	g.AddInput("data", facts.FromShape(shapes.Make(dtypes.Float32, 2, 6)))
	g.AddNode("target", "Constant", analyser.Attrs{
		"value": tensors.FromValue([]int64{3, -1}),
	}, nil, []string{"t"})
	g.AddNode("reshape", "Reshape", nil, []string{"data", "t"}, []string{"out"})

	require.NoError(t, analyser.New(g).Analyse())

	shape := must.M1(g.Tensor("out").ConcreteShape())
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float32, 3, 4)))
}

func TestAnalyseShapeOfFlow(t *testing.T) {
	// Shape turns dimensions into values; a Reshape downstream turns the
	// values back into dimensions. out ends up shaped like x.
	g := analyser.NewGraph()
	g.AddInput("x", facts.FromShape(shapes.Make(dtypes.Float32, 2, 3)))
	g.AddInput("data", facts.Unknown())
	g.AddNode("shape", "Shape", nil, []string{"x"}, []string{"s"})
	g.AddNode("reshape", "Reshape", nil, []string{"data", "s"}, []string{"out"})

	require.NoError(t, analyser.New(g).Analyse())

	s := g.Tensor("s")
	assert.Equal(t, facts.KnownType(dtypes.Int64), s.DType)
	assert.True(t, s.Shape.Equal(facts.ShapeOf(2)))
	assert.Equal(t, facts.KnownInt(2), s.Value.At(0))
	assert.Equal(t, facts.KnownInt(3), s.Value.At(1))
	assert.True(t, g.Tensor("out").Shape.Equal(facts.ShapeOf(2, 3)))
}

func TestAnalyseContradictionAborts(t *testing.T) {
	g := analyser.NewGraph()
	g.AddInput("x", facts.FromShape(shapes.Make(dtypes.Float32, 2)))
	g.AddInput("y", facts.FromShape(shapes.Make(dtypes.Float32, 3)))
	g.AddNode("add", "Add", nil, []string{"x", "y"}, []string{"z"})

	err := analyser.New(g).Analyse()
	require.Error(t, err)
	assert.True(t, facts.IsContradiction(err))
	assert.Contains(t, err.Error(), `"add"`)
}

func TestAnalyseContinueOnContradiction(t *testing.T) {
	g := analyser.NewGraph()
	g.AddInput("x", facts.FromShape(shapes.Make(dtypes.Float32, 2)))
	g.AddInput("y", facts.FromShape(shapes.Make(dtypes.Float32, 3)))
	g.AddNode("add", "Add", nil, []string{"x", "y"}, []string{"z"})
	g.AddInput("a", facts.FromShape(shapes.Make(dtypes.Float64, 5)))
	g.AddNode("sqrt", "Sqrt", nil, []string{"a"}, []string{"b"})

	a := analyser.New(g, analyser.ContinueOnContradiction())
	require.NoError(t, a.Analyse())

	// The failing node is recorded, and the rest of the graph still
	// got refined.
	require.Contains(t, a.NodeErrors(), "add")
	assert.True(t, facts.IsContradiction(a.NodeErrors()["add"]))
	shape := must.M1(g.Tensor("b").ConcreteShape())
	assert.True(t, shape.Equal(shapes.Make(dtypes.Float64, 5)))
}

func TestAnalyseUnknownOperator(t *testing.T) {
	g := analyser.NewGraph()
	g.AddInput("x", facts.Unknown())
	g.AddNode("n", "FrobnicateV2", nil, []string{"x"}, []string{"y"})

	err := analyser.New(g).Analyse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FrobnicateV2")
}

func TestAnalyseUnresolvedReference(t *testing.T) {
	g := analyser.NewGraph()
	g.AddNode("n", "Sqrt", nil, []string{"ghost"}, []string{"y"})

	err := analyser.New(g).Analyse()
	require.Error(t, err)
	var unresolved *analyser.UnresolvedReferences
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, []string{"ghost"}, unresolved.Names)
}
