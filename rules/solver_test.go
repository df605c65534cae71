package rules

import (
	"math/rand"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/shapeinfer/facts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolverEqualsLiteral(t *testing.T) {
	ctx := newTestContext(1, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()

	s.Equals(inputs.At(0).Rank, 2)
	s.Equals(inputs.At(0).DType, dtypes.Float32)
	s.Equals(outputs.At(0).Shape, []int{3, 4})

	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, facts.KnownInt(2), ctx.Inputs[0].Rank())
	assert.Equal(t, facts.KnownType(dtypes.Float32), ctx.Inputs[0].DType)
	assert.True(t, ctx.Outputs[0].Shape.Equal(facts.ShapeOf(3, 4)))
}

func TestSolverEqualsSymmetric(t *testing.T) {
	// Equality refines both sides: each ends up with the meet of all
	// operands' knowledge.
	ctx := newTestContext(2, 0)
	var err error
	ctx.Inputs[0].Shape, err = ctx.Inputs[0].Shape.UnifyDim(0, facts.KnownDim(5))
	require.NoError(t, err)
	ctx.Inputs[1].Shape, err = ctx.Inputs[1].Shape.UnifyRank(facts.KnownInt(2))
	require.NoError(t, err)

	s := NewSolver()
	inputs := Inputs()
	s.Equals(inputs.At(0).Shape, inputs.At(1).Shape)

	require.NoError(t, s.Solve(ctx))
	want := facts.ClosedShape(facts.KnownDim(5), facts.UnknownDim())
	assert.True(t, ctx.Inputs[0].Shape.Equal(want))
	assert.True(t, ctx.Inputs[1].Shape.Equal(want))
}

func TestSolverChainsAcrossPasses(t *testing.T) {
	// a = b, b = c, c = 4: the first pass may visit a = b before b is
	// known; the fixpoint loop picks it up on a later pass.
	ctx := newTestContext(3, 0)
	s := NewSolver()
	inputs := Inputs()
	s.Equals(inputs.At(0).Rank, inputs.At(1).Rank)
	s.Equals(inputs.At(1).Rank, inputs.At(2).Rank)
	s.Equals(inputs.At(2).Rank, 4)

	require.NoError(t, s.Solve(ctx))
	for i := 0; i < 3; i++ {
		assert.Equal(t, facts.KnownInt(4), ctx.Inputs[i].Rank())
	}
}

func TestSolverIdempotent(t *testing.T) {
	ctx := newTestContext(2, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()
	s.Equals(inputs.At(0).Shape, inputs.At(1).Shape, outputs.At(0).Shape)
	s.Equals(inputs.At(0).Shape.At(0), 2)
	s.Equals(inputs.At(1).Rank, 3)

	require.NoError(t, s.Solve(ctx))
	settled := ctx.Version()

	// Solving again on the result is a no-op: the fixpoint is a fixed
	// point.
	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, settled, ctx.Version())
}

func TestSolverOrderIndependent(t *testing.T) {
	build := func() []func(s *Solver) {
		inputs, outputs := Inputs(), Outputs()
		return []func(s *Solver){
			func(s *Solver) { s.Equals(outputs.At(0).Rank, inputs.At(0).Rank) },
			func(s *Solver) { s.Equals(inputs.At(0).Rank, 2) },
			func(s *Solver) { s.Equals(outputs.At(0).Shape.At(1), inputs.At(0).Shape.At(0)) },
			func(s *Solver) { s.Equals(inputs.At(0).Shape.At(0), 7) },
			func(s *Solver) { s.Equals(inputs.At(0).DType, outputs.At(0).DType) },
			func(s *Solver) { s.Equals(outputs.At(0).DType, dtypes.Int32) },
		}
	}

	solve := func(order []int) (*facts.TensorFact, *facts.TensorFact) {
		ctx := newTestContext(1, 1)
		s := NewSolver()
		adders := build()
		for _, i := range order {
			adders[i](s)
		}
		require.NoError(t, s.Solve(ctx))
		return ctx.Inputs[0], ctx.Outputs[0]
	}

	wantIn, wantOut := solve([]int{0, 1, 2, 3, 4, 5})
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		order := rng.Perm(6)
		gotIn, gotOut := solve(order)
		assert.True(t, gotIn.Shape.Equal(wantIn.Shape), "order %v", order)
		assert.True(t, gotOut.Shape.Equal(wantOut.Shape), "order %v", order)
		assert.Equal(t, wantIn.DType, gotIn.DType, "order %v", order)
		assert.Equal(t, wantOut.DType, gotOut.DType, "order %v", order)
	}
}

func TestSolverContradiction(t *testing.T) {
	ctx := newTestContext(1, 0)
	s := NewSolver()
	inputs := Inputs()
	s.Equals(inputs.At(0).Rank, 2)
	s.Equals(inputs.At(0).Rank, 3)

	err := s.Solve(ctx)
	require.Error(t, err)
	assert.True(t, facts.IsContradiction(err))
	// The error names the offending rule and path.
	assert.Contains(t, err.Error(), "[0,0,1]")

	// No silently accepted refinement beyond the first assertion: the
	// fact still holds the pre-contradiction knowledge.
	assert.Equal(t, facts.KnownInt(2), ctx.Inputs[0].Rank())
}

func TestSolverGivenInt(t *testing.T) {
	ctx := newTestContext(1, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()

	fired := 0
	s.GivenInt(inputs.At(0).Rank, func(s *Solver, rank int) {
		fired++
		for i := 0; i < rank; i++ {
			s.Equals(outputs.At(0).Shape.At(i), inputs.At(0).Shape.At(i))
		}
	})
	s.Equals(inputs.At(0).Shape, []int{4, 5})

	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, 1, fired)
	assert.Equal(t, facts.KnownDim(4), ctx.Outputs[0].Shape.Dim(0))
	assert.Equal(t, facts.KnownDim(5), ctx.Outputs[0].Shape.Dim(1))

	// A second solve does not re-fire the callback.
	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, 1, fired)
}

func TestSolverGivenNeverFires(t *testing.T) {
	// The fixpoint is still reached when a given's fact stays unknown;
	// the facts simply remain partial.
	ctx := newTestContext(1, 1)
	s := NewSolver()
	inputs := Inputs()

	s.GivenInt(inputs.At(0).Rank, func(s *Solver, rank int) {
		t.Fatalf("callback fired for an unknown rank")
	})
	require.NoError(t, s.Solve(ctx))
	assert.False(t, ctx.Inputs[0].Rank().Known)
}

func TestSolverGivenShapeAndDType(t *testing.T) {
	ctx := newTestContext(1, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()

	var gotDims []int
	s.GivenShape(inputs.At(0).Shape, func(s *Solver, dims []int) {
		gotDims = dims
		s.Equals(outputs.At(0).Rank, len(dims))
	})
	var gotDType dtypes.DType
	s.GivenDType(inputs.At(0).DType, func(s *Solver, dtype dtypes.DType) {
		gotDType = dtype
	})
	s.Equals(inputs.At(0).Shape, []int{2, 3})
	s.Equals(inputs.At(0).DType, dtypes.Float64)

	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, []int{2, 3}, gotDims)
	assert.Equal(t, dtypes.Float64, gotDType)
	assert.Equal(t, facts.KnownInt(2), ctx.Outputs[0].Rank())
}

func TestSolverComputedInt(t *testing.T) {
	ctx := newTestContext(2, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()

	s.ComputedInt(outputs.At(0).Shape.At(0), func(dims []int) int {
		return dims[0] + dims[1]
	}, inputs.At(0).Shape.At(0), inputs.At(1).Shape.At(0))

	// Not computable yet: sources unknown.
	require.NoError(t, s.Solve(ctx))
	assert.False(t, ctx.Outputs[0].Shape.Dim(0).Known)

	s.Equals(inputs.At(0).Shape.At(0), 3)
	s.Equals(inputs.At(1).Shape.At(0), 4)
	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, facts.KnownDim(7), ctx.Outputs[0].Shape.Dim(0))
}

func TestSolverValueElements(t *testing.T) {
	ctx := newTestContext(1, 1)
	s := NewSolver()
	inputs, outputs := Inputs(), Outputs()

	// Cross-kind equality: a value element against a shape dimension.
	s.Equals(inputs.At(0).Value.At(0), outputs.At(0).Shape.At(0))
	s.Equals(inputs.At(0).Value.At(0), 6)
	s.Equals(inputs.At(0).Value.Root(), 1)

	require.NoError(t, s.Solve(ctx))
	assert.Equal(t, facts.KnownDim(6), ctx.Outputs[0].Shape.Dim(0))
	assert.Equal(t, facts.KnownInt(1), ctx.Inputs[0].Value.At())
	assert.Equal(t, facts.KnownInt(6), ctx.Inputs[0].Value.At(0))
}

func TestSolverListLengthRules(t *testing.T) {
	ctx := newTestContext(2, 1)
	s := NewSolver()
	s.Equals(Inputs().Len, 2)
	s.Equals(Outputs().Len, 1)
	require.NoError(t, s.Solve(ctx))

	bad := NewSolver()
	bad.Equals(Inputs().Len, 3)
	err := bad.Solve(newTestContext(2, 1))
	require.Error(t, err)
	assert.True(t, facts.IsContradiction(err))
}

func TestSolverRejectsBadOperands(t *testing.T) {
	s := NewSolver()
	assert.Panics(t, func() { s.Equals(Inputs().Len, "not an operand") })
	assert.Panics(t, func() { s.Equals(Inputs().Len) })
}
