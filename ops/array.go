package ops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/shapeinfer/analyser"
	"github.com/gomlx/shapeinfer/rules"
	"github.com/pkg/errors"
)

func init() {
	analyser.RegisterOp("Concat", func(node *analyser.Node) (analyser.Op, error) {
		axis := node.Attrs.Int("axis", 0)
		if axis < 0 {
			return nil, errors.Errorf("Concat node %q: negative axis %d not supported", node.Name, axis)
		}
		return concatOp{axis: axis}, nil
	})
	analyser.RegisterOp("Reshape", func(*analyser.Node) (analyser.Op, error) {
		return reshapeOp{}, nil
	})
	analyser.RegisterOp("Shape", func(*analyser.Node) (analyser.Op, error) {
		return shapeOp{}, nil
	})
	analyser.RegisterOp("Transpose", func(node *analyser.Node) (analyser.Op, error) {
		return transposeOp{perm: node.Attrs.Ints("perm", nil)}, nil
	})
	analyser.RegisterOp("Cast", func(node *analyser.Node) (analyser.Op, error) {
		to, ok := node.Attrs["to"].(dtypes.DType)
		if !ok {
			return nil, errors.Errorf("Cast node %q requires a \"to\" attribute of type dtypes.DType", node.Name)
		}
		return castOp{to: to}, nil
	})
}

// concatOp concatenates its inputs along one axis: every input agrees
// with the output everywhere except on the axis, whose output dimension
// is the sum of the input dimensions.
type concatOp struct {
	axis int
}

func (op concatOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(outputs.Len, 1)
	out := outputs.At(0)
	s.GivenInt(inputs.Len, func(s *rules.Solver, n int) {
		sources := make([]any, n)
		for i := 0; i < n; i++ {
			in := inputs.At(i)
			s.Equals(in.DType, out.DType)
			s.Equals(in.Rank, out.Rank)
			sources[i] = in.Shape.At(op.axis)
		}
		s.GivenInt(out.Rank, func(s *rules.Solver, rank int) {
			for axis := 0; axis < rank; axis++ {
				if axis == op.axis {
					continue
				}
				for i := 0; i < n; i++ {
					s.Equals(inputs.At(i).Shape.At(axis), out.Shape.At(axis))
				}
			}
		})
		s.ComputedInt(out.Shape.At(op.axis), func(dims []int) int {
			total := 0
			for _, d := range dims {
				total += d
			}
			return total
		}, sources...)
	})
}

// reshapeOp reshapes input 0 to the shape carried by the values of
// input 1, a rank-1 integer tensor. One target entry may be -1; it is
// inferred from the element count once the input shape and the other
// entries are known.
type reshapeOp struct{}

func (reshapeOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 2)
	s.Equals(outputs.Len, 1)
	data, target, out := inputs.At(0), inputs.At(1), outputs.At(0)
	s.Equals(out.DType, data.DType)
	s.Equals(target.Rank, 1)
	s.Equals(target.Shape.At(0), out.Rank)
	s.GivenInt(target.Shape.At(0), func(s *rules.Solver, n int) {
		entries := make([]rules.Comparable, n)
		for i := 0; i < n; i++ {
			entries[i] = target.Value.At(i)
			s.GivenInt(target.Value.At(i), func(s *rules.Solver, v int) {
				if v >= 0 {
					s.Equals(out.Shape.At(i), v)
				}
			})
		}
		s.GivenShape(data.Shape, func(s *rules.Solver, inDims []int) {
			s.GivenInts(entries, func(s *rules.Solver, targets []int) {
				wildcard := -1
				known := 1
				for i, v := range targets {
					if v < 0 {
						wildcard = i
					} else {
						known *= v
					}
				}
				if wildcard < 0 || known == 0 {
					return
				}
				total := 1
				for _, d := range inDims {
					total *= d
				}
				s.Equals(out.Shape.At(wildcard), total/known)
			})
		})
	})
}

// shapeOp produces a rank-1 Int64 tensor holding the dimensions of its
// input: the output's values mirror the input's shape.
type shapeOp struct{}

func (shapeOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 1)
	s.Equals(outputs.Len, 1)
	in, out := inputs.At(0), outputs.At(0)
	s.Equals(out.DType, dtypes.Int64)
	s.Equals(out.Rank, 1)
	s.Equals(out.Shape.At(0), in.Rank)
	s.GivenInt(in.Rank, func(s *rules.Solver, rank int) {
		for axis := 0; axis < rank; axis++ {
			s.Equals(out.Value.At(axis), in.Shape.At(axis))
		}
	})
}

// transposeOp permutes the axes of its input. With an explicit perm
// attribute output axis i maps to input axis perm[i]; without one the
// axes are reversed, once the rank is known.
type transposeOp struct {
	perm []int
}

func (op transposeOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 1)
	s.Equals(outputs.Len, 1)
	in, out := inputs.At(0), outputs.At(0)
	s.Equals(in.DType, out.DType)
	if len(op.perm) > 0 {
		s.Equals(in.Rank, len(op.perm))
		s.Equals(out.Rank, len(op.perm))
		for i, p := range op.perm {
			s.Equals(out.Shape.At(i), in.Shape.At(p))
		}
		return
	}
	s.Equals(in.Rank, out.Rank)
	s.GivenInt(in.Rank, func(s *rules.Solver, rank int) {
		for i := 0; i < rank; i++ {
			s.Equals(out.Shape.At(i), in.Shape.At(rank-1-i))
		}
	})
}

// castOp changes the element type of its input, leaving the shape alone.
type castOp struct {
	to dtypes.DType
}

func (op castOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 1)
	s.Equals(outputs.Len, 1)
	s.Equals(outputs.At(0).DType, op.to)
	s.Equals(outputs.At(0).Shape, inputs.At(0).Shape)
}
