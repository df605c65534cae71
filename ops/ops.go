// Package ops provides the inference rules of the standard operators.
//
// Importing the package (possibly with a blank import) registers every
// operator with the analyser's registry. Each operator declares
// relationships between the facts of a node's inputs and outputs; it
// never computes anything itself.
package ops

import (
	"github.com/gomlx/shapeinfer/analyser"
	"github.com/gomlx/shapeinfer/rules"
)

func init() {
	for _, name := range []string{"Add", "Sub", "Mul", "Div", "Pow"} {
		analyser.RegisterOp(name, func(*analyser.Node) (analyser.Op, error) {
			return binaryOp{}, nil
		})
	}
	for _, name := range []string{"Sqrt", "Exp", "Log", "Neg", "Erf"} {
		analyser.RegisterOp(name, func(*analyser.Node) (analyser.Op, error) {
			return unaryOp{}, nil
		})
	}
	analyser.RegisterOp("MatMul", func(*analyser.Node) (analyser.Op, error) {
		return matMulOp{}, nil
	})
}

// binaryOp is an element-wise operator over two tensors of identical
// shape and element type. There is no implicit broadcasting: mismatched
// shapes are a contradiction, as in strict ONNX mode.
type binaryOp struct{}

func (binaryOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 2)
	s.Equals(outputs.Len, 1)
	s.Equals(inputs.At(0).DType, inputs.At(1).DType, outputs.At(0).DType)
	s.Equals(inputs.At(0).Shape, inputs.At(1).Shape, outputs.At(0).Shape)
}

// unaryOp is an element-wise operator over one tensor.
type unaryOp struct{}

func (unaryOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 1)
	s.Equals(outputs.Len, 1)
	s.Equals(inputs.At(0).DType, outputs.At(0).DType)
	s.Equals(inputs.At(0).Shape, outputs.At(0).Shape)
}

// matMulOp multiplies two rank-2 tensors: [m,k] x [k,n] -> [m,n].
type matMulOp struct{}

func (matMulOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 2)
	s.Equals(outputs.Len, 1)
	lhs, rhs, out := inputs.At(0), inputs.At(1), outputs.At(0)
	s.Equals(lhs.DType, rhs.DType, out.DType)
	s.Equals(lhs.Rank, 2)
	s.Equals(rhs.Rank, 2)
	s.Equals(out.Rank, 2)
	s.Equals(lhs.Shape.At(1), rhs.Shape.At(0))
	s.Equals(out.Shape.At(0), lhs.Shape.At(0))
	s.Equals(out.Shape.At(1), rhs.Shape.At(1))
}
