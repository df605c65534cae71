package ops

import (
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/shapeinfer/analyser"
	"github.com/gomlx/shapeinfer/facts"
	"github.com/gomlx/shapeinfer/rules"
	"github.com/pkg/errors"
)

func init() {
	analyser.RegisterOp("Constant", func(node *analyser.Node) (analyser.Op, error) {
		t, ok := node.Attrs["value"].(*tensors.Tensor)
		if !ok {
			return nil, errors.Errorf("Constant node %q requires a \"value\" attribute of type *tensors.Tensor", node.Name)
		}
		return constantOp{fact: facts.FromTensor(t)}, nil
	})
}

// constantOp seeds its single output with the fully determined facts of
// a constant tensor, including element values for integer tensors.
type constantOp struct {
	fact *facts.TensorFact
}

func (op constantOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 0)
	s.Equals(outputs.Len, 1)
	out := outputs.At(0)
	s.Equals(out.DType, op.fact.DType)
	s.Equals(out.Shape, op.fact.Shape)
	s.Equals(out.Value, &op.fact.Value)
}
