package ops

import (
	"github.com/chewxy/math32"
	"github.com/gomlx/shapeinfer/analyser"
	"github.com/gomlx/shapeinfer/rules"
	"github.com/pkg/errors"
)

func init() {
	for _, name := range []string{"MaxPool", "AveragePool"} {
		analyser.RegisterOp(name, func(node *analyser.Node) (analyser.Op, error) {
			return newPoolOp(node)
		})
	}
}

// poolOp is a 2D pooling operator over NCHW tensors. The batch and
// channel dimensions pass through; the spatial output dimensions follow
// the ONNX formulas, computed in float32 like the reference:
//
//	VALID:      floor((in - kernel) / stride) + 1
//	SAME_*:     ceil(in / stride)
type poolOp struct {
	kernel  []int
	strides []int
	samePad bool
}

func newPoolOp(node *analyser.Node) (analyser.Op, error) {
	kernel := node.Attrs.Ints("kernel_shape", nil)
	if len(kernel) != 2 {
		return nil, errors.Errorf("pooling node %q requires a 2-element \"kernel_shape\" attribute, got %v", node.Name, kernel)
	}
	strides := node.Attrs.Ints("strides", []int{1, 1})
	if len(strides) != 2 {
		return nil, errors.Errorf("pooling node %q requires 2 strides, got %v", node.Name, strides)
	}
	autoPad := node.Attrs.Str("auto_pad", "VALID")
	switch autoPad {
	case "VALID", "NOTSET":
		return poolOp{kernel: kernel, strides: strides}, nil
	case "SAME_UPPER", "SAME_LOWER":
		return poolOp{kernel: kernel, strides: strides, samePad: true}, nil
	default:
		return nil, errors.Errorf("pooling node %q: unsupported auto_pad %q", node.Name, autoPad)
	}
}

func (op poolOp) InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy) {
	s.Equals(inputs.Len, 1)
	s.Equals(outputs.Len, 1)
	in, out := inputs.At(0), outputs.At(0)
	s.Equals(in.DType, out.DType)
	s.Equals(in.Rank, 4)
	s.Equals(out.Rank, 4)
	s.Equals(out.Shape.At(0), in.Shape.At(0))
	s.Equals(out.Shape.At(1), in.Shape.At(1))
	for spatial := 0; spatial < 2; spatial++ {
		kernel := float32(op.kernel[spatial])
		stride := float32(op.strides[spatial])
		s.ComputedInt(out.Shape.At(2+spatial), func(dims []int) int {
			in := float32(dims[0])
			if op.samePad {
				return int(math32.Ceil(in / stride))
			}
			return int(math32.Floor((in-kernel)/stride)) + 1
		}, in.Shape.At(2+spatial))
	}
}
