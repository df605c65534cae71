package facts

import (
	"fmt"

	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// TensorFact groups the partial facts known about one tensor: its element
// type, its shape (from which the rank is derived) and its integer
// contents.
//
// Always create tensor facts through Unknown, FromShape or FromTensor:
// the zero value carries a closed rank-0 shape, not an unknown one.
type TensorFact struct {
	DType TypeFact
	Shape ShapeFact
	Value ValueFact
}

// Unknown returns a tensor fact with nothing known.
func Unknown() *TensorFact {
	return &TensorFact{Shape: UnknownShape()}
}

// FromShape returns a tensor fact with the element type and shape taken
// from a concrete shape, and unknown contents.
func FromShape(shape shapes.Shape) *TensorFact {
	return &TensorFact{
		DType: KnownType(shape.DType),
		Shape: ShapeOf(shape.Dimensions...),
	}
}

// FromTensor returns a fully determined tensor fact for a constant
// tensor. For integer tensors (Int32, Int64) the contents become value
// facts as well, so rules can read individual elements.
func FromTensor(t *tensors.Tensor) *TensorFact {
	f := FromShape(t.Shape())
	var flat []int
	switch t.DType() {
	case dtypes.Int32:
		tensors.ConstFlatData(t, func(data []int32) {
			flat = make([]int, len(data))
			for i, v := range data {
				flat[i] = int(v)
			}
		})
	case dtypes.Int64:
		tensors.ConstFlatData(t, func(data []int64) {
			flat = make([]int, len(data))
			for i, v := range data {
				flat[i] = int(v)
			}
		})
	default:
		return f
	}
	fillValue(&f.Value, t.Shape().Dimensions, flat)
	return f
}

// fillValue populates a value-fact tree from row-major flat data.
func fillValue(v *ValueFact, dims []int, flat []int) {
	if len(dims) == 0 {
		v.Scalar = KnownInt(flat[0])
		return
	}
	if dims[0] == 0 || len(flat) == 0 {
		return
	}
	stride := len(flat) / dims[0]
	v.Elems = make(map[int]*ValueFact, dims[0])
	for i := 0; i < dims[0]; i++ {
		child := &ValueFact{}
		v.Elems[i] = child
		fillValue(child, dims[1:], flat[i*stride:(i+1)*stride])
	}
}

// Rank returns the tensor's rank fact, derived from its shape.
func (f *TensorFact) Rank() IntFact { return f.Shape.Rank() }

// Unify merges another tensor fact into f in place. It reports whether f
// became more precise.
func (f *TensorFact) Unify(o *TensorFact) (bool, error) {
	dtype, err := f.DType.Unify(o.DType)
	if err != nil {
		return false, err
	}
	shape, err := f.Shape.Unify(o.Shape)
	if err != nil {
		return false, err
	}
	changed := !dtype.Equal(f.DType) || !shape.Equal(f.Shape)
	f.DType = dtype
	f.Shape = shape
	valueChanged, err := f.Value.Unify(&o.Value)
	if err != nil {
		return changed, err
	}
	return changed || valueChanged, nil
}

// ConcreteShape exports a fully determined element type and shape as a
// shapes.Shape for downstream consumers. It fails while either is still
// partially unknown.
func (f *TensorFact) ConcreteShape() (shapes.Shape, error) {
	if !f.DType.Known {
		return shapes.Shape{}, errors.Errorf("element type still unknown in %s", f)
	}
	if !f.Shape.Concrete() {
		return shapes.Shape{}, errors.Errorf("shape still unknown in %s", f)
	}
	return shapes.Make(f.DType.Value, f.Shape.Dimensions()...), nil
}

// ConstValue materializes a fully determined integer tensor fact as a
// tensor. It fails while the element type, the shape or any element is
// still unknown, or for non-integer element types.
func (f *TensorFact) ConstValue() (*tensors.Tensor, error) {
	shape, err := f.ConcreteShape()
	if err != nil {
		return nil, err
	}
	dims := shape.Dimensions
	if shape.DType != dtypes.Int32 && shape.DType != dtypes.Int64 {
		return nil, errors.Errorf("cannot materialize value of a %s tensor", shape.DType)
	}
	flat := make([]int, 0, shape.Size())
	indices := make([]int, len(dims))
	for shape.Size() > 0 {
		elem := f.Value.At(indices...)
		if !elem.Known {
			return nil, errors.Errorf("element %v still unknown in %s", indices, f)
		}
		flat = append(flat, elem.Value)
		axis := len(dims) - 1
		for ; axis >= 0; axis-- {
			indices[axis]++
			if indices[axis] < dims[axis] {
				break
			}
			indices[axis] = 0
		}
		if axis < 0 {
			break
		}
	}
	switch shape.DType {
	case dtypes.Int32:
		data := make([]int32, len(flat))
		for i, v := range flat {
			data[i] = int32(v)
		}
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	case dtypes.Int64:
		data := make([]int64, len(flat))
		for i, v := range flat {
			data[i] = int64(v)
		}
		return tensors.FromFlatDataAndDimensions(data, dims...), nil
	default:
		return nil, errors.Errorf("cannot materialize value of a %s tensor", shape.DType)
	}
}

func (f *TensorFact) String() string {
	return fmt.Sprintf("Tensor{%s, %s, %s}", f.DType, f.Shape, &f.Value)
}

// Concrete reports whether the element type and shape are determined.
// Contents are tracked per element and do not take part in this.
func (f *TensorFact) Concrete() bool {
	return f.DType.Known && f.Shape.Concrete()
}
