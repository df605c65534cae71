// Package facts defines partial-knowledge representations of tensor
// properties -- element type, rank, shape, dimensions and values -- and the
// unification operation that combines them.
//
// Each fact kind forms a meet-semilattice: a bottom value meaning "nothing
// known", increasingly precise elements up to a fully determined value, and
// a Unify operation returning the most precise fact entailed by both
// operands. Unify is commutative and associative, so applying it across
// rules and solver passes in any order converges to the same limit. When
// two facts assert mutually exclusive concrete information, Unify fails
// with a Contradiction.
package facts

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Fact is a partial-knowledge value about one tensor property.
type Fact interface {
	// Concrete reports whether the fact is fully determined.
	Concrete() bool
	fmt.Stringer
}

// Contradiction reports that two facts assert mutually exclusive concrete
// information about the same property. It aborts the solve of the node
// being analysed.
type Contradiction struct {
	msg string
}

// Contradictionf creates a Contradiction with a formatted message.
func Contradictionf(format string, args ...any) *Contradiction {
	return &Contradiction{msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (c *Contradiction) Error() string { return c.msg }

// IsContradiction reports whether err is, or wraps, a Contradiction.
func IsContradiction(err error) bool {
	var c *Contradiction
	return errors.As(err, &c)
}

// IntFact is a partial fact about an integer-like property: a tensor
// count, a rank or a scalar value.
type IntFact struct {
	Known bool
	Value int
}

// UnknownInt returns the bottom integer fact.
func UnknownInt() IntFact { return IntFact{} }

// KnownInt returns a concrete integer fact.
func KnownInt(v int) IntFact { return IntFact{Known: true, Value: v} }

// Concrete reports whether the integer is determined.
func (f IntFact) Concrete() bool { return f.Known }

// Unify returns the most precise integer fact entailed by both f and o.
func (f IntFact) Unify(o IntFact) (IntFact, error) {
	if f.Known && o.Known && f.Value != o.Value {
		return IntFact{}, Contradictionf("integers %d and %d are incompatible", f.Value, o.Value)
	}
	if f.Known {
		return f, nil
	}
	return o, nil
}

// Equal reports whether two integer facts carry the same knowledge.
func (f IntFact) Equal(o IntFact) bool { return f == o }

func (f IntFact) String() string {
	if !f.Known {
		return "Int(?)"
	}
	return fmt.Sprintf("Int(%d)", f.Value)
}

// DimFact is a partial fact about one dimension of a tensor shape.
type DimFact struct {
	Known bool
	Value int
}

// UnknownDim returns the bottom dimension fact.
func UnknownDim() DimFact { return DimFact{} }

// KnownDim returns a concrete dimension fact.
func KnownDim(v int) DimFact { return DimFact{Known: true, Value: v} }

// Concrete reports whether the dimension is determined.
func (f DimFact) Concrete() bool { return f.Known }

// Unify returns the most precise dimension fact entailed by both f and o.
func (f DimFact) Unify(o DimFact) (DimFact, error) {
	if f.Known && o.Known && f.Value != o.Value {
		return DimFact{}, Contradictionf("dimensions %d and %d are incompatible", f.Value, o.Value)
	}
	if f.Known {
		return f, nil
	}
	return o, nil
}

// Equal reports whether two dimension facts carry the same knowledge.
func (f DimFact) Equal(o DimFact) bool { return f == o }

func (f DimFact) String() string {
	if !f.Known {
		return "?"
	}
	return fmt.Sprintf("%d", f.Value)
}

// TypeFact is a partial fact about a tensor element type.
type TypeFact struct {
	Known bool
	Value dtypes.DType
}

// UnknownType returns the bottom element-type fact.
func UnknownType() TypeFact { return TypeFact{} }

// KnownType returns a concrete element-type fact.
func KnownType(dtype dtypes.DType) TypeFact { return TypeFact{Known: true, Value: dtype} }

// Concrete reports whether the element type is determined.
func (f TypeFact) Concrete() bool { return f.Known }

// Unify returns the most precise element-type fact entailed by both f and o.
func (f TypeFact) Unify(o TypeFact) (TypeFact, error) {
	if f.Known && o.Known && f.Value != o.Value {
		return TypeFact{}, Contradictionf("element types %s and %s are incompatible", f.Value, o.Value)
	}
	if f.Known {
		return f, nil
	}
	return o, nil
}

// Equal reports whether two element-type facts carry the same knowledge.
func (f TypeFact) Equal(o TypeFact) bool { return f == o }

func (f TypeFact) String() string {
	if !f.Known {
		return "DType(?)"
	}
	return fmt.Sprintf("DType(%s)", f.Value)
}
