package facts

import (
	"strings"

	"github.com/pkg/errors"
)

// ShapeFact is a partial fact about a tensor shape.
//
// A closed shape has a known rank: Dims holds exactly one DimFact per
// axis, each possibly still unknown. An open shape has an unknown rank,
// and Dims holds only the prefix of axes something is known about.
//
// The rank is derived from the shape rather than stored separately, so
// refining a dimension or the rank always refines the same underlying
// fact.
type ShapeFact struct {
	Open bool
	Dims []DimFact
}

// UnknownShape returns the bottom shape fact: open, no known axes.
func UnknownShape() ShapeFact { return ShapeFact{Open: true} }

// ClosedShape returns a shape fact of known rank with the given per-axis
// facts.
func ClosedShape(dims ...DimFact) ShapeFact { return ShapeFact{Dims: dims} }

// ShapeOf returns a fully determined shape fact.
func ShapeOf(dims ...int) ShapeFact {
	f := ShapeFact{Dims: make([]DimFact, len(dims))}
	for i, d := range dims {
		f.Dims[i] = KnownDim(d)
	}
	return f
}

// Rank returns the rank as an integer fact, known iff the shape is closed.
func (f ShapeFact) Rank() IntFact {
	if f.Open {
		return UnknownInt()
	}
	return KnownInt(len(f.Dims))
}

// Dim returns the fact about axis i. Axes beyond the known prefix of an
// open shape are unknown.
func (f ShapeFact) Dim(i int) DimFact {
	if i < len(f.Dims) {
		return f.Dims[i]
	}
	return UnknownDim()
}

// Concrete reports whether the rank and every dimension are determined.
func (f ShapeFact) Concrete() bool {
	if f.Open {
		return false
	}
	for _, d := range f.Dims {
		if !d.Known {
			return false
		}
	}
	return true
}

// Dimensions returns the concrete dimensions. It must only be called on a
// concrete shape fact.
func (f ShapeFact) Dimensions() []int {
	dims := make([]int, len(f.Dims))
	for i, d := range f.Dims {
		dims[i] = d.Value
	}
	return dims
}

// Unify returns the most precise shape fact entailed by both f and o.
func (f ShapeFact) Unify(o ShapeFact) (ShapeFact, error) {
	if !f.Open && !o.Open && len(f.Dims) != len(o.Dims) {
		return ShapeFact{}, Contradictionf("shapes of rank %d and %d are incompatible", len(f.Dims), len(o.Dims))
	}
	if !f.Open && len(o.Dims) > len(f.Dims) {
		return ShapeFact{}, Contradictionf("shape has rank %d, but axis %d is constrained", len(f.Dims), len(o.Dims)-1)
	}
	if !o.Open && len(f.Dims) > len(o.Dims) {
		return ShapeFact{}, Contradictionf("shape has rank %d, but axis %d is constrained", len(o.Dims), len(f.Dims)-1)
	}
	n := max(len(f.Dims), len(o.Dims))
	out := ShapeFact{Open: f.Open && o.Open, Dims: make([]DimFact, n)}
	for i := range out.Dims {
		d, err := f.Dim(i).Unify(o.Dim(i))
		if err != nil {
			return ShapeFact{}, errors.WithMessagef(err, "axis %d", i)
		}
		out.Dims[i] = d
	}
	return out.normalized(), nil
}

// UnifyRank refines the shape with a rank fact, closing it when the rank
// becomes known.
func (f ShapeFact) UnifyRank(r IntFact) (ShapeFact, error) {
	if !r.Known {
		return f, nil
	}
	if r.Value < 0 {
		return ShapeFact{}, Contradictionf("rank %d is negative", r.Value)
	}
	return f.Unify(ShapeFact{Dims: make([]DimFact, r.Value)})
}

// UnifyDim refines the fact about axis i.
func (f ShapeFact) UnifyDim(i int, d DimFact) (ShapeFact, error) {
	if !f.Open && i >= len(f.Dims) {
		return ShapeFact{}, Contradictionf("axis %d out of range for shape of rank %d", i, len(f.Dims))
	}
	n := max(len(f.Dims), i+1)
	out := ShapeFact{Open: f.Open, Dims: make([]DimFact, n)}
	copy(out.Dims, f.Dims)
	merged, err := out.Dims[i].Unify(d)
	if err != nil {
		return ShapeFact{}, errors.WithMessagef(err, "axis %d", i)
	}
	out.Dims[i] = merged
	return out.normalized(), nil
}

// normalized trims trailing unknown axes of an open shape, so that shape
// facts carrying the same knowledge compare equal.
func (f ShapeFact) normalized() ShapeFact {
	if !f.Open {
		return f
	}
	n := len(f.Dims)
	for n > 0 && !f.Dims[n-1].Known {
		n--
	}
	f.Dims = f.Dims[:n]
	return f
}

// Equal reports whether two shape facts carry the same knowledge.
func (f ShapeFact) Equal(o ShapeFact) bool {
	if f.Open != o.Open || len(f.Dims) != len(o.Dims) {
		return false
	}
	for i, d := range f.Dims {
		if !d.Equal(o.Dims[i]) {
			return false
		}
	}
	return true
}

func (f ShapeFact) String() string {
	parts := make([]string, 0, len(f.Dims)+1)
	for _, d := range f.Dims {
		parts = append(parts, d.String())
	}
	if f.Open {
		parts = append(parts, "...")
	}
	return "Shape(" + strings.Join(parts, ", ") + ")"
}
