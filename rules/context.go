package rules

import (
	"github.com/gomlx/shapeinfer/facts"
	"github.com/pkg/errors"
)

// Context holds the mutable fact state for one node under analysis: the
// fact trees of its inputs and outputs, addressed by Path.
//
// The solver owns the context exclusively for the duration of Solve. The
// version counter increments every time a fact becomes strictly more
// precise; the graph driver uses it to detect whether a solve made any
// progress.
type Context struct {
	Inputs  []*facts.TensorFact
	Outputs []*facts.TensorFact

	version int
}

// NewContext creates the solve context over a node's input and output
// fact trees. The trees are refined in place.
func NewContext(inputs, outputs []*facts.TensorFact) *Context {
	return &Context{Inputs: inputs, Outputs: outputs}
}

// Version returns a counter incremented on every fact refinement.
func (ctx *Context) Version() int { return ctx.version }

// list resolves the root component of a path into the input or output
// fact list.
func (ctx *Context) list(p Path) ([]*facts.TensorFact, error) {
	if len(p) == 0 {
		return nil, errors.Errorf("empty path")
	}
	switch p[0] {
	case 0:
		return ctx.Inputs, nil
	case 1:
		return ctx.Outputs, nil
	default:
		return nil, errors.Errorf("path %s does not start with the inputs (0) or outputs (1) selector", p)
	}
}

// tensor resolves the first two components of a path into one tensor
// fact. Out-of-range indices are plain errors, not contradictions: the
// proxy layer does not bounds-check, so a bad index surfaces here, when a
// rule dereferences it.
func (ctx *Context) tensor(p Path) (*facts.TensorFact, error) {
	list, err := ctx.list(p)
	if err != nil {
		return nil, err
	}
	if len(p) < 2 {
		return nil, errors.Errorf("path %s does not address a tensor", p)
	}
	i := p[1]
	if i < 0 || i >= len(list) {
		return nil, errors.Errorf("path %s: tensor index %d out of range for %d tensors", p, i, len(list))
	}
	return list[i], nil
}

// Fact returns the current fact addressed by a path. The dynamic type
// depends on the addressed property: facts.IntFact for lengths, ranks
// and value scalars, facts.TypeFact for element types, facts.DimFact for
// shape dimensions, facts.ShapeFact for whole shapes, *facts.ValueFact
// for whole values and *facts.TensorFact for whole tensors.
func (ctx *Context) Fact(p Path) (facts.Fact, error) {
	list, err := ctx.list(p)
	if err != nil {
		return nil, err
	}
	if len(p) >= 2 && p[1] == LenSelector {
		if len(p) > 2 {
			return nil, errors.Errorf("path %s addresses below a list length", p)
		}
		return facts.KnownInt(len(list)), nil
	}
	t, err := ctx.tensor(p)
	if err != nil {
		return nil, err
	}
	if len(p) == 2 {
		return t, nil
	}
	switch p[2] {
	case FieldDType:
		if len(p) != 3 {
			return nil, errors.Errorf("path %s addresses below an element type", p)
		}
		return t.DType, nil
	case FieldRank:
		if len(p) != 3 {
			return nil, errors.Errorf("path %s addresses below a rank", p)
		}
		return t.Rank(), nil
	case FieldShape:
		switch len(p) {
		case 3:
			return t.Shape, nil
		case 4:
			if p[3] < 0 {
				return nil, errors.Errorf("path %s: negative shape axis", p)
			}
			return t.Shape.Dim(p[3]), nil
		default:
			return nil, errors.Errorf("path %s addresses below a shape dimension", p)
		}
	case FieldValue:
		rest := p[3:]
		if len(rest) == 0 {
			return &t.Value, nil
		}
		if rest[0] == LenSelector {
			if len(rest) > 1 {
				return nil, errors.Errorf("path %s addresses below a value root", p)
			}
			return t.Value.At(), nil
		}
		for _, c := range rest {
			if c < 0 {
				return nil, errors.Errorf("path %s: negative value element index", p)
			}
		}
		return t.Value.At(rest...), nil
	default:
		return nil, errors.Errorf("path %s: invalid field selector %d", p, p[2])
	}
}

// Unify refines the fact addressed by a path with f, keeping the most
// precise common refinement. It reports whether the stored fact became
// strictly more precise, and fails with a Contradiction when the two
// facts assert incompatible concrete information.
func (ctx *Context) Unify(p Path, f facts.Fact) (bool, error) {
	changed, err := ctx.unify(p, f)
	if err != nil {
		return false, err
	}
	if changed {
		ctx.version++
	}
	return changed, nil
}

func (ctx *Context) unify(p Path, f facts.Fact) (bool, error) {
	list, err := ctx.list(p)
	if err != nil {
		return false, err
	}
	if len(p) >= 2 && p[1] == LenSelector {
		if len(p) > 2 {
			return false, errors.Errorf("path %s addresses below a list length", p)
		}
		want, ok := asIntFact(f)
		if !ok {
			return false, errors.Errorf("path %s addresses a length, but got %s", p, f)
		}
		// The length of the list is structural: it can be checked, never
		// refined.
		if _, err := facts.KnownInt(len(list)).Unify(want); err != nil {
			return false, err
		}
		return false, nil
	}
	t, err := ctx.tensor(p)
	if err != nil {
		return false, err
	}
	if len(p) == 2 {
		o, ok := f.(*facts.TensorFact)
		if !ok {
			return false, errors.Errorf("path %s addresses a tensor, but got %s", p, f)
		}
		return t.Unify(o)
	}
	switch p[2] {
	case FieldDType:
		if len(p) != 3 {
			return false, errors.Errorf("path %s addresses below an element type", p)
		}
		o, ok := f.(facts.TypeFact)
		if !ok {
			return false, errors.Errorf("path %s addresses an element type, but got %s", p, f)
		}
		merged, err := t.DType.Unify(o)
		if err != nil {
			return false, err
		}
		changed := !merged.Equal(t.DType)
		t.DType = merged
		return changed, nil
	case FieldRank:
		if len(p) != 3 {
			return false, errors.Errorf("path %s addresses below a rank", p)
		}
		o, ok := asIntFact(f)
		if !ok {
			return false, errors.Errorf("path %s addresses a rank, but got %s", p, f)
		}
		merged, err := t.Shape.UnifyRank(o)
		if err != nil {
			return false, err
		}
		changed := !merged.Equal(t.Shape)
		t.Shape = merged
		return changed, nil
	case FieldShape:
		switch len(p) {
		case 3:
			o, ok := f.(facts.ShapeFact)
			if !ok {
				return false, errors.Errorf("path %s addresses a shape, but got %s", p, f)
			}
			merged, err := t.Shape.Unify(o)
			if err != nil {
				return false, err
			}
			changed := !merged.Equal(t.Shape)
			t.Shape = merged
			return changed, nil
		case 4:
			if p[3] < 0 {
				return false, errors.Errorf("path %s: negative shape axis", p)
			}
			o, ok := asDimFact(f)
			if !ok {
				return false, errors.Errorf("path %s addresses a dimension, but got %s", p, f)
			}
			merged, err := t.Shape.UnifyDim(p[3], o)
			if err != nil {
				return false, err
			}
			changed := !merged.Equal(t.Shape)
			t.Shape = merged
			return changed, nil
		default:
			return false, errors.Errorf("path %s addresses below a shape dimension", p)
		}
	case FieldValue:
		rest := p[3:]
		if len(rest) == 0 {
			o, ok := f.(*facts.ValueFact)
			if !ok {
				return false, errors.Errorf("path %s addresses a value, but got %s", p, f)
			}
			return t.Value.Unify(o)
		}
		o, ok := asIntFact(f)
		if !ok {
			return false, errors.Errorf("path %s addresses a value scalar, but got %s", p, f)
		}
		if rest[0] == LenSelector {
			if len(rest) > 1 {
				return false, errors.Errorf("path %s addresses below a value root", p)
			}
			return t.Value.UnifyAt(o)
		}
		for _, c := range rest {
			if c < 0 {
				return false, errors.Errorf("path %s: negative value element index", p)
			}
		}
		return t.Value.UnifyAt(o, rest...)
	default:
		return false, errors.Errorf("path %s: invalid field selector %d", p, p[2])
	}
}

// asIntFact coerces integer-like facts: dimensions, value scalars, ranks
// and lengths all unify with each other as plain integers.
func asIntFact(f facts.Fact) (facts.IntFact, bool) {
	switch v := f.(type) {
	case facts.IntFact:
		return v, true
	case facts.DimFact:
		return facts.IntFact{Known: v.Known, Value: v.Value}, true
	default:
		return facts.IntFact{}, false
	}
}

// asDimFact is the converse coercion of asIntFact.
func asDimFact(f facts.Fact) (facts.DimFact, bool) {
	switch v := f.(type) {
	case facts.DimFact:
		return v, true
	case facts.IntFact:
		return facts.DimFact{Known: v.Known, Value: v.Value}, true
	default:
		return facts.DimFact{}, false
	}
}
