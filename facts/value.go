package facts

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// ValueFact is a partial fact about a tensor's integer contents, modelled
// as a sparse tree: a possibly known scalar at this position, plus
// sub-facts for indexed elements, nested to arbitrary depth.
//
// Knowledge is tracked per addressed element; Concrete only refers to the
// scalar at the root of the tree. Whole-tensor concreteness is decided
// against a concrete shape (see TensorFact.ConstValue).
type ValueFact struct {
	Scalar IntFact
	Elems  map[int]*ValueFact
}

// UnknownValue returns the bottom value fact.
func UnknownValue() *ValueFact { return &ValueFact{} }

// ScalarValue returns a value fact with a known scalar at its root.
func ScalarValue(v int) *ValueFact { return &ValueFact{Scalar: KnownInt(v)} }

// Concrete reports whether the scalar at the root of the tree is known.
func (f *ValueFact) Concrete() bool { return f.Scalar.Known }

// At returns the fact about the scalar addressed by the given element
// indices (the root scalar for no indices). It never extends the tree.
func (f *ValueFact) At(indices ...int) IntFact {
	node := f
	for _, i := range indices {
		child, ok := node.Elems[i]
		if !ok {
			return UnknownInt()
		}
		node = child
	}
	return node.Scalar
}

// UnifyAt refines the scalar addressed by the given element indices,
// extending the tree as needed. It reports whether the fact became more
// precise.
func (f *ValueFact) UnifyAt(s IntFact, indices ...int) (bool, error) {
	if !s.Known {
		return false, nil
	}
	node := f
	for _, i := range indices {
		if i < 0 {
			return false, errors.Errorf("negative element index in %v", indices)
		}
		if node.Elems == nil {
			node.Elems = make(map[int]*ValueFact)
		}
		child, ok := node.Elems[i]
		if !ok {
			child = &ValueFact{}
			node.Elems[i] = child
		}
		node = child
	}
	merged, err := node.Scalar.Unify(s)
	if err != nil {
		return false, errors.WithMessagef(err, "element %v", indices)
	}
	changed := !merged.Equal(node.Scalar)
	node.Scalar = merged
	return changed, nil
}

// Unify merges another value fact into f in place. It reports whether f
// became more precise.
func (f *ValueFact) Unify(o *ValueFact) (bool, error) {
	merged, err := f.Scalar.Unify(o.Scalar)
	if err != nil {
		return false, err
	}
	changed := !merged.Equal(f.Scalar)
	f.Scalar = merged
	for i, sub := range o.Elems {
		if sub.empty() {
			continue
		}
		if f.Elems == nil {
			f.Elems = make(map[int]*ValueFact)
		}
		child, ok := f.Elems[i]
		if !ok {
			child = &ValueFact{}
			f.Elems[i] = child
		}
		subChanged, err := child.Unify(sub)
		if err != nil {
			return changed, errors.WithMessagef(err, "element %d", i)
		}
		changed = changed || subChanged
	}
	return changed, nil
}

// Clone returns a deep copy of the value fact.
func (f *ValueFact) Clone() *ValueFact {
	out := &ValueFact{Scalar: f.Scalar}
	if len(f.Elems) > 0 {
		out.Elems = make(map[int]*ValueFact, len(f.Elems))
		for i, sub := range f.Elems {
			out.Elems[i] = sub.Clone()
		}
	}
	return out
}

// Equal reports whether two value facts carry the same knowledge.
func (f *ValueFact) Equal(o *ValueFact) bool {
	if !f.Scalar.Equal(o.Scalar) {
		return false
	}
	for i, sub := range f.Elems {
		other, ok := o.Elems[i]
		if !ok {
			if !sub.empty() {
				return false
			}
			continue
		}
		if !sub.Equal(other) {
			return false
		}
	}
	for i, sub := range o.Elems {
		if _, ok := f.Elems[i]; !ok && !sub.empty() {
			return false
		}
	}
	return true
}

// empty reports whether nothing at all is known below (and at) this node.
func (f *ValueFact) empty() bool {
	if f.Scalar.Known {
		return false
	}
	for _, sub := range f.Elems {
		if !sub.empty() {
			return false
		}
	}
	return true
}

func (f *ValueFact) String() string {
	if len(f.Elems) == 0 {
		if !f.Scalar.Known {
			return "Value(?)"
		}
		return fmt.Sprintf("Value(%d)", f.Scalar.Value)
	}
	parts := make([]string, 0, len(f.Elems)+1)
	if f.Scalar.Known {
		parts = append(parts, fmt.Sprintf(".=%d", f.Scalar.Value))
	}
	for _, i := range slices.Sorted(maps.Keys(f.Elems)) {
		if f.Elems[i].empty() {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d:%s", i, f.Elems[i]))
	}
	return "Value{" + strings.Join(parts, ", ") + "}"
}
