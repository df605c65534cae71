// Package rules implements the symbolic addressing layer and the rule
// solver used to infer tensor facts for one node of a computation graph.
//
// Operators express relationships between the properties of a node's
// inputs and outputs by writing rules over proxies: typed handles that
// carry the symbolic path of a property without holding the fact itself.
// The solver evaluates the rules against a Context holding the node's
// actual fact trees, unifying every refinement in, until a pass makes no
// further progress (a fixed point) or two facts contradict each other.
package rules

import (
	"slices"
	"strconv"
	"strings"
)

// Path is the symbolic address of a value inside a node's fact trees: an
// ordered sequence of signed integers.
//
// The first component selects the node's inputs (0) or outputs (1); the
// second selects a tensor by index, or the list length with -1. Within a
// tensor, 0 addresses the element type, 1 the rank, 2 the shape and 3 the
// value; further components index shape axes or nested value elements,
// with a trailing -1 addressing the value's root scalar.
//
// Take the inputs[0].shape[1] proxy for instance: it represents the
// second dimension of the shape of the first input, and its path is
// [0,0,2,1].
type Path []int

// Field selectors within a tensor fact.
const (
	FieldDType = 0
	FieldRank  = 1
	FieldShape = 2
	FieldValue = 3

	// LenSelector addresses a tensor list's length, or a value's root
	// scalar, when appended to the list/value path.
	LenSelector = -1
)

// Concat returns a new path extended by the given components. The
// receiver is never modified.
func (p Path) Concat(components ...int) Path {
	out := make(Path, 0, len(p)+len(components))
	out = append(out, p...)
	return append(out, components...)
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(o Path) bool { return slices.Equal(p, o) }

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, c := range p {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
