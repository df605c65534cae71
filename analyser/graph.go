// Package analyser propagates tensor facts across a computation graph.
//
// A Graph holds named tensors, each carrying a partial fact tree, shared
// between the node that produces the tensor and the nodes consuming it.
// The Analyser runs every node's inference rules to a fixed point and
// re-runs the neighbours of a node whenever its facts become more
// precise, until the whole graph is stable or a contradiction surfaces.
package analyser

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gomlx/gomlx/types"
	"github.com/gomlx/shapeinfer/facts"
	"github.com/pkg/errors"
)

// Attrs holds the static attributes of a node.
type Attrs map[string]any

// Int returns an integer attribute, or def when absent.
func (a Attrs) Int(key string, def int) int {
	v, found := a[key]
	if !found {
		return def
	}
	i, ok := v.(int)
	if !ok {
		return def
	}
	return i
}

// Ints returns an integer-slice attribute, or def when absent.
func (a Attrs) Ints(key string, def []int) []int {
	v, found := a[key]
	if !found {
		return def
	}
	is, ok := v.([]int)
	if !ok {
		return def
	}
	return is
}

// Str returns a string attribute, or def when absent.
func (a Attrs) Str(key string, def string) string {
	v, found := a[key]
	if !found {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Node is one operation of a computation graph under analysis. Inputs
// and Outputs name the tensors it consumes and produces.
type Node struct {
	Name    string
	OpType  string
	Attrs   Attrs
	Inputs  []string
	Outputs []string
}

func (n *Node) String() string {
	return fmt.Sprintf("%s[%s](%q) -> %q", n.Name, n.OpType, n.Inputs, n.Outputs)
}

// Graph is a computation graph whose tensors carry partial facts.
//
// Tensor facts are shared: the fact tree of a node's output is the very
// fact tree its consumers see as an input, so refining either side
// refines both.
type Graph struct {
	nodes   []*Node
	tensors map[string]*facts.TensorFact

	produced types.Set[string]
	consumed []string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		tensors:  make(map[string]*facts.TensorFact),
		produced: types.MakeSet[string](),
	}
}

// AddInput declares a graph-level input tensor with its initially known
// facts (possibly facts.Unknown()).
func (g *Graph) AddInput(name string, fact *facts.TensorFact) {
	g.tensors[name] = fact
	g.produced.Insert(name)
}

// AddNode appends a node to the graph. The facts of its output tensors
// start unknown; its input tensors must be produced by a graph input or
// another node by the time Validate runs.
func (g *Graph) AddNode(name, opType string, attrs Attrs, inputs, outputs []string) *Node {
	node := &Node{
		Name:    name,
		OpType:  opType,
		Attrs:   attrs,
		Inputs:  slices.Clone(inputs),
		Outputs: slices.Clone(outputs),
	}
	g.nodes = append(g.nodes, node)
	for _, output := range outputs {
		if _, found := g.tensors[output]; !found {
			g.tensors[output] = facts.Unknown()
		}
		g.produced.Insert(output)
	}
	g.consumed = append(g.consumed, inputs...)
	return node
}

// Nodes returns the graph's nodes in insertion order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Tensor returns the current fact tree of a named tensor, or nil if the
// name is unknown.
func (g *Graph) Tensor(name string) *facts.TensorFact { return g.tensors[name] }

// UnresolvedReferences reports tensors consumed by graph nodes that no
// node or graph input produces. References are collected across the
// whole graph rather than failing on the first occurrence.
type UnresolvedReferences struct {
	Names []string
}

// Error implements the error interface.
func (e *UnresolvedReferences) Error() string {
	return fmt.Sprintf("unresolved tensor references: %q", e.Names)
}

// Validate checks that every consumed tensor has a producer. All
// unresolved references are collected and returned as one error.
func (g *Graph) Validate() error {
	missing := types.MakeSet[string]()
	for _, name := range g.consumed {
		if !g.produced.Has(name) {
			missing.Insert(name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	names := slices.Sorted(maps.Keys(missing))
	return errors.WithStack(&UnresolvedReferences{Names: names})
}
