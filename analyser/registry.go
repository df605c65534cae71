package analyser

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/shapeinfer/rules"
	"github.com/pkg/errors"
)

// Op declares the inference rules of one operator type: relationships
// between the facts of a node's inputs and outputs, written over proxies
// rooted at the node's input and output lists.
type Op interface {
	// InferRules registers the operator's rules on the solver.
	InferRules(s *rules.Solver, inputs, outputs *rules.TensorsProxy)
}

// OpBuilder constructs an operator from a node, typically reading its
// static attributes.
type OpBuilder func(node *Node) (Op, error)

var opRegistry = map[string]OpBuilder{}

// RegisterOp registers the builder for an operator type. It panics if
// the type is already registered; operator packages register in init.
func RegisterOp(opType string, build OpBuilder) {
	if _, found := opRegistry[opType]; found {
		exceptions.Panicf("analyser: operator type %q registered twice", opType)
	}
	opRegistry[opType] = build
}

// opFor builds the operator of a node from the registry.
func opFor(node *Node) (Op, error) {
	build, found := opRegistry[node.OpType]
	if !found {
		return nil, errors.Errorf("no inference rules registered for operator type %q (node %q)", node.OpType, node.Name)
	}
	op, err := build(node)
	if err != nil {
		return nil, errors.WithMessagef(err, "building operator for node %q", node.Name)
	}
	return op, nil
}
