package analyser

import (
	"slices"

	"github.com/gomlx/gomlx/types"
	"github.com/gomlx/shapeinfer/facts"
	"github.com/gomlx/shapeinfer/rules"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Analyser runs fact inference over a whole graph.
//
// Each node gets one solver (built from its operator's rules) and one
// solve context over the shared tensor facts; because producer and
// consumers share the same fact trees, a refinement made while solving
// one node is immediately visible to its neighbours, which the worklist
// then revisits.
type Analyser struct {
	graph *Graph

	continueOnContradiction bool
	nodeErrors              map[string]error

	solvers    map[*Node]*rules.Solver
	contexts   map[*Node]*rules.Context
	neighbours map[*Node][]*Node
}

// Option configures an Analyser.
type Option func(*Analyser)

// ContinueOnContradiction makes the analyser record a node's
// contradiction and keep refining the rest of the graph, instead of
// aborting the analysis on the first one. Recorded errors are available
// through NodeErrors.
func ContinueOnContradiction() Option {
	return func(a *Analyser) { a.continueOnContradiction = true }
}

// New creates an analyser for a graph.
func New(g *Graph, options ...Option) *Analyser {
	a := &Analyser{
		graph:      g,
		nodeErrors: make(map[string]error),
	}
	for _, option := range options {
		option(a)
	}
	return a
}

// NodeErrors returns the contradictions recorded per node name when the
// analyser runs with ContinueOnContradiction.
func (a *Analyser) NodeErrors() map[string]error { return a.nodeErrors }

// prepare validates the graph and builds the per-node solvers, contexts
// and neighbour lists.
func (a *Analyser) prepare() error {
	if err := a.graph.Validate(); err != nil {
		return err
	}
	a.solvers = make(map[*Node]*rules.Solver, len(a.graph.nodes))
	a.contexts = make(map[*Node]*rules.Context, len(a.graph.nodes))
	a.neighbours = make(map[*Node][]*Node, len(a.graph.nodes))

	touching := make(map[string][]*Node)
	for _, node := range a.graph.nodes {
		op, err := opFor(node)
		if err != nil {
			return err
		}
		s := rules.NewSolver()
		op.InferRules(s, rules.Inputs(), rules.Outputs())
		a.solvers[node] = s

		inputFacts := make([]*facts.TensorFact, len(node.Inputs))
		for i, name := range node.Inputs {
			inputFacts[i] = a.graph.tensors[name]
		}
		outputFacts := make([]*facts.TensorFact, len(node.Outputs))
		for i, name := range node.Outputs {
			outputFacts[i] = a.graph.tensors[name]
		}
		a.contexts[node] = rules.NewContext(inputFacts, outputFacts)

		for _, name := range node.Inputs {
			touching[name] = append(touching[name], node)
		}
		for _, name := range node.Outputs {
			touching[name] = append(touching[name], node)
		}
	}

	// Neighbours of a node: every other node sharing one of its tensors.
	// Rules refine inputs as well as outputs, so propagation runs both
	// ways along each edge.
	for _, node := range a.graph.nodes {
		seen := types.SetWith(node)
		for _, name := range append(slices.Clone(node.Inputs), node.Outputs...) {
			for _, other := range touching[name] {
				if seen.Has(other) {
					continue
				}
				seen.Insert(other)
				a.neighbours[node] = append(a.neighbours[node], other)
			}
		}
	}
	return nil
}

// Analyse validates the graph and propagates facts until no node's solve
// refines anything further, or a contradiction aborts it (per the
// configured policy).
func (a *Analyser) Analyse() error {
	if err := a.prepare(); err != nil {
		return err
	}

	worklist := make([]*Node, len(a.graph.nodes))
	copy(worklist, a.graph.nodes)
	queued := types.MakeSet[*Node]()
	for _, node := range worklist {
		queued.Insert(node)
	}
	failed := types.MakeSet[*Node]()

	for len(worklist) > 0 {
		node := worklist[0]
		worklist = worklist[1:]
		delete(queued, node)
		if failed.Has(node) {
			continue
		}

		ctx := a.contexts[node]
		before := ctx.Version()
		err := a.solvers[node].Solve(ctx)
		if err != nil {
			err = errors.WithMessagef(err, "analysing node %q (%s)", node.Name, node.OpType)
			if !facts.IsContradiction(err) || !a.continueOnContradiction {
				return err
			}
			klog.V(1).Infof("analyser: node %q failed, continuing: %v", node.Name, err)
			a.nodeErrors[node.Name] = err
			failed.Insert(node)
			continue
		}
		if ctx.Version() == before {
			continue
		}
		klog.V(1).Infof("analyser: node %q refined facts, revisiting %d neighbours", node.Name, len(a.neighbours[node]))
		for _, neighbour := range a.neighbours[node] {
			if queued.Has(neighbour) || failed.Has(neighbour) {
				continue
			}
			queued.Insert(neighbour)
			worklist = append(worklist, neighbour)
		}
	}
	return nil
}
