package rules

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/shapeinfer/facts"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Rule relates facts addressed by comparable proxies. The solver applies
// every rule repeatedly until none refines a fact further.
type Rule interface {
	// Apply reads the facts the rule references from ctx and unifies any
	// refinement back in. It reports whether some fact became strictly
	// more precise. Rules may register follow-up rules on the solver.
	Apply(ctx *Context, s *Solver) (bool, error)
	fmt.Stringer
}

// operand is either a comparable proxy or a literal fact.
type operand struct {
	proxy Comparable
	lit   facts.Fact
}

// operandOf coerces rule arguments: comparable proxies, int and
// dtypes.DType literals, []int shape literals, or explicit facts.
func operandOf(v any) operand {
	switch v := v.(type) {
	case Comparable:
		return operand{proxy: v}
	case int:
		return operand{lit: facts.KnownInt(v)}
	case dtypes.DType:
		return operand{lit: facts.KnownType(v)}
	case []int:
		return operand{lit: facts.ShapeOf(v...)}
	case facts.Fact:
		return operand{lit: v}
	default:
		exceptions.Panicf("rules: %T cannot be used as a rule operand (want a comparable proxy, int, dtypes.DType, []int or facts.Fact)", v)
		panic(nil) // for lint benefit.
	}
}

func (o operand) fact(ctx *Context) (facts.Fact, error) {
	if o.proxy != nil {
		return ctx.Fact(o.proxy.Path())
	}
	return o.lit, nil
}

func (o operand) String() string {
	if o.proxy != nil {
		return o.proxy.Path().String()
	}
	return o.lit.String()
}

// unifyFacts dispatches unification over the fact kinds. Integer-like
// kinds (integers, dimensions) unify with each other; everything else
// must match kinds exactly.
func unifyFacts(a, b facts.Fact) (facts.Fact, error) {
	if ai, ok := asIntFact(a); ok {
		bi, ok := asIntFact(b)
		if !ok {
			return nil, errors.Errorf("cannot unify %s with %s", a, b)
		}
		return ai.Unify(bi)
	}
	switch av := a.(type) {
	case facts.TypeFact:
		bv, ok := b.(facts.TypeFact)
		if !ok {
			return nil, errors.Errorf("cannot unify %s with %s", a, b)
		}
		return av.Unify(bv)
	case facts.ShapeFact:
		bv, ok := b.(facts.ShapeFact)
		if !ok {
			return nil, errors.Errorf("cannot unify %s with %s", a, b)
		}
		return av.Unify(bv)
	case *facts.ValueFact:
		bv, ok := b.(*facts.ValueFact)
		if !ok {
			return nil, errors.Errorf("cannot unify %s with %s", a, b)
		}
		merged := av.Clone()
		if _, err := merged.Unify(bv); err != nil {
			return nil, err
		}
		return merged, nil
	default:
		return nil, errors.Errorf("cannot unify %s with %s", a, b)
	}
}

// equalsRule refines every referenced path to the meet of all operand
// facts. With two operands this is plain symmetric equality.
type equalsRule struct {
	operands []operand
}

func (r *equalsRule) Apply(ctx *Context, _ *Solver) (bool, error) {
	merged, err := r.operands[0].fact(ctx)
	if err != nil {
		return false, err
	}
	for _, o := range r.operands[1:] {
		f, err := o.fact(ctx)
		if err != nil {
			return false, err
		}
		merged, err = unifyFacts(merged, f)
		if err != nil {
			return false, err
		}
	}
	changed := false
	for _, o := range r.operands {
		if o.proxy == nil {
			continue
		}
		c, err := ctx.Unify(o.proxy.Path(), merged)
		if err != nil {
			return changed, errors.WithMessagef(err, "at %s", o.proxy.Path())
		}
		changed = changed || c
	}
	return changed, nil
}

func (r *equalsRule) String() string {
	parts := make([]string, len(r.operands))
	for i, o := range r.operands {
		parts[i] = o.String()
	}
	return "equals(" + strings.Join(parts, ", ") + ")"
}

// givenIntRule invokes a callback once the referenced integer fact
// becomes concrete. The callback typically registers follow-up rules,
// which join the rule set from the current pass on. It fires at most
// once.
type givenIntRule struct {
	proxy Comparable
	fn    func(s *Solver, v int)
	fired bool
}

func (r *givenIntRule) Apply(ctx *Context, s *Solver) (bool, error) {
	if r.fired {
		return false, nil
	}
	f, err := ctx.Fact(r.proxy.Path())
	if err != nil {
		return false, err
	}
	v, ok := asIntFact(f)
	if !ok {
		return false, errors.Errorf("given at %s expects an integer fact, got %s", r.proxy.Path(), f)
	}
	if !v.Known {
		return false, nil
	}
	r.fired = true
	r.fn(s, v.Value)
	return true, nil
}

func (r *givenIntRule) String() string {
	return fmt.Sprintf("given(%s)", r.proxy.Path())
}

// givenIntsRule fires once every referenced integer fact is concrete.
type givenIntsRule struct {
	proxies []Comparable
	fn      func(s *Solver, values []int)
	fired   bool
}

func (r *givenIntsRule) Apply(ctx *Context, s *Solver) (bool, error) {
	if r.fired {
		return false, nil
	}
	values := make([]int, len(r.proxies))
	for i, p := range r.proxies {
		f, err := ctx.Fact(p.Path())
		if err != nil {
			return false, err
		}
		v, ok := asIntFact(f)
		if !ok {
			return false, errors.Errorf("given at %s expects an integer fact, got %s", p.Path(), f)
		}
		if !v.Known {
			return false, nil
		}
		values[i] = v.Value
	}
	r.fired = true
	r.fn(s, values)
	return true, nil
}

func (r *givenIntsRule) String() string {
	parts := make([]string, len(r.proxies))
	for i, p := range r.proxies {
		parts[i] = p.Path().String()
	}
	return "given(" + strings.Join(parts, ", ") + ")"
}

// givenTypeRule invokes a callback once the referenced element type
// becomes concrete.
type givenTypeRule struct {
	proxy *TypeProxy
	fn    func(s *Solver, dtype dtypes.DType)
	fired bool
}

func (r *givenTypeRule) Apply(ctx *Context, s *Solver) (bool, error) {
	if r.fired {
		return false, nil
	}
	f, err := ctx.Fact(r.proxy.Path())
	if err != nil {
		return false, err
	}
	v, ok := f.(facts.TypeFact)
	if !ok {
		return false, errors.Errorf("given at %s expects an element-type fact, got %s", r.proxy.Path(), f)
	}
	if !v.Known {
		return false, nil
	}
	r.fired = true
	r.fn(s, v.Value)
	return true, nil
}

func (r *givenTypeRule) String() string {
	return fmt.Sprintf("given(%s)", r.proxy.Path())
}

// givenShapeRule invokes a callback once the referenced shape is fully
// determined.
type givenShapeRule struct {
	proxy *ShapeProxy
	fn    func(s *Solver, dims []int)
	fired bool
}

func (r *givenShapeRule) Apply(ctx *Context, s *Solver) (bool, error) {
	if r.fired {
		return false, nil
	}
	f, err := ctx.Fact(r.proxy.Path())
	if err != nil {
		return false, err
	}
	v, ok := f.(facts.ShapeFact)
	if !ok {
		return false, errors.Errorf("given at %s expects a shape fact, got %s", r.proxy.Path(), f)
	}
	if !v.Concrete() {
		return false, nil
	}
	r.fired = true
	r.fn(s, v.Dimensions())
	return true, nil
}

func (r *givenShapeRule) String() string {
	return fmt.Sprintf("given(%s)", r.proxy.Path())
}

// computedIntRule refines target with fn over the source facts, once
// every source is concrete. The sources stay concrete afterwards, so
// re-evaluation is idempotent.
type computedIntRule struct {
	target  Comparable
	sources []operand
	fn      func(values []int) int
}

func (r *computedIntRule) Apply(ctx *Context, _ *Solver) (bool, error) {
	values := make([]int, len(r.sources))
	for i, o := range r.sources {
		f, err := o.fact(ctx)
		if err != nil {
			return false, err
		}
		v, ok := asIntFact(f)
		if !ok {
			return false, errors.Errorf("computed source %s must be an integer fact, got %s", o, f)
		}
		if !v.Known {
			return false, nil
		}
		values[i] = v.Value
	}
	changed, err := ctx.Unify(r.target.Path(), facts.KnownInt(r.fn(values)))
	if err != nil {
		return false, errors.WithMessagef(err, "at %s", r.target.Path())
	}
	return changed, nil
}

func (r *computedIntRule) String() string {
	parts := make([]string, len(r.sources))
	for i, o := range r.sources {
		parts[i] = o.String()
	}
	return fmt.Sprintf("computed(%s <- %s)", r.target.Path(), strings.Join(parts, ", "))
}

// Solver accumulates the rules of one node and runs them to a fixed
// point over the node's fact trees.
type Solver struct {
	rules []Rule
}

// NewSolver returns a solver with an empty rule set.
func NewSolver() *Solver { return &Solver{} }

// Equals registers a rule asserting that all operands refine each other:
// every referenced path ends up with the meet of all operand facts.
// Operands are comparable proxies, int, dtypes.DType or []int literals,
// or facts. It panics on any other operand type.
func (s *Solver) Equals(operands ...any) {
	if len(operands) < 2 {
		exceptions.Panicf("rules: Equals needs at least two operands, got %d", len(operands))
	}
	ops := make([]operand, len(operands))
	for i, v := range operands {
		ops[i] = operandOf(v)
	}
	s.add(&equalsRule{operands: ops})
}

// GivenInt defers fn until the integer fact addressed by p is known.
func (s *Solver) GivenInt(p Comparable, fn func(s *Solver, v int)) {
	s.add(&givenIntRule{proxy: p, fn: fn})
}

// GivenInts defers fn until every one of the integer facts addressed by
// proxies is known.
func (s *Solver) GivenInts(proxies []Comparable, fn func(s *Solver, values []int)) {
	s.add(&givenIntsRule{proxies: proxies, fn: fn})
}

// GivenDType defers fn until the element type addressed by p is known.
func (s *Solver) GivenDType(p *TypeProxy, fn func(s *Solver, dtype dtypes.DType)) {
	s.add(&givenTypeRule{proxy: p, fn: fn})
}

// GivenShape defers fn until the shape addressed by p is fully
// determined.
func (s *Solver) GivenShape(p *ShapeProxy, fn func(s *Solver, dims []int)) {
	s.add(&givenShapeRule{proxy: p, fn: fn})
}

// ComputedInt registers target = fn(sources...), evaluated once every
// source integer fact is concrete. fn must be a pure function.
func (s *Solver) ComputedInt(target Comparable, fn func(values []int) int, sources ...any) {
	ops := make([]operand, len(sources))
	for i, v := range sources {
		ops[i] = operandOf(v)
	}
	s.add(&computedIntRule{target: target, sources: ops, fn: fn})
}

// Add registers an arbitrary rule.
func (s *Solver) Add(r Rule) { s.add(r) }

func (s *Solver) add(r Rule) { s.rules = append(s.rules, r) }

// Solve applies all rules repeatedly until a pass produces no further
// refinement. Reaching the fixed point is success even if facts remain
// partially unknown; only a contradiction is a failure, and it aborts
// immediately, naming the offending rule.
func (s *Solver) Solve(ctx *Context) error {
	for pass := 1; ; pass++ {
		progress := false
		// Given rules may append to s.rules while we iterate; the new
		// rules take part in the same pass.
		for i := 0; i < len(s.rules); i++ {
			rule := s.rules[i]
			changed, err := rule.Apply(ctx, s)
			if err != nil {
				return errors.WithMessagef(err, "solving rule %s", rule)
			}
			progress = progress || changed
		}
		klog.V(2).Infof("solver pass %d: %d rules, progress=%v", pass, len(s.rules), progress)
		if !progress {
			return nil
		}
	}
}
