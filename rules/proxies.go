package rules

import (
	"github.com/gomlx/exceptions"
)

// Proxy is a typed handle over the symbolic path of one value in a
// node's fact trees. A proxy never holds the fact itself, only its
// address.
type Proxy interface {
	// Path returns the symbolic path to the value. It is identical for
	// repeated calls and equals the parent path concatenated with the
	// selector used to reach the proxy.
	Path() Path
}

// Comparable marks the proxies that resolve to a single fact and may
// therefore appear as operands in solver rules. The set of comparable
// proxies is closed: IntProxy, TypeProxy, DimProxy, ShapeProxy,
// ValueProxy and ElementProxy.
type Comparable interface {
	Proxy
	comparableProxy()
}

// IntProxy addresses an integer-like value: a list length, a rank or a
// value scalar.
type IntProxy struct {
	path Path
}

// NewIntProxy creates an IntProxy addressing the given path.
func NewIntProxy(path Path) *IntProxy { return &IntProxy{path: path} }

// Path returns the symbolic path to the value.
func (p *IntProxy) Path() Path       { return p.path }
func (p *IntProxy) String() string   { return p.path.String() }
func (p *IntProxy) comparableProxy() {}

// TypeProxy addresses a tensor element type.
type TypeProxy struct {
	path Path
}

// NewTypeProxy creates a TypeProxy addressing the given path.
func NewTypeProxy(path Path) *TypeProxy { return &TypeProxy{path: path} }

// Path returns the symbolic path to the value.
func (p *TypeProxy) Path() Path       { return p.path }
func (p *TypeProxy) String() string   { return p.path.String() }
func (p *TypeProxy) comparableProxy() {}

// DimProxy addresses one dimension of a tensor shape.
type DimProxy struct {
	path Path
}

// NewDimProxy creates a DimProxy addressing the given path.
func NewDimProxy(path Path) *DimProxy { return &DimProxy{path: path} }

// Path returns the symbolic path to the value.
func (p *DimProxy) Path() Path       { return p.path }
func (p *DimProxy) String() string   { return p.path.String() }
func (p *DimProxy) comparableProxy() {}

// TensorsProxy addresses a vector of tensors: a node's inputs or
// outputs.
//
// Len addresses the length of the vector. At(i) returns the proxy for
// the i-th tensor, created on first use and cached, so repeated calls
// return the same handle.
//
// At is not bounds-checked against the length fact: keeping indices
// coherent with Len is the rule author's responsibility, checked by the
// solve context only when a rule dereferences the index.
type TensorsProxy struct {
	Len     *IntProxy
	tensors *Cache[int, *TensorProxy]
	path    Path
}

// NewTensorsProxy creates a TensorsProxy addressing the given path; its
// length is addressed at path·-1.
func NewTensorsProxy(path Path) *TensorsProxy {
	return &TensorsProxy{
		Len:     NewIntProxy(path.Concat(LenSelector)),
		tensors: NewCache[int, *TensorProxy](),
		path:    path,
	}
}

// Inputs returns the tensors proxy rooted at a node's input list.
func Inputs() *TensorsProxy { return NewTensorsProxy(Path{0}) }

// Outputs returns the tensors proxy rooted at a node's output list.
func Outputs() *TensorsProxy { return NewTensorsProxy(Path{1}) }

// Path returns the symbolic path to the vector.
func (p *TensorsProxy) Path() Path     { return p.path }
func (p *TensorsProxy) String() string { return p.path.String() }

// At returns the proxy for the i-th tensor of the vector.
func (p *TensorsProxy) At(i int) *TensorProxy {
	if i < 0 {
		exceptions.Panicf("rules: negative tensor index %d on proxy %s", i, p.path)
	}
	return p.tensors.Get(i, func() *TensorProxy {
		return NewTensorProxy(p.path.Concat(i))
	})
}

// TensorProxy addresses one tensor and exposes its four properties,
// derived from the tensor's path at construction: DType at path·0, Rank
// at path·1, Shape at path·2 and Value at path·3. This numbering is part
// of the addressing contract that rules and tests rely on.
type TensorProxy struct {
	DType *TypeProxy
	Rank  *IntProxy
	Shape *ShapeProxy
	Value *ValueProxy
	path  Path
}

// NewTensorProxy creates a TensorProxy addressing the given path.
func NewTensorProxy(path Path) *TensorProxy {
	return &TensorProxy{
		DType: NewTypeProxy(path.Concat(FieldDType)),
		Rank:  NewIntProxy(path.Concat(FieldRank)),
		Shape: NewShapeProxy(path.Concat(FieldShape)),
		Value: NewValueProxy(path.Concat(FieldValue)),
		path:  path,
	}
}

// Path returns the symbolic path to the tensor.
func (p *TensorProxy) Path() Path     { return p.path }
func (p *TensorProxy) String() string { return p.path.String() }

// ShapeProxy addresses a tensor shape. At(i) returns the proxy for the
// i-th dimension, created on first use and cached.
type ShapeProxy struct {
	dims *Cache[int, *DimProxy]
	path Path
}

// NewShapeProxy creates a ShapeProxy addressing the given path.
func NewShapeProxy(path Path) *ShapeProxy {
	return &ShapeProxy{dims: NewCache[int, *DimProxy](), path: path}
}

// Path returns the symbolic path to the shape.
func (p *ShapeProxy) Path() Path       { return p.path }
func (p *ShapeProxy) String() string   { return p.path.String() }
func (p *ShapeProxy) comparableProxy() {}

// At returns the proxy for the i-th dimension of the shape.
func (p *ShapeProxy) At(i int) *DimProxy {
	if i < 0 {
		exceptions.Panicf("rules: negative shape axis %d on proxy %s", i, p.path)
	}
	return p.dims.Get(i, func() *DimProxy {
		return NewDimProxy(p.path.Concat(i))
	})
}

// ValueProxy addresses a whole tensor value. It allows arbitrarily
// nested indexing, so that writing input.Value.At(1).At(6).At(2) always
// works: each level caches the element proxies it hands out.
type ValueProxy struct {
	root *IntProxy
	sub  *Cache[int, *ElementProxy]
	path Path
}

// NewValueProxy creates a ValueProxy addressing the given path; its root
// scalar is addressed at path·-1.
func NewValueProxy(path Path) *ValueProxy {
	return &ValueProxy{
		root: NewIntProxy(path.Concat(LenSelector)),
		sub:  NewCache[int, *ElementProxy](),
		path: path,
	}
}

// Path returns the symbolic path to the value.
func (p *ValueProxy) Path() Path       { return p.path }
func (p *ValueProxy) String() string   { return p.path.String() }
func (p *ValueProxy) comparableProxy() {}

// Root returns the proxy for the value's root scalar.
func (p *ValueProxy) Root() *IntProxy { return p.root }

// At returns the proxy for the i-th element of the value.
func (p *ValueProxy) At(i int) *ElementProxy {
	if i < 0 {
		exceptions.Panicf("rules: negative element index %d on proxy %s", i, p.path)
	}
	return p.sub.Get(i, func() *ElementProxy {
		return NewElementProxy(p.path.Concat(i))
	})
}

// ElementProxy addresses one element of a tensor value. Elements index
// recursively to arbitrary depth, one cache per level.
type ElementProxy struct {
	sub  *Cache[int, *ElementProxy]
	path Path
}

// NewElementProxy creates an ElementProxy addressing the given path.
func NewElementProxy(path Path) *ElementProxy {
	return &ElementProxy{sub: NewCache[int, *ElementProxy](), path: path}
}

// Path returns the symbolic path to the element.
func (p *ElementProxy) Path() Path       { return p.path }
func (p *ElementProxy) String() string   { return p.path.String() }
func (p *ElementProxy) comparableProxy() {}

// At returns the proxy for the i-th sub-element of the element.
func (p *ElementProxy) At(i int) *ElementProxy {
	if i < 0 {
		exceptions.Panicf("rules: negative element index %d on proxy %s", i, p.path)
	}
	return p.sub.Get(i, func() *ElementProxy {
		return NewElementProxy(p.path.Concat(i))
	})
}
