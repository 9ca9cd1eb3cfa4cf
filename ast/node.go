package ast

// Node is implemented by every AST node. Span returns the node's source
// extent; nodes synthesized internally (there are none in this package,
// that is the lowerer's job) may return unknown positions.
type Node interface {
	Span() (start, end Pos)
	Walk(v Visitor)
}

// Ident is a name as it appears in source, e.g. a format name, field name,
// parameter name, or enum member name. The core's identifier table (ir
// package) caches one ObjectID per distinct *Ident value seen during
// lowering: looking up the same *Ident a second time must return the same
// ID, which is why front ends are expected to reuse a single *Ident value
// for every reference to a given declaration (much like a resolver binds a
// name to its declaring node).
type Ident struct {
	Pos  Pos
	Name string
}

func (n *Ident) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *Ident) Walk(Visitor)     {}

// VisitDirection indicates whether a call to Visit enters or exits a node.
type VisitDirection int

const (
	VisitEnter VisitDirection = iota
	VisitExit
)

// Visitor is called for each node participating in a Walk.
type Visitor interface {
	Visit(n Node, dir VisitDirection) (w Visitor)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(n Node, dir VisitDirection) Visitor

func (f VisitorFunc) Visit(n Node, dir VisitDirection) Visitor { return f(n, dir) }

// Walk visits node and its descendants with v, in the manner described by
// Visitor.
func Walk(v Visitor, node Node) {
	if node == nil {
		return
	}
	if v = v.Visit(node, VisitEnter); v == nil {
		return
	}
	node.Walk(v)
	v.Visit(node, VisitExit)
}
