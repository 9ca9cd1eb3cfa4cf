package ast

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	isStmt()
}

type (
	// ExprStmt is a standalone expression evaluated for its side effects,
	// e.g. a bare call. The lowerer emits EVAL_EXPR for these per
	// spec.md §4.D "Foreach with side-effect awareness".
	ExprStmt struct {
		Pos Pos
		X   Expr
	}

	// DeclStmt declares and optionally initializes a local variable.
	DeclStmt struct {
		Pos   Pos
		Name  *Ident
		Type  Type // may be nil if inferred from Value
		Value Expr // may be nil for a zero-initialized declaration
	}

	// AssignStmt is `Target = Value`.
	AssignStmt struct {
		Pos    Pos
		Target Expr
		Value  Expr
	}

	ElifClause struct {
		Cond Expr
		Body []Stmt
	}

	IfStmt struct {
		Pos   Pos
		Cond  Expr
		Then  []Stmt
		Elifs []ElifClause
		Else  []Stmt // nil if no else branch
	}

	MatchCase struct {
		// Patterns holds one or more patterns for this case (comma-separated
		// alternatives collapse to one CASE per spec.md, so front ends
		// should already have split them); a RangeExpr pattern desugars via
		// the same range-comparison helper as an expression-level range.
		Patterns []Expr
		Body     []Stmt
	}

	MatchStmt struct {
		Pos       Pos
		Scrutinee Expr
		Cases     []MatchCase
		Default   []Stmt // nil if no default case
	}

	// LoopKind distinguishes the loop shapes of spec.md §4.D.
	LoopKind uint8

	LoopStmt struct {
		Pos  Pos
		Kind LoopKind

		// Kind == LoopWhile
		Cond Expr

		// Kind == LoopForInt: iterate Var from 0 to Bound (exclusive).
		// Kind == LoopForRange: iterate Var from Lo to Hi.
		// Kind == LoopForEach: iterate Var over the elements of Over.
		Var       *Ident
		Bound     Expr
		Lo, Hi    Expr
		Inclusive bool
		Over      Expr

		Body []Stmt
	}

	BreakStmt struct {
		Pos Pos
	}

	ContinueStmt struct {
		Pos Pos
	}

	ReturnStmt struct {
		Pos   Pos
		Value Expr // nil for a bare return
	}

	// AssertStmt emits an ASSERT opcode: used both for explicit source-level
	// assertions and for the field-arguments equality checks and
	// string-literal-match checks of spec.md §4.E.
	AssertStmt struct {
		Pos  Pos
		Alts []Expr // OR-chain of acceptable expressions
	}
)

const (
	LoopInfinite LoopKind = iota
	LoopWhile
	LoopForInt
	LoopForRange
	LoopForEach
)

func (*ExprStmt) isStmt()   {}
func (*DeclStmt) isStmt()   {}
func (*AssignStmt) isStmt() {}
func (*IfStmt) isStmt()     {}
func (*MatchStmt) isStmt()  {}
func (*LoopStmt) isStmt()   {}
func (*BreakStmt) isStmt()  {}
func (*ContinueStmt) isStmt() {}
func (*ReturnStmt) isStmt() {}
func (*AssertStmt) isStmt() {}

func (n *ExprStmt) Span() (Pos, Pos) { return n.X.Span() }
func (n *DeclStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *AssignStmt) Span() (Pos, Pos) {
	start, _ := n.Target.Span()
	_, end := n.Value.Span()
	return start, end
}
func (n *IfStmt) Span() (Pos, Pos)    { return n.Pos, n.Pos }
func (n *MatchStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *LoopStmt) Span() (Pos, Pos)  { return n.Pos, n.Pos }
func (n *BreakStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *ContinueStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *ReturnStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *AssertStmt) Span() (Pos, Pos) { return n.Pos, n.Pos }

func (n *ExprStmt) Walk(v Visitor) { Walk(v, n.X) }
func (n *DeclStmt) Walk(v Visitor) {
	if n.Type != nil {
		Walk(v, n.Type)
	}
	if n.Value != nil {
		Walk(v, n.Value)
	}
}
func (n *AssignStmt) Walk(v Visitor) {
	Walk(v, n.Target)
	Walk(v, n.Value)
}
func (n *IfStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	walkStmts(v, n.Then)
	for _, e := range n.Elifs {
		Walk(v, e.Cond)
		walkStmts(v, e.Body)
	}
	walkStmts(v, n.Else)
}
func (n *MatchStmt) Walk(v Visitor) {
	Walk(v, n.Scrutinee)
	for _, c := range n.Cases {
		for _, p := range c.Patterns {
			Walk(v, p)
		}
		walkStmts(v, c.Body)
	}
	walkStmts(v, n.Default)
}
func (n *LoopStmt) Walk(v Visitor) {
	if n.Cond != nil {
		Walk(v, n.Cond)
	}
	if n.Bound != nil {
		Walk(v, n.Bound)
	}
	if n.Lo != nil {
		Walk(v, n.Lo)
	}
	if n.Hi != nil {
		Walk(v, n.Hi)
	}
	if n.Over != nil {
		Walk(v, n.Over)
	}
	walkStmts(v, n.Body)
}
func (n *BreakStmt) Walk(Visitor)    {}
func (n *ContinueStmt) Walk(Visitor) {}
func (n *ReturnStmt) Walk(v Visitor) {
	if n.Value != nil {
		Walk(v, n.Value)
	}
}
func (n *AssertStmt) Walk(v Visitor) {
	for _, a := range n.Alts {
		Walk(v, a)
	}
}

func walkStmts(v Visitor, stmts []Stmt) {
	for _, s := range stmts {
		Walk(v, s)
	}
}
