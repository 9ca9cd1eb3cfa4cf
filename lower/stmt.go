package lower

import (
	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// doAssign emits ASSIGN, inserting a preceding CAST when dstType and
// srcType are both known (nonzero) and differ, spec.md §4.D.
func (b *Builder) doAssign(dstType, srcType ir.StorageRef, left, right ir.ObjectID) ir.ObjectID {
	if dstType != 0 && srcType != 0 && dstType != srcType {
		dst, _ := b.Mod.GetStorage(dstType)
		src, _ := b.Mod.GetStorage(srcType)
		ct := GetCastType(dst, src)
		right = b.EmitWithID(ir.CAST, func(c *ir.Code) {
			c.Ref = right
			c.Type = dstType
			c.FromType = srcType
			c.CastType = ct
		})
	}
	id := b.EmitWithID(ir.ASSIGN, func(c *ir.Code) {
		c.Left = left
		c.Right = right
	})
	b.recordPhiCandidate(left, id)
	return id
}

// recordPhiCandidate feeds an assignment into the innermost open phi frame,
// if any (spec.md §4.D).
func (b *Builder) recordPhiCandidate(target, assignment ir.ObjectID) {
	b.Mod.NextPhiCandidate(target, b.currentPhiCond, assignment)
}

// LowerBlock lowers a statement sequence, resetting "previous expression"
// before each statement and emitting EVAL_EXPR for bare expression
// statements, spec.md §4.D "Foreach with side-effect awareness".
func (b *Builder) LowerBlock(stmts []ast.Stmt) error {
	for _, s := range stmts {
		b.Mod.SetPrevExpr(0)
		if err := b.LowerStmt(s); err != nil {
			return err
		}
		if _, ok := s.(*ast.ExprStmt); ok {
			if prev := b.Mod.PrevExpr(); prev != 0 {
				b.Emit(ir.EVAL_EXPR, func(c *ir.Code) { c.Ref = prev })
			}
		}
	}
	return nil
}

// LowerStmt lowers one statement, spec.md §4.D.
func (b *Builder) LowerStmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.ExprStmt:
		id, err := b.LowerExpr(s.X)
		if err != nil {
			return err
		}
		b.Mod.SetPrevExpr(id)
		return nil

	case *ast.DeclStmt:
		var val ir.ObjectID
		if s.Value != nil {
			v, err := b.LowerExpr(s.Value)
			if err != nil {
				return err
			}
			val = v
		} else {
			val = b.ImmediateInt(0)
		}
		var typ ir.StorageRef
		if s.Type != nil {
			st, err := b.StorageOf(s.Type)
			if err != nil {
				return err
			}
			typ = b.Mod.GetStorageRef(st)
		}
		id := b.DefineTypedTmpVar(val, typ)
		b.Bind(s.Name.Name, id)
		return nil

	case *ast.AssignStmt:
		right, err := b.LowerExpr(s.Value)
		if err != nil {
			return err
		}
		left, err := b.lowerAssignTarget(s.Target)
		if err != nil {
			return err
		}
		b.doAssign(0, 0, left, right)
		return nil

	case *ast.IfStmt:
		return b.lowerIfStmt(s)

	case *ast.MatchStmt:
		return b.lowerMatchStmt(s)

	case *ast.LoopStmt:
		return b.lowerLoopStmt(s)

	case *ast.BreakStmt:
		b.Emit(ir.BREAK, nil)
		return nil

	case *ast.ContinueStmt:
		b.Emit(ir.CONTINUE, nil)
		return nil

	case *ast.ReturnStmt:
		var val ir.ObjectID
		if s.Value != nil {
			v, err := b.LowerExpr(s.Value)
			if err != nil {
				return err
			}
			val = v
		}
		b.Emit(ir.RETURN, func(c *ir.Code) { c.Ref = val })
		return nil

	case *ast.AssertStmt:
		alts := make([]ir.ObjectID, 0, len(s.Alts))
		for _, a := range s.Alts {
			id, err := b.LowerExpr(a)
			if err != nil {
				return err
			}
			alts = append(alts, id)
		}
		b.Emit(ir.ASSERT, func(c *ir.Code) { c.Param = alts })
		return nil

	default:
		return diag.InvalidInput(diag.Site{Op: "lower_stmt"}, "unsupported statement node %T", s)
	}
}

// lowerAssignTarget resolves an assignment's left-hand side to the
// ObjectID being (re)defined; for a bare identifier this is its existing
// binding, for member/index targets it is the ACCESS/INDEX opcode itself
// (later passes rewrite merged-field assignment targets to
// PROPERTY_ASSIGN, spec.md §4.K).
func (b *Builder) lowerAssignTarget(e ast.Expr) (ir.ObjectID, error) {
	switch e := e.(type) {
	case *ast.IdentExpr:
		if id, ok := b.Resolve(e.Base.Name); ok {
			return id, nil
		}
		return 0, diag.InvalidInput(b.site("assign", e.Pos), "undefined assignment target %q", e.Base.Name)
	default:
		return b.LowerExpr(e)
	}
}

// lowerIfStmt lowers if/elif/else with φ bookkeeping at the join,
// spec.md §4.D.
func (b *Builder) lowerIfStmt(s *ast.IfStmt) error {
	b.Mod.InitPhiStack()

	cond, err := b.LowerExpr(s.Cond)
	if err != nil {
		return err
	}
	b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = cond })
	if err := b.withPhiCond(cond, func() error { return b.LowerBlock(s.Then) }); err != nil {
		return err
	}

	for _, ec := range s.Elifs {
		ecID, err := b.LowerExpr(ec.Cond)
		if err != nil {
			return err
		}
		b.EmitWithID(ir.ELIF, func(c *ir.Code) { c.Ref = ecID })
		if err := b.withPhiCond(ecID, func() error { return b.LowerBlock(ec.Body) }); err != nil {
			return err
		}
	}

	if s.Else != nil {
		b.Emit(ir.ELSE, nil)
		if err := b.withPhiCond(0, func() error { return b.LowerBlock(s.Else) }); err != nil {
			return err
		}
	}
	b.Emit(ir.END_IF, nil)

	for target, params := range b.Mod.EndPhiStack() {
		phiID := b.Mod.InsertPhi(target, params, func(op ir.AbstractOp, set func(*ir.Code)) ir.ObjectID {
			return b.EmitWithID(op, set)
		})
		b.rebindScope(target, phiID)
	}
	return nil
}

// currentPhiCond is the condition id of the branch currently being lowered,
// consulted by recordPhiCandidate; withPhiCond saves/restores it around a
// nested block so nested ifs don't clobber the enclosing frame's slot.
func (b *Builder) withPhiCond(cond ir.ObjectID, fn func() error) error {
	prev := b.currentPhiCond
	b.currentPhiCond = cond
	err := fn()
	b.currentPhiCond = prev
	return err
}

// rebindScope replaces any scope binding pointing at the pre-join
// definition with the φ result, so subsequent reads see the merged value.
func (b *Builder) rebindScope(oldOrTarget, phiID ir.ObjectID) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		for name, id := range b.scopes[i] {
			if id == oldOrTarget {
				b.scopes[i][name] = phiID
				return
			}
		}
	}
}

// lowerMatchStmt lowers a match statement, spec.md §4.D, as an
// IF/ELIF/ELSE cascade comparing a temporary that holds the scrutinee.
// Every match takes this form, including one whose scrutinee and patterns
// are all integer-like; MATCH/CASE opcodes are not emitted.
func (b *Builder) lowerMatchStmt(s *ast.MatchStmt) error {
	scrut, err := b.LowerExpr(s.Scrutinee)
	if err != nil {
		return err
	}
	tmp := b.DefineTypedTmpVar(scrut, 0)

	b.Mod.InitPhiStack()
	first := true
	for _, c := range s.Cases {
		cond, err := b.matchCaseCond(tmp, c.Patterns)
		if err != nil {
			return err
		}
		if first {
			b.EmitWithID(ir.IF, func(cc *ir.Code) { cc.Ref = cond })
			first = false
		} else {
			b.EmitWithID(ir.ELIF, func(cc *ir.Code) { cc.Ref = cond })
		}
		if err := b.withPhiCond(cond, func() error { return b.LowerBlock(c.Body) }); err != nil {
			return err
		}
	}
	if s.Default != nil {
		b.Emit(ir.ELSE, nil)
		if err := b.withPhiCond(0, func() error { return b.LowerBlock(s.Default) }); err != nil {
			return err
		}
	}
	b.Emit(ir.END_IF, nil)
	for target, params := range b.Mod.EndPhiStack() {
		phiID := b.Mod.InsertPhi(target, params, func(op ir.AbstractOp, set func(*ir.Code)) ir.ObjectID {
			return b.EmitWithID(op, set)
		})
		b.rebindScope(target, phiID)
	}
	return nil
}

func (b *Builder) matchCaseCond(scrutTmp ir.ObjectID, patterns []ast.Expr) (ir.ObjectID, error) {
	var cond ir.ObjectID
	for i, p := range patterns {
		var pc ir.ObjectID
		if r, ok := p.(*ast.RangeExpr); ok {
			lo, err := b.LowerExpr(r.Lo)
			if err != nil {
				return 0, err
			}
			hi, err := b.LowerExpr(r.Hi)
			if err != nil {
				return 0, err
			}
			loCmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BLe; c.Left = lo; c.Right = scrutTmp })
			hiOp := ir.BLt
			if r.Inclusive {
				hiOp = ir.BLe
			}
			hiCmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = hiOp; c.Left = scrutTmp; c.Right = hi })
			pc = b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BAnd; c.Left = loCmp; c.Right = hiCmp })
		} else {
			val, err := b.LowerExpr(p)
			if err != nil {
				return 0, err
			}
			pc = b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BEq; c.Left = scrutTmp; c.Right = val })
		}
		if i == 0 {
			cond = pc
		} else {
			cond = b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BOr; c.Left = cond; c.Right = pc })
		}
	}
	return cond, nil
}

// lowerLoopStmt lowers the five loop shapes of spec.md §4.D.
func (b *Builder) lowerLoopStmt(s *ast.LoopStmt) error {
	switch s.Kind {
	case ast.LoopInfinite:
		b.Emit(ir.LOOP_INFINITE, nil)
		b.PushScope()
		if err := b.LowerBlock(s.Body); err != nil {
			return err
		}
		b.PopScope()
		b.Emit(ir.END_LOOP, nil)
		return nil

	case ast.LoopWhile:
		cond, err := b.LowerExpr(s.Cond)
		if err != nil {
			return err
		}
		b.EmitWithID(ir.LOOP_CONDITION, func(c *ir.Code) { c.Ref = cond })
		b.PushScope()
		if err := b.LowerBlock(s.Body); err != nil {
			return err
		}
		b.PopScope()
		b.Emit(ir.END_LOOP, nil)
		return nil

	case ast.LoopForInt:
		bound, err := b.LowerExpr(s.Bound)
		if err != nil {
			return err
		}
		return b.lowerCounterLoop(s, b.ImmediateInt(0), bound, false)

	case ast.LoopForRange:
		lo, err := b.LowerExpr(s.Lo)
		if err != nil {
			return err
		}
		hi, err := b.LowerExpr(s.Hi)
		if err != nil {
			return err
		}
		return b.lowerCounterLoop(s, lo, hi, s.Inclusive)

	case ast.LoopForEach:
		over, err := b.LowerExpr(s.Over)
		if err != nil {
			return err
		}
		size := b.EmitWithID(ir.ARRAY_SIZE, func(c *ir.Code) { c.Ref = over })
		counter := b.DefineIntTmp(b.ImmediateInt(0), 32, false)
		cmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BLt; c.Left = counter; c.Right = size })
		b.EmitWithID(ir.LOOP_CONDITION, func(c *ir.Code) { c.Ref = cmp })
		b.PushScope()
		elem := b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = over; c.Right = counter })
		v := b.EmitWithID(ir.DEFINE_VARIABLE_REF, func(c *ir.Code) { c.Ref = elem })
		b.Bind(s.Var.Name, v)
		if err := b.LowerBlock(s.Body); err != nil {
			return err
		}
		b.PopScope()
		b.Emit(ir.INC, func(c *ir.Code) { c.Ref = counter })
		b.Emit(ir.END_LOOP, nil)
		return nil

	default:
		return diag.InvalidInput(diag.Site{Op: "lower_loop"}, "unsupported loop kind %d", s.Kind)
	}
}

// lowerCounterLoop is the shared counter-loop pattern behind `for x in N`
// and `for x in a..b`, spec.md §4.D.
func (b *Builder) lowerCounterLoop(s *ast.LoopStmt, lo, hi ir.ObjectID, inclusive bool) error {
	counter := b.DefineIntTmp(lo, 32, false)
	cmpOp := ir.BLt
	if inclusive {
		cmpOp = ir.BLe
	}
	cmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = cmpOp; c.Left = counter; c.Right = hi })
	b.EmitWithID(ir.LOOP_CONDITION, func(c *ir.Code) { c.Ref = cmp })
	b.PushScope()
	b.Bind(s.Var.Name, counter)
	if err := b.LowerBlock(s.Body); err != nil {
		return err
	}
	b.PopScope()
	b.Emit(ir.INC, func(c *ir.Code) { c.Ref = counter })
	b.Emit(ir.END_LOOP, nil)
	return nil
}
