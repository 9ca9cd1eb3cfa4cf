package lower

import (
	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// LowerExpr lowers an AST expression to a sequence of opcodes appended to
// the module, returning the ObjectID of the opcode producing its value,
// spec.md §4.C.
func (b *Builder) LowerExpr(e ast.Expr) (ir.ObjectID, error) {
	switch e := e.(type) {
	case *ast.IdentExpr:
		if id, ok := b.Resolve(e.Base.Name); ok {
			return id, nil
		}
		return 0, diag.InvalidInput(b.site("ident", e.Pos), "undefined identifier %q", e.Base.Name)

	case *ast.IntLit:
		v := e.Value
		id := b.ImmediateInt(v)
		if e.Negative {
			// A negated literal is folded at lowering time via a UNARY over
			// the positive immediate, matching how the teacher's compiler
			// keeps int literals unsigned in their constant pool and applies
			// unary minus as a real opcode (lang/compiler emits NEG).
			return b.EmitWithID(ir.UNARY, func(c *ir.Code) {
				c.UOp = ir.UNeg
				c.Ref = id
			}), nil
		}
		return id, nil

	case *ast.BoolLit:
		return b.ImmediateBool(e.Value), nil

	case *ast.BinaryExpr:
		return b.lowerBinary(e)

	case *ast.UnaryExpr:
		x, err := b.LowerExpr(e.X)
		if err != nil {
			return 0, err
		}
		var op ir.UnOp
		switch e.Op {
		case ast.UNeg:
			op = ir.UNeg
		case ast.UNot:
			op = ir.UNot
		case ast.UBitNot:
			op = ir.UBitNot
		}
		return b.EmitWithID(ir.UNARY, func(c *ir.Code) { c.UOp = op; c.Ref = x }), nil

	case *ast.MemberExpr:
		x, err := b.LowerExpr(e.X)
		if err != nil {
			return 0, err
		}
		name := b.LookupIdentByName(e.Name)
		return b.EmitWithID(ir.ACCESS, func(c *ir.Code) { c.Left = x; c.Right = name }), nil

	case *ast.IndexExpr:
		x, err := b.LowerExpr(e.X)
		if err != nil {
			return 0, err
		}
		idx, err := b.LowerExpr(e.Index)
		if err != nil {
			return 0, err
		}
		return b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = x; c.Right = idx }), nil

	case *ast.RangeExpr:
		return b.doRangeCompare(e, nil)

	case *ast.CastExpr:
		x, err := b.LowerExpr(e.X)
		if err != nil {
			return 0, err
		}
		dst, err := b.StorageOf(e.To)
		if err != nil {
			return 0, err
		}
		dstRef := b.Mod.GetStorageRef(dst)
		return b.EmitWithID(ir.CAST, func(c *ir.Code) {
			c.Ref = x
			c.Type = dstRef
			c.CastType = ir.CastIntWiden // refined by caller-known src storage where available; see doAssign
		}), nil

	case *ast.IfExpr:
		return b.lowerIfExpr(e)

	default:
		return 0, diag.InvalidInput(diag.Site{Op: "lower_expr"}, "unsupported expression node %T", e)
	}
}

// lowerBinary handles BinaryExpr, including short-circuit desugaring for
// && and ||, spec.md §4.C.
func (b *Builder) lowerBinary(e *ast.BinaryExpr) (ir.ObjectID, error) {
	if e.Op.IsShortCircuit() {
		return b.lowerShortCircuit(e)
	}
	if r, ok := e.Y.(*ast.RangeExpr); ok && (e.Op == ast.BEq || e.Op == ast.BNeq) {
		op := e.Op
		return b.doRangeCompare(r, &op)
	}
	x, err := b.LowerExpr(e.X)
	if err != nil {
		return 0, err
	}
	y, err := b.LowerExpr(e.Y)
	if err != nil {
		return 0, err
	}
	return b.EmitWithID(ir.BINARY, func(c *ir.Code) {
		c.BOp = toIRBinOp(e.Op)
		c.Left = x
		c.Right = y
	}), nil
}

// lowerShortCircuit lowers && / || through a temporary bool variable and an
// IF/ELSE, spec.md §4.C.
func (b *Builder) lowerShortCircuit(e *ast.BinaryExpr) (ir.ObjectID, error) {
	x, err := b.LowerExpr(e.X)
	if err != nil {
		return 0, err
	}
	tmp := b.DefineBoolTmp(x)

	ifID := b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = x })
	if e.Op == ast.BLogOr {
		// x || y: if x is true, result is true; else result is y.
		assignConst := b.doAssign(0, 0, tmp, b.ImmediateBool(true))
		_ = assignConst
		b.Emit(ir.ELSE, nil)
		y, err := b.LowerExpr(e.Y)
		if err != nil {
			return 0, err
		}
		b.doAssign(0, 0, tmp, y)
	} else {
		// x && y: if x is true, result is y; else result is false.
		y, err := b.LowerExpr(e.Y)
		if err != nil {
			return 0, err
		}
		b.doAssign(0, 0, tmp, y)
		b.Emit(ir.ELSE, nil)
		b.doAssign(0, 0, tmp, b.ImmediateBool(false))
	}
	b.Emit(ir.END_IF, nil)
	_ = ifID
	return tmp, nil
}

// doRangeCompare desugars `x in [lo..hi]` (and `x == r` / `x != r` via
// outer) into `lo <= x && x < hi` (or <= for an inclusive upper bound),
// spec.md §4.C.
func (b *Builder) doRangeCompare(r *ast.RangeExpr, outer *ast.BinOp) (ir.ObjectID, error) {
	x, err := b.LowerExpr(r.X)
	if err != nil {
		return 0, err
	}
	lo, err := b.LowerExpr(r.Lo)
	if err != nil {
		return 0, err
	}
	hi, err := b.LowerExpr(r.Hi)
	if err != nil {
		return 0, err
	}
	loCmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BLe; c.Left = lo; c.Right = x })
	hiOp := ir.BLt
	if r.Inclusive {
		hiOp = ir.BLe
	}
	hiCmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = hiOp; c.Left = x; c.Right = hi })
	in := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BAnd; c.Left = loCmp; c.Right = hiCmp })
	if outer == nil || *outer == ast.BEq {
		return in, nil
	}
	// x != r: negate.
	return b.EmitWithID(ir.UNARY, func(c *ir.Code) { c.UOp = ir.UNot; c.Ref = in }), nil
}

// lowerIfExpr lowers if-as-expression by pre-allocating a result variable
// and having each arm assign into it, spec.md §4.D "Yield values".
func (b *Builder) lowerIfExpr(e *ast.IfExpr) (ir.ObjectID, error) {
	cond, err := b.LowerExpr(e.Cond)
	if err != nil {
		return 0, err
	}
	thenVal, err := b.LowerExpr(e.Then)
	if err != nil {
		return 0, err
	}
	result := b.DefineTypedTmpVar(thenVal, 0)

	b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = cond })
	b.doAssign(0, 0, result, thenVal)
	for i, ec := range e.ElifConds {
		ecID, err := b.LowerExpr(ec)
		if err != nil {
			return 0, err
		}
		b.EmitWithID(ir.ELIF, func(c *ir.Code) { c.Ref = ecID })
		val, err := b.LowerExpr(e.ElifVals[i])
		if err != nil {
			return 0, err
		}
		b.doAssign(0, 0, result, val)
	}
	if e.Else != nil {
		b.Emit(ir.ELSE, nil)
		val, err := b.LowerExpr(e.Else)
		if err != nil {
			return 0, err
		}
		b.doAssign(0, 0, result, val)
	}
	b.Emit(ir.END_IF, nil)
	return result, nil
}

func toIRBinOp(op ast.BinOp) ir.BinOp {
	switch op {
	case ast.BAdd:
		return ir.BAdd
	case ast.BSub:
		return ir.BSub
	case ast.BMul:
		return ir.BMul
	case ast.BDiv:
		return ir.BDiv
	case ast.BMod:
		return ir.BMod
	case ast.BAnd:
		return ir.BAnd
	case ast.BOr:
		return ir.BOr
	case ast.BXor:
		return ir.BXor
	case ast.BShl:
		return ir.BShl
	case ast.BShr:
		return ir.BShr
	case ast.BEq:
		return ir.BEq
	case ast.BNeq:
		return ir.BNeq
	case ast.BLt:
		return ir.BLt
	case ast.BLe:
		return ir.BLe
	case ast.BGt:
		return ir.BGt
	case ast.BGe:
		return ir.BGe
	default:
		return ir.BEq
	}
}
