package jsonast

import (
	"encoding/json"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
)

func (d *decoder) optExpr(raw json.RawMessage) (ast.Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	return d.expr(raw)
}

func (d *decoder) expr(raw json.RawMessage) (ast.Expr, error) {
	n, err := d.exprNode(raw)
	if err != nil {
		return nil, err
	}
	e, ok := n.(ast.Expr)
	if !ok {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.expr"}, "expected an Expr node")
	}
	return e, nil
}

func (d *decoder) exprNode(raw json.RawMessage) (ast.Node, error) {
	h, err := head(raw)
	if err != nil {
		return nil, err
	}
	p := ast.MakePos(h.Pos[0], h.Pos[1])

	switch h.Kind {
	case "ident_expr":
		var w struct {
			Base json.RawMessage `json:"base"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.ident_expr"}, "%v", err)
		}
		base, err := d.ident(w.Base)
		if err != nil {
			return nil, err
		}
		return &ast.IdentExpr{Pos: p, Base: base}, nil

	case "int_lit":
		var w struct {
			Value    uint64 `json:"value"`
			Negative bool   `json:"negative"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.int_lit"}, "%v", err)
		}
		return &ast.IntLit{Pos: p, Value: w.Value, Negative: w.Negative}, nil

	case "bool_lit":
		var w struct {
			Value bool `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.bool_lit"}, "%v", err)
		}
		return &ast.BoolLit{Pos: p, Value: w.Value}, nil

	case "binary_expr":
		var w struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
			Y  json.RawMessage `json:"y"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.binary_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		y, err := d.expr(w.Y)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Pos: p, Op: binOpFromString(w.Op), X: x, Y: y}, nil

	case "unary_expr":
		var w struct {
			Op string          `json:"op"`
			X  json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.unary_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Pos: p, Op: unOpFromString(w.Op), X: x}, nil

	case "member_expr":
		var w struct {
			X    json.RawMessage `json:"x"`
			Name string          `json:"name"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.member_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.MemberExpr{Pos: p, X: x, Name: w.Name}, nil

	case "index_expr":
		var w struct {
			X     json.RawMessage `json:"x"`
			Index json.RawMessage `json:"index"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.index_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		idx, err := d.expr(w.Index)
		if err != nil {
			return nil, err
		}
		return &ast.IndexExpr{Pos: p, X: x, Index: idx}, nil

	case "range_expr":
		var w struct {
			X         json.RawMessage `json:"x"`
			Lo        json.RawMessage `json:"lo"`
			Hi        json.RawMessage `json:"hi"`
			Inclusive bool            `json:"inclusive"`
			Outer     *string         `json:"outer"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.range_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		lo, err := d.expr(w.Lo)
		if err != nil {
			return nil, err
		}
		hi, err := d.expr(w.Hi)
		if err != nil {
			return nil, err
		}
		re := &ast.RangeExpr{Pos: p, X: x, Lo: lo, Hi: hi, Inclusive: w.Inclusive}
		if w.Outer != nil {
			op := binOpFromString(*w.Outer)
			re.Outer = &op
		}
		return re, nil

	case "cast_expr":
		var w struct {
			X  json.RawMessage `json:"x"`
			To json.RawMessage `json:"to"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.cast_expr"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		to, err := d.typ(w.To)
		if err != nil {
			return nil, err
		}
		return &ast.CastExpr{Pos: p, X: x, To: to}, nil

	case "if_expr":
		var w struct {
			Cond      json.RawMessage   `json:"cond"`
			Then      json.RawMessage   `json:"then"`
			ElifConds []json.RawMessage `json:"elif_conds"`
			ElifVals  []json.RawMessage `json:"elif_vals"`
			Else      json.RawMessage   `json:"else"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.if_expr"}, "%v", err)
		}
		cond, err := d.expr(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.expr(w.Then)
		if err != nil {
			return nil, err
		}
		ie := &ast.IfExpr{Pos: p, Cond: cond, Then: then}
		for _, r := range w.ElifConds {
			e, err := d.expr(r)
			if err != nil {
				return nil, err
			}
			ie.ElifConds = append(ie.ElifConds, e)
		}
		for _, r := range w.ElifVals {
			e, err := d.expr(r)
			if err != nil {
				return nil, err
			}
			ie.ElifVals = append(ie.ElifVals, e)
		}
		if ie.Else, err = d.optExpr(w.Else); err != nil {
			return nil, err
		}
		return ie, nil

	default:
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.expr"}, "unknown expr kind %q", h.Kind)
	}
}

func binOpFromString(s string) ast.BinOp {
	switch s {
	case "+":
		return ast.BAdd
	case "-":
		return ast.BSub
	case "*":
		return ast.BMul
	case "/":
		return ast.BDiv
	case "%":
		return ast.BMod
	case "&":
		return ast.BAnd
	case "|":
		return ast.BOr
	case "^":
		return ast.BXor
	case "<<":
		return ast.BShl
	case ">>":
		return ast.BShr
	case "&&":
		return ast.BLogAnd
	case "||":
		return ast.BLogOr
	case "==":
		return ast.BEq
	case "!=":
		return ast.BNeq
	case "<":
		return ast.BLt
	case "<=":
		return ast.BLe
	case ">":
		return ast.BGt
	case ">=":
		return ast.BGe
	default:
		return ast.BEq
	}
}

func unOpFromString(s string) ast.UnOp {
	switch s {
	case "-":
		return ast.UNeg
	case "!":
		return ast.UNot
	case "~":
		return ast.UBitNot
	default:
		return ast.UNot
	}
}
