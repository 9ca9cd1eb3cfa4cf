package jsonast

import (
	"encoding/json"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
)

func (d *decoder) stmts(raws []json.RawMessage) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, r := range raws {
		s, err := d.stmt(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) stmt(raw json.RawMessage) (ast.Stmt, error) {
	h, err := head(raw)
	if err != nil {
		return nil, err
	}
	p := ast.MakePos(h.Pos[0], h.Pos[1])

	switch h.Kind {
	case "expr_stmt":
		var w struct {
			X json.RawMessage `json:"x"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.expr_stmt"}, "%v", err)
		}
		x, err := d.expr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Pos: p, X: x}, nil

	case "decl_stmt":
		var w struct {
			Name  json.RawMessage `json:"name"`
			Type  json.RawMessage `json:"type"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.decl_stmt"}, "%v", err)
		}
		ds := &ast.DeclStmt{Pos: p}
		var err error
		if ds.Name, err = d.ident(w.Name); err != nil {
			return nil, err
		}
		if len(w.Type) > 0 && string(w.Type) != "null" {
			if ds.Type, err = d.typ(w.Type); err != nil {
				return nil, err
			}
		}
		if ds.Value, err = d.optExpr(w.Value); err != nil {
			return nil, err
		}
		return ds, nil

	case "assign_stmt":
		var w struct {
			Target json.RawMessage `json:"target"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.assign_stmt"}, "%v", err)
		}
		target, err := d.expr(w.Target)
		if err != nil {
			return nil, err
		}
		value, err := d.expr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Pos: p, Target: target, Value: value}, nil

	case "if_stmt":
		var w struct {
			Cond  json.RawMessage   `json:"cond"`
			Then  []json.RawMessage `json:"then"`
			Elifs []json.RawMessage `json:"elifs"`
			Else  []json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.if_stmt"}, "%v", err)
		}
		cond, err := d.expr(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.stmts(w.Then)
		if err != nil {
			return nil, err
		}
		is := &ast.IfStmt{Pos: p, Cond: cond, Then: then}
		for _, er := range w.Elifs {
			var ew struct {
				Cond json.RawMessage   `json:"cond"`
				Body []json.RawMessage `json:"body"`
			}
			if err := json.Unmarshal(er, &ew); err != nil {
				return nil, diag.InvalidInput(diag.Site{Op: "jsonast.if_stmt.elif"}, "%v", err)
			}
			ec, err := d.expr(ew.Cond)
			if err != nil {
				return nil, err
			}
			body, err := d.stmts(ew.Body)
			if err != nil {
				return nil, err
			}
			is.Elifs = append(is.Elifs, ast.ElifClause{Cond: ec, Body: body})
		}
		if is.Else, err = d.stmts(w.Else); err != nil {
			return nil, err
		}
		return is, nil

	case "match_stmt":
		var w struct {
			Scrutinee json.RawMessage   `json:"scrutinee"`
			Cases     []json.RawMessage `json:"cases"`
			Default   []json.RawMessage `json:"default"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.match_stmt"}, "%v", err)
		}
		scrutinee, err := d.expr(w.Scrutinee)
		if err != nil {
			return nil, err
		}
		ms := &ast.MatchStmt{Pos: p, Scrutinee: scrutinee}
		for _, cr := range w.Cases {
			var cw struct {
				Patterns []json.RawMessage `json:"patterns"`
				Body     []json.RawMessage `json:"body"`
			}
			if err := json.Unmarshal(cr, &cw); err != nil {
				return nil, diag.InvalidInput(diag.Site{Op: "jsonast.match_stmt.case"}, "%v", err)
			}
			mc := ast.MatchCase{}
			for _, pr := range cw.Patterns {
				pe, err := d.expr(pr)
				if err != nil {
					return nil, err
				}
				mc.Patterns = append(mc.Patterns, pe)
			}
			if mc.Body, err = d.stmts(cw.Body); err != nil {
				return nil, err
			}
			ms.Cases = append(ms.Cases, mc)
		}
		if ms.Default, err = d.stmts(w.Default); err != nil {
			return nil, err
		}
		return ms, nil

	case "loop_stmt":
		var w struct {
			Kind      string          `json:"loop_kind"`
			Cond      json.RawMessage `json:"cond"`
			Var       json.RawMessage `json:"var"`
			Bound     json.RawMessage `json:"bound"`
			Lo        json.RawMessage `json:"lo"`
			Hi        json.RawMessage `json:"hi"`
			Inclusive bool            `json:"inclusive"`
			Over      json.RawMessage `json:"over"`
			Body      []json.RawMessage `json:"body"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.loop_stmt"}, "%v", err)
		}
		ls := &ast.LoopStmt{Pos: p, Kind: loopKindFromString(w.Kind), Inclusive: w.Inclusive}
		var err error
		if ls.Cond, err = d.optExpr(w.Cond); err != nil {
			return nil, err
		}
		if ls.Var, err = d.ident(w.Var); err != nil {
			return nil, err
		}
		if ls.Bound, err = d.optExpr(w.Bound); err != nil {
			return nil, err
		}
		if ls.Lo, err = d.optExpr(w.Lo); err != nil {
			return nil, err
		}
		if ls.Hi, err = d.optExpr(w.Hi); err != nil {
			return nil, err
		}
		if ls.Over, err = d.optExpr(w.Over); err != nil {
			return nil, err
		}
		if ls.Body, err = d.stmts(w.Body); err != nil {
			return nil, err
		}
		return ls, nil

	case "break_stmt":
		return &ast.BreakStmt{Pos: p}, nil

	case "continue_stmt":
		return &ast.ContinueStmt{Pos: p}, nil

	case "return_stmt":
		var w struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.return_stmt"}, "%v", err)
		}
		value, err := d.optExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Pos: p, Value: value}, nil

	case "assert_stmt":
		var w struct {
			Alts []json.RawMessage `json:"alts"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.assert_stmt"}, "%v", err)
		}
		as := &ast.AssertStmt{Pos: p}
		for _, ar := range w.Alts {
			e, err := d.expr(ar)
			if err != nil {
				return nil, err
			}
			as.Alts = append(as.Alts, e)
		}
		return as, nil

	default:
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.stmt"}, "unknown stmt kind %q", h.Kind)
	}
}

func loopKindFromString(s string) ast.LoopKind {
	switch s {
	case "while":
		return ast.LoopWhile
	case "for_int":
		return ast.LoopForInt
	case "for_range":
		return ast.LoopForRange
	case "for_each":
		return ast.LoopForEach
	default:
		return ast.LoopInfinite
	}
}
