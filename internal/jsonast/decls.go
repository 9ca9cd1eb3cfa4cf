package jsonast

import (
	"encoding/json"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
)

func (d *decoder) decls(raws []json.RawMessage) ([]ast.Decl, error) {
	var out []ast.Decl
	for _, r := range raws {
		n, err := d.node(r)
		if err != nil {
			return nil, err
		}
		decl, ok := n.(ast.Decl)
		if !ok {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.decls"}, "expected a Decl node")
		}
		out = append(out, decl)
	}
	return out, nil
}

func (d *decoder) fields(raws []json.RawMessage) ([]*ast.FieldDecl, error) {
	var out []*ast.FieldDecl
	for _, r := range raws {
		var w struct {
			Pos           [2]int          `json:"pos"`
			Name          json.RawMessage `json:"name"`
			Type          json.RawMessage `json:"type"`
			Condition     json.RawMessage `json:"condition"`
			Arguments     []json.RawMessage `json:"arguments"`
			SubByteLength json.RawMessage `json:"sub_byte_length"`
			SubByteBegin  bool            `json:"sub_byte_begin"`
			BitWidth      json.RawMessage `json:"bit_width"`
		}
		if err := json.Unmarshal(r, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.fields"}, "%v", err)
		}
		fd := &ast.FieldDecl{Pos: ast.MakePos(w.Pos[0], w.Pos[1]), SubByteBegin: w.SubByteBegin}
		var err error
		if fd.Name, err = d.ident(w.Name); err != nil {
			return nil, err
		}
		if fd.Type, err = d.typ(w.Type); err != nil {
			return nil, err
		}
		if fd.Condition, err = d.optExpr(w.Condition); err != nil {
			return nil, err
		}
		if fd.SubByteLength, err = d.optExpr(w.SubByteLength); err != nil {
			return nil, err
		}
		if fd.BitWidth, err = d.optExpr(w.BitWidth); err != nil {
			return nil, err
		}
		for _, a := range w.Arguments {
			e, err := d.expr(a)
			if err != nil {
				return nil, err
			}
			fd.Arguments = append(fd.Arguments, e)
		}
		out = append(out, fd)
	}
	return out, nil
}

func (d *decoder) endianSpec(raw json.RawMessage) (ast.EndianSpec, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return ast.EndianSpec{}, nil
	}
	var w struct {
		Endian     string          `json:"endian"`
		DynamicRef json.RawMessage `json:"dynamic_ref"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return ast.EndianSpec{}, diag.InvalidInput(diag.Site{Op: "jsonast.endianSpec"}, "%v", err)
	}
	spec := ast.EndianSpec{Endian: endianFromString(w.Endian)}
	ref, err := d.ident(w.DynamicRef)
	if err != nil {
		return ast.EndianSpec{}, err
	}
	spec.DynamicRef = ref
	return spec, nil
}

func endianFromString(s string) ast.Endian {
	switch s {
	case "big":
		return ast.EndianBig
	case "little":
		return ast.EndianLittle
	case "native":
		return ast.EndianNative
	case "dynamic":
		return ast.EndianDynamic
	default:
		return ast.EndianUnspec
	}
}

func (d *decoder) format(raw json.RawMessage) (*ast.Format, error) {
	var w struct {
		Pos    [2]int            `json:"pos"`
		Name   json.RawMessage   `json:"name"`
		Endian json.RawMessage   `json:"endian"`
		Fields []json.RawMessage `json:"fields"`
		Nested []json.RawMessage `json:"nested"`
		Funcs  []json.RawMessage `json:"funcs"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.format"}, "%v", err)
	}
	f := &ast.Format{Pos: ast.MakePos(w.Pos[0], w.Pos[1])}
	var err error
	if f.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	if f.Endian, err = d.endianSpec(w.Endian); err != nil {
		return nil, err
	}
	if f.Fields, err = d.fields(w.Fields); err != nil {
		return nil, err
	}
	if nested, err := d.decls(w.Nested); err != nil {
		return nil, err
	} else {
		f.Nested = nested
	}
	for _, r := range w.Funcs {
		fn, err := d.function(r)
		if err != nil {
			return nil, err
		}
		f.Funcs = append(f.Funcs, fn)
	}
	return f, nil
}

func (d *decoder) enum(raw json.RawMessage) (*ast.Enum, error) {
	var w struct {
		Pos     [2]int            `json:"pos"`
		Name    json.RawMessage   `json:"name"`
		Base    json.RawMessage   `json:"base"`
		Members []json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.enum"}, "%v", err)
	}
	e := &ast.Enum{Pos: ast.MakePos(w.Pos[0], w.Pos[1])}
	var err error
	if e.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	if e.Base, err = d.typ(w.Base); err != nil {
		return nil, err
	}
	for _, r := range w.Members {
		var mw struct {
			Pos   [2]int          `json:"pos"`
			Name  json.RawMessage `json:"name"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(r, &mw); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.enum.member"}, "%v", err)
		}
		m := &ast.EnumMember{Pos: ast.MakePos(mw.Pos[0], mw.Pos[1])}
		if m.Name, err = d.ident(mw.Name); err != nil {
			return nil, err
		}
		if m.Value, err = d.optExpr(mw.Value); err != nil {
			return nil, err
		}
		e.Members = append(e.Members, m)
	}
	return e, nil
}

func (d *decoder) state(raw json.RawMessage) (*ast.State, error) {
	var w struct {
		Pos  [2]int          `json:"pos"`
		Name json.RawMessage `json:"name"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.state"}, "%v", err)
	}
	s := &ast.State{Pos: ast.MakePos(w.Pos[0], w.Pos[1])}
	var err error
	if s.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	if s.Type, err = d.typ(w.Type); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) union(raw json.RawMessage) (*ast.Union, error) {
	var w struct {
		Pos     [2]int            `json:"pos"`
		Name    json.RawMessage   `json:"name"`
		Members []json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.union"}, "%v", err)
	}
	u := &ast.Union{Pos: ast.MakePos(w.Pos[0], w.Pos[1])}
	var err error
	if u.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	for _, r := range w.Members {
		var mw struct {
			Pos    [2]int            `json:"pos"`
			Name   json.RawMessage   `json:"name"`
			Fields []json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(r, &mw); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.union.member"}, "%v", err)
		}
		um := &ast.UnionMember{Pos: ast.MakePos(mw.Pos[0], mw.Pos[1])}
		if um.Name, err = d.ident(mw.Name); err != nil {
			return nil, err
		}
		if um.Fields, err = d.fields(mw.Fields); err != nil {
			return nil, err
		}
		u.Members = append(u.Members, um)
	}
	return u, nil
}

func (d *decoder) bitField(raw json.RawMessage) (*ast.BitField, error) {
	var w struct {
		Pos    [2]int            `json:"pos"`
		Name   json.RawMessage   `json:"name"`
		Endian json.RawMessage   `json:"endian"`
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.bitfield"}, "%v", err)
	}
	bf := &ast.BitField{Pos: ast.MakePos(w.Pos[0], w.Pos[1])}
	var err error
	if bf.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	if bf.Endian, err = d.endianSpec(w.Endian); err != nil {
		return nil, err
	}
	if bf.Fields, err = d.fields(w.Fields); err != nil {
		return nil, err
	}
	return bf, nil
}

func (d *decoder) function(raw json.RawMessage) (*ast.Function, error) {
	var w struct {
		Pos    [2]int            `json:"pos"`
		Name   json.RawMessage   `json:"name"`
		Kind   string            `json:"func_kind"`
		Params []json.RawMessage `json:"params"`
		Body   []json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.function"}, "%v", err)
	}
	fn := &ast.Function{Pos: ast.MakePos(w.Pos[0], w.Pos[1]), Kind: funcKindFromString(w.Kind)}
	var err error
	if fn.Name, err = d.ident(w.Name); err != nil {
		return nil, err
	}
	for _, r := range w.Params {
		var pw struct {
			Pos  [2]int          `json:"pos"`
			Name json.RawMessage `json:"name"`
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(r, &pw); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.function.param"}, "%v", err)
		}
		p := &ast.Param{Pos: ast.MakePos(pw.Pos[0], pw.Pos[1])}
		if p.Name, err = d.ident(pw.Name); err != nil {
			return nil, err
		}
		if p.Type, err = d.typ(pw.Type); err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, p)
	}
	if fn.Body, err = d.stmts(w.Body); err != nil {
		return nil, err
	}
	return fn, nil
}

func funcKindFromString(s string) ast.FuncKind {
	switch s {
	case "custom_encode":
		return ast.FuncCustomEncode
	case "custom_decode":
		return ast.FuncCustomDecode
	default:
		return ast.FuncHelper
	}
}
