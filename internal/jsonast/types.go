package jsonast

import (
	"encoding/json"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
)

func (d *decoder) typ(raw json.RawMessage) (ast.Type, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	h, err := head(raw)
	if err != nil {
		return nil, err
	}
	p := ast.MakePos(h.Pos[0], h.Pos[1])

	switch h.Kind {
	case "int_type":
		var w struct {
			Bits   int             `json:"bits"`
			Endian json.RawMessage `json:"endian"`
			Signed bool            `json:"signed"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.int_type"}, "%v", err)
		}
		endian, err := d.endianSpec(w.Endian)
		if err != nil {
			return nil, err
		}
		return &ast.IntType{Pos: p, Bits: w.Bits, Endian: endian, Signed: w.Signed}, nil

	case "float_type":
		var w struct {
			Bits   int             `json:"bits"`
			Endian json.RawMessage `json:"endian"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.float_type"}, "%v", err)
		}
		endian, err := d.endianSpec(w.Endian)
		if err != nil {
			return nil, err
		}
		return &ast.FloatType{Pos: p, Bits: w.Bits, Endian: endian}, nil

	case "bool_type":
		return &ast.BoolType{Pos: p}, nil

	case "str_literal_type":
		var w struct {
			Value []byte `json:"value"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.str_literal_type"}, "%v", err)
		}
		return &ast.StrLiteralType{Pos: p, Value: w.Value}, nil

	case "array_type":
		var w struct {
			Elem      json.RawMessage `json:"elem"`
			Len       json.RawMessage `json:"len"`
			Follow    string          `json:"follow"`
			FollowLit []byte          `json:"follow_lit"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.array_type"}, "%v", err)
		}
		elem, err := d.typ(w.Elem)
		if err != nil {
			return nil, err
		}
		at := &ast.ArrayType{Pos: p, Elem: elem, Follow: followKindFromString(w.Follow), FollowLit: w.FollowLit}
		if at.Len, err = d.optExpr(w.Len); err != nil {
			return nil, err
		}
		return at, nil

	case "struct_type":
		var w struct {
			Ref json.RawMessage `json:"ref"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.struct_type"}, "%v", err)
		}
		ref, err := d.ident(w.Ref)
		if err != nil {
			return nil, err
		}
		return &ast.StructType{Pos: p, Ref: ref}, nil

	case "recursive_struct_type":
		var w struct {
			Ref json.RawMessage `json:"ref"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.recursive_struct_type"}, "%v", err)
		}
		ref, err := d.ident(w.Ref)
		if err != nil {
			return nil, err
		}
		return &ast.RecursiveStructType{Pos: p, Ref: ref}, nil

	case "enum_type":
		var w struct {
			Ref json.RawMessage `json:"ref"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.enum_type"}, "%v", err)
		}
		ref, err := d.ident(w.Ref)
		if err != nil {
			return nil, err
		}
		return &ast.EnumType{Pos: p, Ref: ref}, nil

	case "ident_type":
		var w struct {
			Ref        json.RawMessage `json:"ref"`
			Underlying json.RawMessage `json:"underlying"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.ident_type"}, "%v", err)
		}
		ref, err := d.ident(w.Ref)
		if err != nil {
			return nil, err
		}
		it := &ast.IdentType{Pos: p, Ref: ref}
		if it.Underlying, err = d.typ(w.Underlying); err != nil {
			return nil, err
		}
		return it, nil

	case "optional_type":
		var w struct {
			Base json.RawMessage `json:"base"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.optional_type"}, "%v", err)
		}
		base, err := d.typ(w.Base)
		if err != nil {
			return nil, err
		}
		return &ast.OptionalType{Pos: p, Base: base}, nil

	case "pointer_type":
		var w struct {
			Base json.RawMessage `json:"base"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.pointer_type"}, "%v", err)
		}
		base, err := d.typ(w.Base)
		if err != nil {
			return nil, err
		}
		return &ast.PointerType{Pos: p, Base: base}, nil

	case "variant_type":
		var w struct {
			Alternatives []json.RawMessage `json:"alternatives"`
		}
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, diag.InvalidInput(diag.Site{Op: "jsonast.variant_type"}, "%v", err)
		}
		vt := &ast.VariantType{Pos: p}
		for _, ar := range w.Alternatives {
			alt, err := d.typ(ar)
			if err != nil {
				return nil, err
			}
			vt.Alternatives = append(vt.Alternatives, alt)
		}
		return vt, nil

	default:
		return nil, diag.InvalidInput(diag.Site{Op: "jsonast.typ"}, "unknown type kind %q", h.Kind)
	}
}

func followKindFromString(s string) ast.FollowKind {
	switch s {
	case "end":
		return ast.FollowEnd
	case "constant":
		return ast.FollowConstant
	default:
		return ast.FollowNone
	}
}
