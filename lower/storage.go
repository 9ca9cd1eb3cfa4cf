// Package lower implements spec.md §4.A-E: building a raw ir.Module from an
// ast.Program. It is grounded on the teacher's lang/compiler package in
// spirit (a small per-function compiler state threading through AST nodes
// emitting opcodes) even though the target here is a structured opcode
// stream rather than a stack-machine bytecode.
package lower

import (
	"fmt"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// StorageOf computes the Storages shape denoted by an ast.Type.
func (b *Builder) StorageOf(t ast.Type) (ir.Storages, error) {
	switch t := t.(type) {
	case *ast.IntType:
		tag := ir.StUint
		if t.Signed {
			tag = ir.StInt
		}
		return ir.Storages{{Tag: tag, Size: uint32(t.Bits)}}, nil
	case *ast.FloatType:
		return ir.Storages{{Tag: ir.StFloat, Size: uint32(t.Bits)}}, nil
	case *ast.BoolType:
		return ir.Storages{{Tag: ir.StBool}}, nil
	case *ast.StrLiteralType:
		return ir.Storages{
			{Tag: ir.StArray, Size: uint32(len(t.Value))},
			{Tag: ir.StUint, Size: 8},
		}, nil
	case *ast.ArrayType:
		elem, err := b.StorageOf(t.Elem)
		if err != nil {
			return nil, err
		}
		if t.Len != nil {
			if lit, ok := t.Len.(*ast.IntLit); ok {
				return append(ir.Storages{{Tag: ir.StArray, Size: uint32(lit.Value)}}, elem...), nil
			}
			return append(ir.Storages{{Tag: ir.StVector}}, elem...), nil
		}
		return append(ir.Storages{{Tag: ir.StVector}}, elem...), nil
	case *ast.StructType:
		id := b.LookupIdentByName(t.Ref.Name)
		return ir.Storages{{Tag: ir.StStructRef, Ref: id}}, nil
	case *ast.RecursiveStructType:
		id := b.LookupIdentByName(t.Ref.Name)
		return ir.Storages{{Tag: ir.StRecursiveStructRef, Ref: id}}, nil
	case *ast.EnumType:
		id := b.LookupIdentByName(t.Ref.Name)
		return ir.Storages{{Tag: ir.StEnum, Ref: id}}, nil
	case *ast.IdentType:
		if t.Underlying != nil {
			return b.StorageOf(t.Underlying)
		}
		id := b.LookupIdentByName(t.Ref.Name)
		return ir.Storages{{Tag: ir.StStructRef, Ref: id}}, nil
	case *ast.OptionalType:
		base, err := b.StorageOf(t.Base)
		if err != nil {
			return nil, err
		}
		return append(ir.Storages{{Tag: ir.StOptional}}, base...), nil
	case *ast.PointerType:
		base, err := b.StorageOf(t.Base)
		if err != nil {
			return nil, err
		}
		return append(ir.Storages{{Tag: ir.StPtr}}, base...), nil
	case *ast.VariantType:
		out := ir.Storages{{Tag: ir.StVariant}}
		for _, alt := range t.Alternatives {
			s, err := b.StorageOf(alt)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	default:
		return nil, diag.InvalidInput(diag.Site{Op: "storage_of"}, "unsupported type node %T", t)
	}
}

// GetCastType derives the CastType between two storages for an implicit
// assignment cast or an explicit CastExpr, spec.md §4.C.
func GetCastType(dst, src ir.Storages) ir.CastType {
	if dst.Equal(src) {
		return ir.CastIdentity
	}
	if len(dst) == 0 || len(src) == 0 {
		return ir.CastIdentity
	}
	d, s := dst[0], src[0]
	switch {
	case (d.Tag == ir.StUint || d.Tag == ir.StInt) && (s.Tag == ir.StUint || s.Tag == ir.StInt):
		if d.Tag != s.Tag {
			return ir.CastIntSignChange
		}
		if d.Size > s.Size {
			return ir.CastIntWiden
		}
		return ir.CastIntNarrow
	case d.Tag == ir.StEnum && (s.Tag == ir.StUint || s.Tag == ir.StInt):
		return ir.CastIntToEnum
	case (d.Tag == ir.StUint || d.Tag == ir.StInt) && s.Tag == ir.StEnum:
		return ir.CastEnumToInt
	case d.Tag == ir.StFloat && (s.Tag == ir.StUint || s.Tag == ir.StInt):
		return ir.CastIntBitsToFloat
	case (d.Tag == ir.StUint || d.Tag == ir.StInt) && s.Tag == ir.StFloat:
		return ir.CastFloatBitsToInt
	case d.Tag == ir.StStructRef && s.Tag == ir.StRecursiveStructRef:
		return ir.CastRecursiveToStruct
	default:
		return ir.CastIdentity
	}
}

// sameSizedIntStorage returns the unsigned-int storage with the same bit
// width as a float storage, used by the FloatType encode/decode path
// (spec.md §4.E: "cast to same-sized int, then encode").
func sameSizedIntStorage(bits uint32) ir.Storages {
	return ir.Storages{{Tag: ir.StUint, Size: bits}}
}

func storageBitSize(s ir.Storages) (uint32, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty storage")
	}
	switch s[0].Tag {
	case ir.StUint, ir.StInt, ir.StFloat:
		return s[0].Size, nil
	case ir.StBool:
		return 8, nil
	default:
		return 0, fmt.Errorf("storage %v has no scalar bit size", s[0].Tag)
	}
}
