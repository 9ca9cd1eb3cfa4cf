package lower

import (
	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// Build lowers a complete ast.Program into a raw ir.Module, spec.md
// §4.A-E. The result still needs the transformation pipeline of §4.F-N
// run over it before it is a canonical binary module.
func Build(prog *ast.Program) (*ir.Module, error) {
	b := NewBuilder()

	flat := flattenDecls(prog.Decls)

	// Pre-pass: register every top-level name (and index formats/enums by
	// name) before lowering any body, so a field typed as a format declared
	// later in source order still resolves, spec.md §4.A.
	for _, d := range flat {
		b.RegisterName(d.DeclName().Name)
		switch d := d.(type) {
		case *ast.Format:
			b.formats[d.Name.Name] = d
		case *ast.Enum:
			b.enums[d.Name.Name] = d
		}
	}

	progStart := len(b.Mod.Code)
	b.Emit(ir.DEFINE_PROGRAM, nil)

	for _, d := range flat {
		if err := b.lowerDecl(d); err != nil {
			return nil, err
		}
	}
	for _, fn := range prog.Funcs {
		if fn.Kind == ast.FuncHelper {
			if err := b.lowerHelperFunction(0, fn); err != nil {
				return nil, err
			}
		}
	}

	b.Emit(ir.END_PROGRAM, nil)
	b.Mod.Programs = append(b.Mod.Programs, ir.Range{Start: progStart, End: len(b.Mod.Code)})
	b.Mod.RebuildIdentIndex()

	return b.Mod, nil
}

// flattenDecls hoists every Decl nested inside a Format to top level,
// immediately following the owning format, DFS order. This is spec.md
// §4.F's flatten pass performed directly over the AST rather than over
// the opcode stream, since the AST already carries the nesting
// relationship explicitly; passes.Flatten (run later over the opcode
// stream) only needs to validate the result.
func flattenDecls(decls []ast.Decl) []ast.Decl {
	var out []ast.Decl
	for _, d := range decls {
		out = append(out, d)
		if f, ok := d.(*ast.Format); ok && len(f.Nested) > 0 {
			out = append(out, flattenDecls(f.Nested)...)
		}
	}
	return out
}

func (b *Builder) lowerDecl(d ast.Decl) error {
	switch d := d.(type) {
	case *ast.Format:
		return b.lowerFormat(d)
	case *ast.Enum:
		return b.lowerEnum(d)
	case *ast.State:
		return b.lowerState(d)
	case *ast.Union:
		return b.lowerUnion(d)
	case *ast.BitField:
		return b.lowerBitFieldDecl(d)
	case *ast.Function:
		if d.Kind == ast.FuncHelper {
			return b.lowerHelperFunction(0, d)
		}
		return nil
	default:
		return diag.InvalidInput(diag.Site{Op: "lower_decl"}, "unsupported top-level decl %T", d)
	}
}

func (b *Builder) lowerFormat(f *ast.Format) error {
	formatID := b.LookupIdentByName(f.Name.Name)
	b.currentFormat = f
	b.Emit(ir.DEFINE_FORMAT, func(c *ir.Code) {
		c.Ident = formatID
		c.Endian = toIREndian(f.Endian)
	})

	for _, field := range f.Fields {
		if err := b.lowerFieldDefine(formatID, field); err != nil {
			return err
		}
	}
	for _, nested := range f.Nested {
		stubOp, ok := declareStub(nested)
		if ok {
			b.Emit(stubOp, func(c *ir.Code) { c.Ref = b.LookupIdentByName(nested.DeclName().Name) })
		}
	}

	b.Emit(ir.END_FORMAT, func(c *ir.Code) { c.Belong = formatID })

	if err := b.SynthesizeCoders(f); err != nil {
		return err
	}
	for _, fn := range f.Funcs {
		if err := b.lowerFormatFunc(formatID, f, fn); err != nil {
			return err
		}
	}
	b.currentFormat = nil
	return nil
}

func declareStub(d ast.Decl) (ir.AbstractOp, bool) {
	switch d.(type) {
	case *ast.Format:
		return ir.DECLARE_FORMAT, true
	case *ast.Enum:
		return ir.DECLARE_ENUM, true
	case *ast.State:
		return ir.DECLARE_STATE, true
	case *ast.Union:
		return ir.DECLARE_UNION, true
	case *ast.BitField:
		return ir.DECLARE_BIT_FIELD, true
	default:
		return 0, false
	}
}

// lowerFieldDefine emits the DEFINE_FIELD metadata record for one field
// (distinct from the encode/decode body synthesized later by
// SynthesizeCoders): its type storage, an optional CONDITIONAL_FIELD
// marker, spec.md §4.I. The condition is lowered ahead of DEFINE_FIELD so
// that DEFINE_FIELD, CONDITIONAL_FIELD and END_FIELD stay adjacent, the
// shape passes.MergeConditionalFields groups on.
func (b *Builder) lowerFieldDefine(formatID ir.ObjectID, field *ast.FieldDecl) error {
	var fieldID ir.ObjectID
	if field.Name != nil {
		fieldID = b.LookupIdentByName(field.Name.Name)
	} else {
		fieldID = b.Mod.NewID()
	}
	storage, err := b.StorageOf(field.Type)
	if err != nil {
		return err
	}
	ref := b.Mod.GetStorageRef(storage)
	var cond ir.ObjectID
	if field.Condition != nil {
		if cond, err = b.LowerExpr(field.Condition); err != nil {
			return err
		}
	}
	b.Emit(ir.DEFINE_FIELD, func(c *ir.Code) {
		c.Ident = fieldID
		c.Belong = formatID
		c.Type = ref
	})
	if field.Condition != nil {
		b.Emit(ir.CONDITIONAL_FIELD, func(c *ir.Code) { c.Ref = fieldID; c.Left = cond })
	}
	b.Emit(ir.END_FIELD, func(c *ir.Code) { c.Belong = fieldID })
	return nil
}

func (b *Builder) lowerEnum(e *ast.Enum) error {
	enumID := b.LookupIdentByName(e.Name.Name)
	it, ok := e.Base.(*ast.IntType)
	bits := uint32(32)
	if ok {
		bits = uint32(it.Bits)
	}
	b.Emit(ir.DEFINE_ENUM, func(c *ir.Code) {
		c.Ident = enumID
		c.BitSize = bits
	})
	var prev uint64
	for i, m := range e.Members {
		memberID := b.LookupIdentByName(e.Name.Name + "." + m.Name.Name)
		var val ir.ObjectID
		if m.Value != nil {
			v, err := b.LowerExpr(m.Value)
			if err != nil {
				return err
			}
			val = v
		} else {
			n := prev
			if i > 0 {
				n = prev + 1
			}
			prev = n
			val = b.ImmediateInt(n)
		}
		b.Emit(ir.DEFINE_FIELD, func(c *ir.Code) { c.Ident = memberID; c.Belong = enumID; c.Ref = val })
		if lit, ok := m.Value.(*ast.IntLit); ok {
			prev = lit.Value
		} else if m.Value != nil {
			prev++
		}
	}
	b.Emit(ir.END_ENUM, func(c *ir.Code) { c.Belong = enumID })
	return nil
}

func (b *Builder) lowerState(s *ast.State) error {
	stateID := b.LookupIdentByName(s.Name.Name)
	storage, err := b.StorageOf(s.Type)
	if err != nil {
		return err
	}
	ref := b.Mod.GetStorageRef(storage)
	b.Emit(ir.DEFINE_STATE, func(c *ir.Code) { c.Ident = stateID; c.Type = ref })
	b.Emit(ir.END_STATE, func(c *ir.Code) { c.Belong = stateID })
	return nil
}

func (b *Builder) lowerUnion(u *ast.Union) error {
	unionID := b.LookupIdentByName(u.Name.Name)
	b.Emit(ir.DEFINE_UNION, func(c *ir.Code) { c.Ident = unionID })
	for _, m := range u.Members {
		memberID := b.LookupIdentByName(u.Name.Name + "." + m.Name.Name)
		b.Emit(ir.DEFINE_UNION_MEMBER, func(c *ir.Code) { c.Ident = memberID; c.Belong = unionID })
		for _, f := range m.Fields {
			if err := b.lowerFieldDefine(memberID, f); err != nil {
				return err
			}
		}
		b.Emit(ir.END_UNION_MEMBER, func(c *ir.Code) { c.Belong = memberID })
	}
	b.Emit(ir.END_UNION, func(c *ir.Code) { c.Belong = unionID })
	return nil
}

// lowerBitFieldDecl lowers a named, standalone bit field: a sequence of
// sub-byte members whose combined size spec.md §4.G decides is fixed or
// variable. Only the DEFINE_BIT_FIELD record and its member fields are
// emitted; no encoder or decoder is synthesized for the declaration. A
// format field whose Type names it through an IdentType with no
// Underlying is coded by coderStructCall as a call under the bit field's
// ident and is not wrapped in a packed operation; coderPackedGroup wraps
// only inline runs of BitWidth fields inside a format.
func (b *Builder) lowerBitFieldDecl(bf *ast.BitField) error {
	bfID := b.LookupIdentByName(bf.Name.Name)
	b.Emit(ir.DEFINE_BIT_FIELD, func(c *ir.Code) { c.Ident = bfID; c.Endian = toIREndian(bf.Endian) })
	for _, f := range bf.Fields {
		if err := b.lowerFieldDefine(bfID, f); err != nil {
			return err
		}
	}
	b.Emit(ir.END_BIT_FIELD, func(c *ir.Code) { c.Belong = bfID })
	return nil
}

// lowerFormatFunc lowers a user-supplied encode/decode override or
// per-format helper function, spec.md §4.E.
func (b *Builder) lowerFormatFunc(formatID ir.ObjectID, f *ast.Format, fn *ast.Function) error {
	fnID := b.Mod.NewID()
	funcType := ir.FuncHelper
	switch fn.Kind {
	case ast.FuncCustomEncode:
		funcType = ir.FuncEncode
	case ast.FuncCustomDecode:
		funcType = ir.FuncDecode
	}
	b.Emit(ir.DEFINE_FUNCTION, func(c *ir.Code) { c.Ident = fnID; c.Belong = formatID; c.FuncType = funcType })
	b.PushScope()
	for _, p := range fn.Params {
		pID := b.LookupIdentByName(p.Name.Name)
		storage, err := b.StorageOf(p.Type)
		if err != nil {
			return err
		}
		ref := b.Mod.GetStorageRef(storage)
		id := b.EmitWithID(ir.DEFINE_PARAMETER, func(c *ir.Code) { c.Ident = pID; c.Type = ref })
		b.Bind(p.Name.Name, id)
	}
	if err := b.LowerBlock(fn.Body); err != nil {
		return err
	}
	b.PopScope()
	switch fn.Kind {
	case ast.FuncCustomEncode, ast.FuncCustomDecode:
		b.Emit(ir.RET_SUCCESS, func(c *ir.Code) { c.Belong = fnID })
	}
	b.Emit(ir.END_FUNCTION, nil)

	switch fn.Kind {
	case ast.FuncCustomEncode:
		b.Emit(ir.DEFINE_ENCODER, func(c *ir.Code) { c.Left = formatID; c.Right = fnID })
	case ast.FuncCustomDecode:
		b.Emit(ir.DEFINE_DECODER, func(c *ir.Code) { c.Left = formatID; c.Right = fnID })
	}
	return nil
}

func (b *Builder) lowerHelperFunction(belong ir.ObjectID, fn *ast.Function) error {
	fnID := b.LookupIdentByName(fn.Name.Name)
	b.Emit(ir.DEFINE_FUNCTION, func(c *ir.Code) { c.Ident = fnID; c.Belong = belong; c.FuncType = ir.FuncHelper })
	b.PushScope()
	for _, p := range fn.Params {
		pID := b.LookupIdentByName(p.Name.Name)
		storage, err := b.StorageOf(p.Type)
		if err != nil {
			return err
		}
		ref := b.Mod.GetStorageRef(storage)
		id := b.EmitWithID(ir.DEFINE_PARAMETER, func(c *ir.Code) { c.Ident = pID; c.Type = ref })
		b.Bind(p.Name.Name, id)
	}
	if err := b.LowerBlock(fn.Body); err != nil {
		return err
	}
	b.PopScope()
	b.Emit(ir.END_FUNCTION, nil)
	return nil
}
