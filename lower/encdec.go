package lower

import (
	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// coderCtx carries the state threaded through one encoder or decoder body,
// spec.md §4.E.
type coderCtx struct {
	format   *ast.Format
	formatID ir.ObjectID
	decode   bool
	stream   ir.ObjectID // the ENCODER_PARAMETER / DECODER_PARAMETER id
}

// SynthesizeCoders builds the encoder and decoder for one format unless a
// user-supplied override exists for that role, spec.md §4.E.
func (b *Builder) SynthesizeCoders(f *ast.Format) error {
	formatID := b.LookupIdentByName(f.Name.Name)
	hasEncode, hasDecode := false, false
	for _, fn := range f.Funcs {
		switch fn.Kind {
		case ast.FuncCustomEncode:
			hasEncode = true
		case ast.FuncCustomDecode:
			hasDecode = true
		}
	}
	if !hasEncode {
		if err := b.synthesizeCoder(f, formatID, false); err != nil {
			return err
		}
	}
	if !hasDecode {
		if err := b.synthesizeCoder(f, formatID, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) synthesizeCoder(f *ast.Format, formatID ir.ObjectID, decode bool) error {
	funcType := ir.FuncEncode
	if decode {
		funcType = ir.FuncDecode
	}
	fnID := b.Mod.NewID()
	b.Emit(ir.DEFINE_FUNCTION, func(c *ir.Code) {
		c.Ident = fnID
		c.Belong = formatID
		c.FuncType = funcType
	})
	retType := b.Mod.GetStorageRef(ir.Storages{{Tag: ir.StCoderReturn}})
	b.Emit(ir.RETURN_TYPE, func(c *ir.Code) { c.Type = retType })

	streamOp := ir.ENCODER_PARAMETER
	if decode {
		streamOp = ir.DECODER_PARAMETER
	}
	stream := b.EmitWithID(streamOp, nil)

	b.PushScope()
	b.Bind(f.Name.Name+".self", stream)
	ctx := &coderCtx{format: f, formatID: formatID, decode: decode, stream: stream}

	i := 0
	for i < len(f.Fields) {
		field := f.Fields[i]
		if field.BitWidth != nil {
			j := i
			for j < len(f.Fields) && f.Fields[j].BitWidth != nil {
				j++
			}
			if err := b.coderPackedGroup(ctx, f.Fields[i:j]); err != nil {
				return err
			}
			i = j
			continue
		}
		if err := b.coderField(ctx, field, f.Fields[i+1:]); err != nil {
			return err
		}
		i++
	}
	b.PopScope()

	b.Emit(ir.RET_SUCCESS, func(c *ir.Code) { c.Belong = fnID })
	b.Emit(ir.END_FUNCTION, nil)

	role := "encoder"
	op := ir.DEFINE_ENCODER
	if decode {
		role, op = "decoder", ir.DEFINE_DECODER
	}
	_ = role
	b.Emit(op, func(c *ir.Code) { c.Left = formatID; c.Right = fnID })
	return nil
}

// coderPackedGroup wraps a contiguous run of bit-field members in
// BEGIN/END_*_PACKED_OPERATION, spec.md §4.E "Bit-field wrapper". The
// actual packed_op_type/bit_size is a placeholder here; passes.DecideBitFieldSize
// (spec.md §4.G) rewrites it once the whole module is visible.
func (b *Builder) coderPackedGroup(ctx *coderCtx, fields []*ast.FieldDecl) error {
	groupID := b.Mod.NewID()
	beginOp, endOp := ir.BEGIN_ENCODE_PACKED_OPERATION, ir.END_ENCODE_PACKED_OPERATION
	if ctx.decode {
		beginOp, endOp = ir.BEGIN_DECODE_PACKED_OPERATION, ir.END_DECODE_PACKED_OPERATION
	}
	endian := toIREndian(ctx.format.Endian)
	b.Emit(beginOp, func(c *ir.Code) {
		c.Ident = groupID
		c.Belong = ctx.formatID
		c.Endian = endian
		c.PackedOpType = ir.PackedFixed
	})
	for _, f := range fields {
		if err := b.coderField(ctx, f, nil); err != nil {
			return err
		}
	}
	b.Emit(endOp, func(c *ir.Code) { c.Belong = groupID })
	return nil
}

// coderField dispatches one field through the type table of spec.md §4.E.
// rest lists the fields that follow it in the enclosing format body, used
// by an open-ended array field to decide whether the bytes remaining after
// it are statically bounded (spec.md §4.E "Open-ended vector decode",
// eventual_follow==fixed case); callers synthesizing a field that has no
// such enclosing context (bit-field members, array elements) pass nil.
func (b *Builder) coderField(ctx *coderCtx, field *ast.FieldDecl, rest []*ast.FieldDecl) error {
	var fieldID ir.ObjectID
	if field.Name != nil {
		fieldID = b.LookupIdentByName(field.Name.Name)
		b.Bind(field.Name.Name, fieldID)
	} else {
		fieldID = b.Mod.NewID()
	}

	if field.SubByteLength != nil {
		return b.coderSubRange(ctx, field, fieldID, rest)
	}
	return b.coderFieldType(ctx, field, fieldID, field.Type, rest, true)
}

func (b *Builder) coderSubRange(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, rest []*ast.FieldDecl) error {
	length, err := b.LowerExpr(field.SubByteLength)
	if err != nil {
		return err
	}
	_ = length
	beginOp, endOp := ir.BEGIN_ENCODE_SUB_RANGE, ir.END_ENCODE_SUB_RANGE
	if ctx.decode {
		beginOp, endOp = ir.BEGIN_DECODE_SUB_RANGE, ir.END_DECODE_SUB_RANGE
	}
	var saved ir.ObjectID
	if field.SubByteBegin {
		offsetOp := ir.OUTPUT_BYTE_OFFSET
		if ctx.decode {
			offsetOp = ir.INPUT_BYTE_OFFSET
		}
		saved = b.EmitWithID(offsetOp, func(c *ir.Code) { c.Ref = ctx.stream })
	}
	b.Emit(beginOp, func(c *ir.Code) {
		c.Ident = fieldID
		c.Ref = length
		c.SubRangeType = ir.SubRangeByte
	})
	if err := b.coderFieldType(ctx, field, fieldID, field.Type, rest, true); err != nil {
		return err
	}
	b.Emit(endOp, func(c *ir.Code) { c.Belong = fieldID })
	if field.SubByteBegin {
		seekOp := ir.SEEK_OUTPUT
		if ctx.decode {
			seekOp = ir.SEEK_INPUT
		}
		b.Emit(seekOp, func(c *ir.Code) { c.Left = ctx.stream; c.Right = saved })
	}
	return nil
}

// shouldInitRecursive mirrors bmgen/encode.cpp's should_init_recursive: it
// gates whether a *ast.RecursiveStructType field reached through t emits
// CHECK_RECURSIVE_STRUCT/INIT_RECURSIVE_STRUCT at this call site. It is
// true everywhere except inside a dynamic-length array's element loop,
// where the element count isn't known until the loop runs, so the
// recursion guard belongs to the loop's single synthesized call site
// rather than to each element (see coderArray's dynamic-length branch).
func (b *Builder) coderFieldType(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t ast.Type, rest []*ast.FieldDecl, shouldInitRecursive bool) error {
	switch t := t.(type) {
	case *ast.IntType:
		endian := toIREndianSpec(t.Endian, t.Signed)
		if endian.Endian == ir.EndianDynamic && t.Endian.DynamicRef != nil {
			endian.DynamicRef = b.LookupIdentByName(t.Endian.DynamicRef.Name)
		}
		op := ir.ENCODE_INT
		if ctx.decode {
			op = ir.DECODE_INT
		}
		id := b.EmitWithID(op, func(c *ir.Code) {
			c.Ref = fieldID
			c.Left = ctx.stream
			c.Endian = endian
			c.BitSize = uint32(t.Bits)
			c.BitSizePlus = uint32(t.Bits) + 1
		})
		if ctx.decode && field.Name != nil {
			b.Bind(field.Name.Name, id)
		}
		return b.coderFieldArguments(field, fieldID)

	case *ast.FloatType:
		return b.coderFloat(ctx, field, fieldID, t)

	case *ast.BoolType:
		op := ir.ENCODE_INT
		if ctx.decode {
			op = ir.DECODE_INT
		}
		b.Emit(op, func(c *ir.Code) {
			c.Ref = fieldID
			c.Left = ctx.stream
			c.BitSize = 8
			c.BitSizePlus = 9
		})
		return nil

	case *ast.StrLiteralType:
		return b.coderStrLiteral(ctx, field, fieldID, t)

	case *ast.ArrayType:
		return b.coderArray(ctx, field, fieldID, t, rest, shouldInitRecursive)

	case *ast.StructType:
		return b.coderStructCall(ctx, field, fieldID, t.Ref.Name, false, shouldInitRecursive)

	case *ast.RecursiveStructType:
		return b.coderStructCall(ctx, field, fieldID, t.Ref.Name, true, shouldInitRecursive)

	case *ast.EnumType:
		return b.coderEnum(ctx, field, fieldID, t)

	case *ast.IdentType:
		if t.Underlying != nil {
			return b.coderFieldType(ctx, field, fieldID, t.Underlying, rest, shouldInitRecursive)
		}
		return b.coderStructCall(ctx, field, fieldID, t.Ref.Name, false, shouldInitRecursive)

	case *ast.OptionalType:
		return b.coderFieldType(ctx, field, fieldID, t.Base, rest, shouldInitRecursive)

	case *ast.PointerType:
		return b.coderFieldType(ctx, field, fieldID, t.Base, rest, shouldInitRecursive)

	default:
		return diag.InvalidInput(diag.Site{Op: "coder_field"}, "unsupported field type %T", t)
	}
}

func (b *Builder) coderFieldArguments(field *ast.FieldDecl, fieldID ir.ObjectID) error {
	if len(field.Arguments) == 0 {
		return nil
	}
	alts := make([]ir.ObjectID, 0, len(field.Arguments))
	for _, a := range field.Arguments {
		id, err := b.LowerExpr(a)
		if err != nil {
			return err
		}
		alts = append(alts, id)
	}
	b.Emit(ir.ASSERT, func(c *ir.Code) { c.Ref = fieldID; c.Param = alts })
	return nil
}

// coderFloat: cast to same-sized int then encode; decode the int and
// cast-bits to float, spec.md §4.E.
func (b *Builder) coderFloat(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.FloatType) error {
	bits := uint32(t.Bits)
	endian := toIREndianSpec(t.Endian, false)
	if endian.Endian == ir.EndianDynamic && t.Endian.DynamicRef != nil {
		endian.DynamicRef = b.LookupIdentByName(t.Endian.DynamicRef.Name)
	}
	intStorage := b.Mod.GetStorageRef(sameSizedIntStorage(bits))
	floatStorage := b.Mod.GetStorageRef(ir.Storages{{Tag: ir.StFloat, Size: bits}})
	if !ctx.decode {
		bitsID := b.EmitWithID(ir.CAST, func(c *ir.Code) {
			c.Ref = fieldID
			c.Type = intStorage
			c.FromType = floatStorage
			c.CastType = ir.CastFloatBitsToInt
		})
		b.Emit(ir.ENCODE_INT, func(c *ir.Code) {
			c.Ref = bitsID
			c.Left = ctx.stream
			c.Endian = endian
			c.BitSize = bits
			c.BitSizePlus = bits + 1
		})
		return nil
	}
	tmp := b.EmitWithID(ir.DECODE_INT, func(c *ir.Code) {
		c.Left = ctx.stream
		c.Endian = toIREndianSpec(t.Endian, false)
		c.BitSize = bits
		c.BitSizePlus = bits + 1
	})
	fv := b.EmitWithID(ir.CAST, func(c *ir.Code) {
		c.Ref = tmp
		c.Type = floatStorage
		c.FromType = intStorage
		c.CastType = ir.CastIntBitsToFloat
	})
	if field.Name != nil {
		b.Bind(field.Name.Name, fv)
	}
	return nil
}

// coderStrLiteral encodes/decodes a fixed magic-byte sequence. The length
// is known at lower time, so the per-byte encode/assert is unrolled
// rather than driven by a runtime counter loop, spec.md §4.E.
func (b *Builder) coderStrLiteral(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.StrLiteralType) error {
	for i, lit := range t.Value {
		if !ctx.decode {
			idx := b.ImmediateInt(uint64(i))
			elem := b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = fieldID; c.Right = idx })
			b.Emit(ir.ENCODE_INT, func(c *ir.Code) {
				c.Ref = elem
				c.Left = ctx.stream
				c.BitSize = 8
				c.BitSizePlus = 9
			})
			continue
		}
		got := b.EmitWithID(ir.DECODE_INT, func(c *ir.Code) {
			c.Left = ctx.stream
			c.BitSize = 8
			c.BitSizePlus = 9
		})
		want := b.ImmediateInt(uint64(lit))
		b.Emit(ir.ASSERT, func(c *ir.Code) { c.Ref = got; c.Param = []ir.ObjectID{want} })
	}
	return nil
}

func (b *Builder) coderArray(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.ArrayType, rest []*ast.FieldDecl, shouldInitRecursive bool) error {
	elemStorage, err := b.StorageOf(t.Elem)
	if err != nil {
		return err
	}
	elemIsInt := len(elemStorage) > 0 && (elemStorage[0].Tag == ir.StUint || elemStorage[0].Tag == ir.StInt)
	elemBits, _ := storageBitSize(elemStorage)

	switch {
	case t.Len != nil:
		if lit, ok := t.Len.(*ast.IntLit); ok && elemIsInt {
			n := lit.Value
			op := ir.ENCODE_INT_VECTOR_FIXED
			if ctx.decode {
				op = ir.DECODE_INT_VECTOR_FIXED
			}
			id := b.EmitWithID(op, func(c *ir.Code) {
				c.Ref = fieldID
				c.Left = ctx.stream
				c.BitSize = elemBits
				c.ArrayLength = b.ImmediateInt(n)
			})
			if ctx.decode && field.Name != nil {
				b.Bind(field.Name.Name, id)
			}
			return nil
		}
		if lit, ok := t.Len.(*ast.IntLit); ok {
			// should_init_recursive propagates unchanged through a
			// literal-length array's element recursion (bmgen/encode.cpp
			// lines ~82/273): a fixed count of elements is still one
			// statically-known call site per element, not a dynamically
			// sized loop, so recursive-struct init/check still belongs to
			// the field itself.
			return b.coderArrayCounterLoop(ctx, field, fieldID, t.Elem, b.ImmediateInt(lit.Value), shouldInitRecursive)
		}
		n, err := b.LowerExpr(t.Len)
		if err != nil {
			return err
		}
		if elemIsInt {
			b.Emit(ir.LENGTH_CHECK, func(c *ir.Code) { c.Ref = n })
			if ctx.decode {
				b.Emit(ir.RESERVE_SIZE, func(c *ir.Code) { c.Ref = n; c.ReserveType = ir.ReserveVector })
			}
			op := ir.ENCODE_INT_VECTOR
			if ctx.decode {
				op = ir.DECODE_INT_VECTOR
			}
			id := b.EmitWithID(op, func(c *ir.Code) {
				c.Ref = fieldID
				c.Left = ctx.stream
				c.Right = n
				c.BitSize = elemBits
			})
			if ctx.decode && field.Name != nil {
				b.Bind(field.Name.Name, id)
			}
			return nil
		}
		// A dynamic/runtime-length array's element loop forces
		// should_init_recursive to false (bmgen/encode.cpp line 145 encode,
		// 283 decode): each element's recursive-struct check belongs to the
		// loop's single synthesized call site, not to the field, since the
		// number of elements isn't known until the loop runs.
		return b.coderArrayCounterLoop(ctx, field, fieldID, t.Elem, n, false)

	default:
		return b.coderOpenEndedArray(ctx, field, fieldID, t, elemIsInt, elemBits, rest)
	}
}

func (b *Builder) coderArrayCounterLoop(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, elem ast.Type, n ir.ObjectID, shouldInitRecursive bool) error {
	counter := b.DefineCounter(0, 32)
	cmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BLt; c.Left = counter; c.Right = n })
	b.EmitWithID(ir.LOOP_CONDITION, func(c *ir.Code) { c.Ref = cmp })
	b.PushScope()
	elemID := b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = fieldID; c.Right = counter })
	subField := &ast.FieldDecl{Pos: field.Pos, Type: elem}
	if err := b.coderFieldType(ctx, subField, elemID, elem, nil, shouldInitRecursive); err != nil {
		return err
	}
	b.PopScope()
	b.Emit(ir.INC, func(c *ir.Code) { c.Ref = counter })
	b.Emit(ir.END_LOOP, nil)
	return nil
}

// coderOpenEndedArray implements spec.md §4.E "Open-ended vector decode".
// It dispatches on ast.FollowKind the way bmgen/encode.cpp dispatches on
// Follow/eventual_follow: FollowConstant peeks the trailing marker bytes
// and compares them (lines ~450-498, the real opcode is PEEK_INT_VECTOR);
// FollowEnd decodes until CAN_READ is false (lines ~294-320); FollowNone
// first tries to prove the tail is a statically fixed number of bytes and
// uses REMAIN_BYTES plus a divisibility assert (lines ~321-360,
// eventual_follow==fixed), falling back to the CAN_READ loop when it
// can't. is_alignment_vector (byte-alignment padding vectors) has no
// equivalent construct in this front end's ast.ArrayType and so isn't
// dispatched here.
func (b *Builder) coderOpenEndedArray(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.ArrayType, elemIsInt bool, elemBits uint32, rest []*ast.FieldDecl) error {
	switch t.Follow {
	case ast.FollowConstant:
		return b.coderFollowConstantArray(ctx, field, fieldID, t, elemIsInt, elemBits)

	case ast.FollowNone:
		if elemIsInt {
			if tailBits, ok := staticTailBits(b, rest); ok && tailBits%8 == 0 && elemBits%8 == 0 {
				return b.coderFixedRemainderArray(ctx, field, fieldID, elemBits, tailBits/8)
			}
		}
		fallthrough

	case ast.FollowEnd:
		fallthrough
	default:
		return b.coderUntilEOFArray(ctx, field, fieldID, elemIsInt, elemBits)
	}
}

// coderUntilEOFArray decodes elements until CAN_READ goes false (encode:
// until the vector's own ARRAY_SIZE is exhausted) — the follow==end /
// sub-byte-length-container case, bmgen/encode.cpp lines ~294-320.
func (b *Builder) coderUntilEOFArray(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, elemIsInt bool, elemBits uint32) error {
	counter := b.DefineCounter(0, 32)
	b.Emit(ir.LOOP_INFINITE, nil)
	b.PushScope()
	if ctx.decode {
		canRead := b.EmitWithID(ir.CAN_READ, func(c *ir.Code) { c.Ref = ctx.stream })
		b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = canRead; c.UOp = ir.UNot })
		b.Emit(ir.BREAK, nil)
		b.Emit(ir.END_IF, nil)
		if elemIsInt {
			b.EmitWithID(ir.DECODE_INT, func(c *ir.Code) { c.Left = ctx.stream; c.BitSize = elemBits; c.BitSizePlus = elemBits + 1 })
		}
	} else {
		size := b.EmitWithID(ir.ARRAY_SIZE, func(c *ir.Code) { c.Ref = fieldID })
		cmp := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BGe; c.Left = counter; c.Right = size })
		b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = cmp })
		b.Emit(ir.BREAK, nil)
		b.Emit(ir.END_IF, nil)
		if elemIsInt {
			elemID := b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = fieldID; c.Right = counter })
			b.Emit(ir.ENCODE_INT, func(c *ir.Code) { c.Ref = elemID; c.Left = ctx.stream; c.BitSize = elemBits; c.BitSizePlus = elemBits + 1 })
		}
	}
	b.Emit(ir.INC, func(c *ir.Code) { c.Ref = counter })
	b.PopScope()
	b.Emit(ir.END_LOOP, nil)
	return nil
}

// coderFixedRemainderArray implements bmgen/encode.cpp's eventual_follow==
// fixed branch (lines ~321-360): the container ends after the current
// vector plus a statically-known tailBytes of further fields, so the
// element count can be derived from REMAIN_BYTES rather than scanned for
// byte by byte. Encode already knows its own length (ARRAY_SIZE), so only
// decode differs from coderUntilEOFArray.
func (b *Builder) coderFixedRemainderArray(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, elemBits uint32, tailBytes uint32) error {
	if !ctx.decode {
		return b.coderUntilEOFArray(ctx, field, fieldID, true, elemBits)
	}
	remain := b.EmitWithID(ir.REMAIN_BYTES, func(c *ir.Code) { c.Ref = ctx.stream })
	tailImm := b.ImmediateInt(uint64(tailBytes))
	remaining := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BSub; c.Left = remain; c.Right = tailImm })

	elemBytes := elemBits / 8
	elemBytesImm := b.ImmediateInt(uint64(elemBytes))
	modID := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BMod; c.Left = remaining; c.Right = elemBytesImm })
	zero := b.ImmediateInt(0)
	eqZero := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BEq; c.Left = modID; c.Right = zero })
	b.Emit(ir.ASSERT, func(c *ir.Code) { c.Ref = eqZero })

	count := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BDiv; c.Left = remaining; c.Right = elemBytesImm })
	b.Emit(ir.LENGTH_CHECK, func(c *ir.Code) { c.Ref = count })
	b.Emit(ir.RESERVE_SIZE, func(c *ir.Code) { c.Ref = count; c.ReserveType = ir.ReserveVector })
	id := b.EmitWithID(ir.DECODE_INT_VECTOR, func(c *ir.Code) {
		c.Ref = fieldID
		c.Left = ctx.stream
		c.Right = count
		c.BitSize = elemBits
	})
	if field.Name != nil {
		b.Bind(field.Name.Name, id)
	}
	return nil
}

// coderFollowConstantArray implements bmgen/encode.cpp's follow==constant
// branch (lines ~450-498): decode one element at a time, peeking ahead
// after each one for the literal trailing byte sequence and stopping once
// it's seen. PEEK_INT_VECTOR is this front end's equivalent of the
// original's same-named opcode; encode has nothing extra to write for the
// marker (it isn't a coded sibling field in this ast — FollowLit is
// carried directly on the array's type), so it just writes its elements
// like the plain end-of-vector case.
func (b *Builder) coderFollowConstantArray(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.ArrayType, elemIsInt bool, elemBits uint32) error {
	litLen := uint32(len(t.FollowLit))
	if !ctx.decode || litLen == 0 {
		return b.coderUntilEOFArray(ctx, field, fieldID, elemIsInt, elemBits)
	}

	holderType := b.Mod.GetStorageRef(ir.Storages{{Tag: ir.StArray, Size: litLen}, {Tag: ir.StUint, Size: 8}})
	peekLen := b.ImmediateInt(uint64(litLen))

	b.Emit(ir.LOOP_INFINITE, nil)
	b.PushScope()
	holder := b.EmitWithID(ir.PEEK_INT_VECTOR, func(c *ir.Code) {
		c.Left = ctx.stream
		c.Right = peekLen
		c.BitSize = 8
		c.Type = holderType
	})

	var matched ir.ObjectID
	for i, want := range t.FollowLit {
		idx := b.ImmediateInt(uint64(i))
		got := b.EmitWithID(ir.INDEX, func(c *ir.Code) { c.Left = holder; c.Right = idx })
		wantImm := b.ImmediateInt(uint64(want))
		eq := b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BEq; c.Left = got; c.Right = wantImm })
		if matched == 0 {
			matched = eq
			continue
		}
		matched = b.EmitWithID(ir.BINARY, func(c *ir.Code) { c.BOp = ir.BAnd; c.Left = matched; c.Right = eq })
	}

	b.EmitWithID(ir.IF, func(c *ir.Code) { c.Ref = matched })
	b.Emit(ir.BREAK, nil)
	b.Emit(ir.ELSE, nil)
	if elemIsInt {
		b.EmitWithID(ir.DECODE_INT, func(c *ir.Code) { c.Left = ctx.stream; c.BitSize = elemBits; c.BitSizePlus = elemBits + 1 })
	}
	b.Emit(ir.END_IF, nil)
	b.PopScope()
	b.Emit(ir.END_LOOP, nil)
	return nil
}

// staticTailBits sums the bit width of rest when every field in it has a
// statically known, unconditional fixed width — the analogue of
// bmgen/transform.cpp's enclosing_format.fixed_tail_size computation run
// at lowering time over this front end's ast.FieldDecl list rather than
// over a resolved bmgen::Format graph. Any conditional field, sub-range,
// bit-field member, or field whose own width isn't statically known makes
// the tail unprovable, matching the conservative behavior the original
// falls back to when eventual_follow can't be proven fixed either.
func staticTailBits(b *Builder, rest []*ast.FieldDecl) (uint32, bool) {
	var total uint32
	for _, f := range rest {
		if f.Condition != nil || f.BitWidth != nil || f.SubByteLength != nil {
			return 0, false
		}
		bits, ok := staticTypeBits(b, f.Type)
		if !ok {
			return 0, false
		}
		total += bits
	}
	return total, true
}

func staticTypeBits(b *Builder, t ast.Type) (uint32, bool) {
	switch t := t.(type) {
	case *ast.IntType:
		return uint32(t.Bits), true
	case *ast.FloatType:
		return uint32(t.Bits), true
	case *ast.BoolType:
		return 8, true
	case *ast.StrLiteralType:
		return uint32(len(t.Value)) * 8, true
	case *ast.EnumType:
		_, bits := b.enumUnderlying(t.Ref.Name)
		return bits, true
	case *ast.IdentType:
		if t.Underlying != nil {
			return staticTypeBits(b, t.Underlying)
		}
		return 0, false
	case *ast.ArrayType:
		if t.Len == nil {
			return 0, false
		}
		lit, ok := t.Len.(*ast.IntLit)
		if !ok {
			return 0, false
		}
		elemBits, ok := staticTypeBits(b, t.Elem)
		if !ok {
			return 0, false
		}
		return elemBits * uint32(lit.Value), true
	default:
		return 0, false
	}
}

// coderStructCall emits the call to a peer format's encoder/decoder.
// recursive marks t as *ast.RecursiveStructType; shouldInitRecursive is
// bmgen/encode.cpp's should_init_recursive (see coderFieldType's doc
// comment) and gates whether this particular call site is the one that
// emits the CHECK_RECURSIVE_STRUCT/INIT_RECURSIVE_STRUCT guard.
func (b *Builder) coderStructCall(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, formatName string, recursive, shouldInitRecursive bool) error {
	peer := b.LookupIdentByName(formatName)
	if !ctx.decode {
		if recursive && shouldInitRecursive {
			b.Emit(ir.CHECK_RECURSIVE_STRUCT, func(c *ir.Code) { c.Ref = fieldID })
		}
		b.Emit(ir.CALL_ENCODE, func(c *ir.Code) { c.Left = peer; c.Right = fieldID; c.Ref = ctx.stream })
		return nil
	}
	if recursive && shouldInitRecursive {
		b.Emit(ir.INIT_RECURSIVE_STRUCT, func(c *ir.Code) { c.Ref = fieldID })
	}
	id := b.EmitWithID(ir.CALL_DECODE, func(c *ir.Code) { c.Left = peer; c.Ref = ctx.stream })
	if field.Name != nil {
		b.Bind(field.Name.Name, id)
	}
	return nil
}

func (b *Builder) coderEnum(ctx *coderCtx, field *ast.FieldDecl, fieldID ir.ObjectID, t *ast.EnumType) error {
	enumID := b.LookupIdentByName(t.Ref.Name)
	underlying, bits := b.enumUnderlying(t.Ref.Name)
	enumStorage := b.Mod.GetStorageRef(ir.Storages{{Tag: ir.StEnum, Ref: enumID}})
	intStorage := b.Mod.GetStorageRef(underlying)
	if !ctx.decode {
		asInt := b.EmitWithID(ir.CAST, func(c *ir.Code) {
			c.Ref = fieldID
			c.Type = intStorage
			c.FromType = enumStorage
			c.CastType = ir.CastEnumToInt
		})
		b.Emit(ir.ENCODE_INT, func(c *ir.Code) { c.Ref = asInt; c.Left = ctx.stream; c.BitSize = bits; c.BitSizePlus = bits + 1 })
		return nil
	}
	raw := b.EmitWithID(ir.DECODE_INT, func(c *ir.Code) { c.Left = ctx.stream; c.BitSize = bits; c.BitSizePlus = bits + 1 })
	asEnum := b.EmitWithID(ir.CAST, func(c *ir.Code) {
		c.Ref = raw
		c.Type = enumStorage
		c.FromType = intStorage
		c.CastType = ir.CastIntToEnum
	})
	if field.Name != nil {
		b.Bind(field.Name.Name, asEnum)
	}
	return nil
}

func (b *Builder) enumUnderlying(name string) (ir.Storages, uint32) {
	if e, ok := b.enums[name]; ok {
		if it, ok := e.Base.(*ast.IntType); ok {
			return ir.Storages{{Tag: ir.StUint, Size: uint32(it.Bits)}}, uint32(it.Bits)
		}
	}
	return ir.Storages{{Tag: ir.StUint, Size: 32}}, 32
}

func toIREndian(spec ast.EndianSpec) ir.EndianExpr {
	return toIREndianSpec(spec, false)
}

func toIREndianSpec(spec ast.EndianSpec, signed bool) ir.EndianExpr {
	e := ir.EndianExpr{Signed: signed}
	switch spec.Endian {
	case ast.EndianBig:
		e.Endian = ir.EndianBig
	case ast.EndianLittle:
		e.Endian = ir.EndianLittle
	case ast.EndianNative:
		e.Endian = ir.EndianNative
	case ast.EndianDynamic:
		e.Endian = ir.EndianDynamic
	default:
		e.Endian = ir.EndianUnspec
	}
	return e
}
