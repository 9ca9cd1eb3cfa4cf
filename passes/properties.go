package passes

import "github.com/mna/bfcore/ir"

// DeriveProperties implements spec.md §4.K. Every MERGED_CONDITIONAL_FIELD
// left by MergeConditionalFields gets a generated getter/setter pair: the
// getter returns an optional/pointer view of the field guarded by a
// CHECK_UNION per alternative condition, the setter assigns through
// whichever condition currently holds and fails otherwise. Both functions
// are appended right after the field's own DEFINE_FIELD/MERGED_CONDITIONAL_FIELD
// pair — the teacher's coder functions already follow a format's
// END_FORMAT rather than living inside it, so appending derived functions
// inline next to the field they serve keeps every function body
// find-in-one-place without needing a second structural pass to relocate
// them. Every ASSIGN whose target is the merged field is rewritten to
// PROPERTY_ASSIGN so later back-ends know to route through the setter.
//
// This pass also synthesizes a vector-length setter (FuncVectorSetter) for
// every array field whose length was lowered from a single settable ident
// (lower.coderArray's dynamic-length branch leaves that ident as the
// ENCODE_INT_VECTOR/DECODE_INT_VECTOR Right operand): the original
// bm/transform/property_accessor.cpp's can_set_array_length/
// add_array_length_setter/derive_set_array_function grounds the shape of
// the synthesized function (see the inner deriveVectorSetters below).
func DeriveProperties(mod *ir.Module) error {
	if err := deriveVectorSetters(mod); err != nil {
		return err
	}
	type job struct {
		idx      int
		formatID ir.ObjectID
		fieldID  ir.ObjectID
		typeRef  ir.StorageRef
		mode     ir.MergeMode
		conds    []ir.ObjectID
	}
	var jobs []job
	for i, c := range mod.Code {
		if c.Op != ir.MERGED_CONDITIONAL_FIELD {
			continue
		}
		formatID := ir.ObjectID(0)
		if i > 0 && mod.Code[i-1].Op == ir.DEFINE_FIELD {
			formatID = mod.Code[i-1].Belong
		}
		jobs = append(jobs, job{
			idx:      i,
			formatID: formatID,
			fieldID:  c.Ref,
			typeRef:  c.Type,
			mode:     c.MergeMode,
			conds:    append([]ir.ObjectID(nil), c.Param...),
		})
	}
	if len(jobs) == 0 {
		return nil
	}

	optionalRefOf := func(base ir.StorageRef) ir.StorageRef {
		shape, _ := mod.GetStorage(base)
		return mod.GetStorageRef(append(ir.Storages{{Tag: ir.StOptional}}, shape...))
	}

	var out []ir.Code
	ji := 0
	for i, c := range mod.Code {
		out = append(out, c)
		if ji < len(jobs) && jobs[ji].idx == i {
			j := jobs[ji]
			ji++

			getterID := mod.NewID()
			setterID := mod.NewID()
			paramID := mod.NewID()
			optType := optionalRefOf(j.typeRef)
			checkAt := ir.CheckAtPropertyGetterCommon
			if j.mode == ir.MergeVariant {
				checkAt = ir.CheckAtPropertyGetterVariant
			}

			out = append(out, ir.Code{Op: ir.DEFINE_PROPERTY, Ident: j.fieldID, Belong: j.formatID})

			out = append(out, ir.Code{Op: ir.DEFINE_FUNCTION, Ident: getterID, Belong: j.formatID, FuncType: ir.FuncUnionGetter})
			out = append(out, ir.Code{Op: ir.RETURN_TYPE, Type: optType})
			for _, cond := range j.conds {
				out = append(out, ir.Code{Op: ir.CHECK_UNION, Ref: j.fieldID, Left: cond, CheckAt: checkAt})
				out = append(out, ir.Code{Op: ir.IF, Left: cond})
				out = append(out, ir.Code{Op: ir.OPTIONAL_OF, Ref: j.fieldID, Type: optType})
				out = append(out, ir.Code{Op: ir.RETURN})
				out = append(out, ir.Code{Op: ir.END_IF})
			}
			out = append(out, ir.Code{Op: ir.EMPTY_OPTIONAL, Type: optType})
			out = append(out, ir.Code{Op: ir.RETURN})
			out = append(out, ir.Code{Op: ir.END_FUNCTION})
			out = append(out, ir.Code{Op: ir.DECLARE_PROPERTY_GETTER, Ident: j.fieldID, Ref: getterID})

			out = append(out, ir.Code{Op: ir.DEFINE_FUNCTION, Ident: setterID, Belong: j.formatID, FuncType: ir.FuncUnionSetter})
			out = append(out, ir.Code{Op: ir.PROPERTY_INPUT_PARAMETER, Ident: paramID, Type: j.typeRef})
			for _, cond := range j.conds {
				out = append(out, ir.Code{Op: ir.IF, Left: cond})
				out = append(out, ir.Code{Op: ir.SWITCH_UNION, Ref: j.fieldID, Left: cond, CheckAt: ir.CheckAtPropertySetter})
				out = append(out, ir.Code{Op: ir.PROPERTY_ASSIGN, Left: j.fieldID, Right: paramID})
				out = append(out, ir.Code{Op: ir.RET_PROPERTY_SETTER_OK})
				out = append(out, ir.Code{Op: ir.END_IF})
			}
			out = append(out, ir.Code{Op: ir.RET_PROPERTY_SETTER_FAIL})
			out = append(out, ir.Code{Op: ir.END_FUNCTION})
			out = append(out, ir.Code{Op: ir.DECLARE_PROPERTY_SETTER, Ident: j.fieldID, Ref: setterID})

			out = append(out, ir.Code{Op: ir.END_PROPERTY, Ident: j.fieldID})
		}
	}
	mod.Code = out

	for i := range mod.Code {
		c := &mod.Code[i]
		if c.Op != ir.ASSIGN {
			continue
		}
		for _, j := range jobs {
			if c.Left == j.fieldID {
				c.Op = ir.PROPERTY_ASSIGN
				break
			}
		}
	}
	return nil
}

// deriveVectorSetters implements spec.md §4.K's "array-length-setter"
// component: for every DEFINE_FIELD holding an open/dynamic-length vector
// whose length was resolved at lowering time to a single other field or
// state ident, synthesize a FuncVectorSetter function mirroring the
// original's add_array_length_setter: assert the new length fits the
// length field's bit width, cast, and assign into both the length field
// and the vector itself. Grounded on
// bm/transform/property_accessor.cpp's can_set_array_length /
// access_array_length / add_array_length_setter / derive_set_array_function.
func deriveVectorSetters(mod *ir.Module) error {
	// lower.coderArray only leaves a bare ident on ENCODE_INT_VECTOR/
	// DECODE_INT_VECTOR's Right operand for the single-ident length case;
	// any other length expression is computed through an intermediate
	// BINARY/CAST/ACCESS opcode first, so it won't match a DEFINE_FIELD or
	// DEFINE_STATE ident below — this doubles as the can_set_array_length
	// gate without needing a separate AST-level check.
	lengthIdent := make(map[ir.ObjectID]ir.ObjectID)
	for _, c := range mod.Code {
		if (c.Op == ir.ENCODE_INT_VECTOR || c.Op == ir.DECODE_INT_VECTOR) && c.Right != 0 {
			lengthIdent[c.Ref] = c.Right
		}
	}
	if len(lengthIdent) == 0 {
		return nil
	}

	type decl struct {
		isState bool
		typeRef ir.StorageRef
	}
	decls := make(map[ir.ObjectID]decl)
	fieldFormat := make(map[ir.ObjectID]ir.ObjectID)
	fieldEndIdx := make(map[ir.ObjectID]int)
	for i, c := range mod.Code {
		switch c.Op {
		case ir.DEFINE_FIELD:
			decls[c.Ident] = decl{typeRef: c.Type}
			fieldFormat[c.Ident] = c.Belong
		case ir.DEFINE_STATE:
			decls[c.Ident] = decl{isState: true, typeRef: c.Type}
		case ir.END_FIELD:
			fieldEndIdx[c.Belong] = i
		}
	}

	type setterJob struct {
		endIdx     int
		vectorID   ir.ObjectID
		vectorType ir.StorageRef
		formatID   ir.ObjectID
		lenID      ir.ObjectID
		lenIsState bool
		lenBits    uint32
	}
	var jobs []setterJob
	for vecID, lenID := range lengthIdent {
		vecDecl, ok := decls[vecID]
		if !ok || vecDecl.isState {
			continue
		}
		shape, ok := mod.GetStorage(vecDecl.typeRef)
		if !ok || len(shape) == 0 || shape[0].Tag != ir.StVector {
			continue
		}
		if len(shape) > 1 && shape[1].Tag == ir.StVariant {
			// can_set_array_length explicitly excludes union-typed lengths.
			continue
		}
		lenDecl, ok := decls[lenID]
		if !ok {
			continue
		}
		lenShape, ok := mod.GetStorage(lenDecl.typeRef)
		if !ok || len(lenShape) == 0 || lenShape[0].Size == 0 {
			continue
		}
		endIdx, ok := fieldEndIdx[vecID]
		if !ok {
			continue
		}
		jobs = append(jobs, setterJob{
			endIdx:     endIdx,
			vectorID:   vecID,
			vectorType: vecDecl.typeRef,
			formatID:   fieldFormat[vecID],
			lenID:      lenID,
			lenIsState: lenDecl.isState,
			lenBits:    lenShape[0].Size,
		})
	}
	if len(jobs) == 0 {
		return nil
	}

	byEndIdx := make(map[int]setterJob, len(jobs))
	for _, j := range jobs {
		byEndIdx[j.endIdx] = j
	}

	var out []ir.Code
	for i, c := range mod.Code {
		out = append(out, c)
		j, ok := byEndIdx[i]
		if !ok {
			continue
		}

		setterID := mod.NewID()
		propID := mod.NewID()
		maxValue := uint64(1)<<j.lenBits - 1

		out = append(out, ir.Code{Op: ir.DEFINE_FUNCTION, Ident: setterID, Belong: j.formatID, FuncType: ir.FuncVectorSetter})
		out = append(out, ir.Code{Op: ir.PROPERTY_INPUT_PARAMETER, Ident: propID, Left: j.vectorID, Right: setterID, Type: j.vectorType})
		out = append(out, ir.Code{Op: ir.RETURN_TYPE, Type: j.vectorType})

		// access_array_length: resolve the length target, hoisting a free
		// state-variable reference into a STATE_VARIABLE_PARAMETER exactly as
		// retrieve_var does when the length field lives outside this
		// function's own parameter list.
		lenTarget := j.lenID
		if j.lenIsState {
			svParam := mod.NewID()
			out = append(out, ir.Code{Op: ir.STATE_VARIABLE_PARAMETER, Ident: svParam, Ref: j.lenID})
			lenTarget = svParam
		}

		newLen := mod.NewID()
		out = append(out, ir.Code{Op: ir.ARRAY_SIZE, Ident: newLen, Ref: propID})
		maxImm := mod.NewID()
		out = append(out, ir.Code{Op: ir.IMMEDIATE_INT, Ident: maxImm, IntValue: maxValue})
		cmp := mod.NewID()
		out = append(out, ir.Code{Op: ir.BINARY, Ident: cmp, BOp: ir.BLe, Left: newLen, Right: maxImm})
		out = append(out, ir.Code{Op: ir.ASSERT, Ref: cmp, Belong: setterID})

		// dst is the length field's own width; src is one bit wider "to
		// force insert cast" the same way add_array_length_setter does, so
		// back-ends never see a same-width no-op cast here.
		dstStorage := ir.Storages{{Tag: ir.StUint, Size: j.lenBits}}
		srcStorage := ir.Storages{{Tag: ir.StUint, Size: j.lenBits + 1}}
		castedLen := mod.NewID()
		out = append(out, ir.Code{
			Op: ir.CAST, Ident: castedLen, Ref: newLen,
			Type: mod.GetStorageRef(dstStorage), FromType: mod.GetStorageRef(srcStorage),
			CastType: ir.CastIntNarrow,
		})
		out = append(out, ir.Code{Op: ir.ASSIGN, Left: lenTarget, Right: castedLen})
		out = append(out, ir.Code{Op: ir.ASSIGN, Left: j.vectorID, Right: propID})

		out = append(out, ir.Code{Op: ir.RET_PROPERTY_SETTER_OK})
		out = append(out, ir.Code{Op: ir.END_FUNCTION})
		out = append(out, ir.Code{Op: ir.DECLARE_FUNCTION, Ident: j.vectorID, Ref: setterID})
	}
	mod.Code = out
	return nil
}
