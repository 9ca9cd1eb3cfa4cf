package serialize

import (
	"bufio"

	"github.com/mna/bfcore/ir"
)

// codeField enumerates every Code field in the fixed declared order
// spec.md §6.3 requires ("present fields in declared order"). The index
// of an entry here is its bit position in the per-record presence
// Varint written ahead of the field values.
type codeField int

const (
	fIdent codeField = iota
	fRef
	fLeft
	fRight
	fBelong
	fBOp
	fUOp
	fType
	fFromType
	fCastType
	fIntValue
	fIntValue64
	fBitSize
	fBitSizePlus
	fEndian
	fFuncType
	fMergeMode
	fCheckAt
	fPackedOpType
	fReserveType
	fSubRangeType
	fFallback
	fMetadata
	fParam
	fPhiParams
	fEncodeFlags
	fDecodeFlags
	fArrayLength
	fStringRef

	codeFieldCount
)

// present reports, for one Code record, which of the above fields hold a
// non-zero value and so must be written.
func present(c *ir.Code) uint64 {
	var mask uint64
	set := func(f codeField) { mask |= 1 << uint(f) }
	if c.Ident.Valid() {
		set(fIdent)
	}
	if c.Ref.Valid() {
		set(fRef)
	}
	if c.Left.Valid() {
		set(fLeft)
	}
	if c.Right.Valid() {
		set(fRight)
	}
	if c.Belong.Valid() {
		set(fBelong)
	}
	if c.BOp != 0 {
		set(fBOp)
	}
	if c.UOp != 0 {
		set(fUOp)
	}
	if c.Type != 0 {
		set(fType)
	}
	if c.FromType != 0 {
		set(fFromType)
	}
	if c.CastType != 0 {
		set(fCastType)
	}
	if c.IntValue != 0 {
		set(fIntValue)
	}
	if c.IntValue64 != 0 {
		set(fIntValue64)
	}
	if c.BitSize != 0 {
		set(fBitSize)
	}
	if c.BitSizePlus != 0 {
		set(fBitSizePlus)
	}
	if c.Endian.Endian != ir.EndianUnspec || c.Endian.Signed || c.Endian.DynamicRef.Valid() {
		set(fEndian)
	}
	if c.FuncType != 0 {
		set(fFuncType)
	}
	if c.MergeMode != 0 {
		set(fMergeMode)
	}
	if c.CheckAt != 0 {
		set(fCheckAt)
	}
	if c.PackedOpType != 0 {
		set(fPackedOpType)
	}
	if c.ReserveType != 0 {
		set(fReserveType)
	}
	if c.SubRangeType != 0 {
		set(fSubRangeType)
	}
	if c.Fallback.Valid() {
		set(fFallback)
	}
	if c.Metadata.Valid() {
		set(fMetadata)
	}
	if len(c.Param) > 0 {
		set(fParam)
	}
	if len(c.PhiParams) > 0 {
		set(fPhiParams)
	}
	if c.EncodeFlags != 0 {
		set(fEncodeFlags)
	}
	if c.DecodeFlags != 0 {
		set(fDecodeFlags)
	}
	if c.ArrayLength.Valid() {
		set(fArrayLength)
	}
	if c.StringRef.Valid() {
		set(fStringRef)
	}
	return mask
}

func writeCode(w *bufio.Writer, c *ir.Code) error {
	if err := WriteVarint(w, uint64(c.Op)); err != nil {
		return wrapWriteErr(err)
	}
	mask := present(c)
	if err := WriteVarint(w, mask); err != nil {
		return wrapWriteErr(err)
	}
	for f := codeField(0); f < codeFieldCount; f++ {
		if mask&(1<<uint(f)) == 0 {
			continue
		}
		if err := writeCodeField(w, c, f); err != nil {
			return err
		}
	}
	return nil
}

func writeCodeField(w *bufio.Writer, c *ir.Code, f codeField) error {
	v := func(n uint64) error { return wrapWriteErr(WriteVarint(w, n)) }
	switch f {
	case fIdent:
		return v(uint64(c.Ident))
	case fRef:
		return v(uint64(c.Ref))
	case fLeft:
		return v(uint64(c.Left))
	case fRight:
		return v(uint64(c.Right))
	case fBelong:
		return v(uint64(c.Belong))
	case fBOp:
		return v(uint64(c.BOp))
	case fUOp:
		return v(uint64(c.UOp))
	case fType:
		return v(uint64(c.Type))
	case fFromType:
		return v(uint64(c.FromType))
	case fCastType:
		return v(uint64(c.CastType))
	case fIntValue:
		return v(c.IntValue)
	case fIntValue64:
		return v(c.IntValue64)
	case fBitSize:
		return v(uint64(c.BitSize))
	case fBitSizePlus:
		return v(uint64(c.BitSizePlus))
	case fEndian:
		if err := v(uint64(c.Endian.Endian)); err != nil {
			return err
		}
		b := byte(0)
		if c.Endian.Signed {
			b = 1
		}
		if err := wrapWriteErr(w.WriteByte(b)); err != nil {
			return err
		}
		return v(uint64(c.Endian.DynamicRef))
	case fFuncType:
		return v(uint64(c.FuncType))
	case fMergeMode:
		return v(uint64(c.MergeMode))
	case fCheckAt:
		return v(uint64(c.CheckAt))
	case fPackedOpType:
		return v(uint64(c.PackedOpType))
	case fReserveType:
		return v(uint64(c.ReserveType))
	case fSubRangeType:
		return v(uint64(c.SubRangeType))
	case fFallback:
		return v(uint64(c.Fallback))
	case fMetadata:
		return v(uint64(c.Metadata))
	case fParam:
		if err := v(uint64(len(c.Param))); err != nil {
			return err
		}
		for _, p := range c.Param {
			if err := v(uint64(p)); err != nil {
				return err
			}
		}
		return nil
	case fPhiParams:
		if err := v(uint64(len(c.PhiParams))); err != nil {
			return err
		}
		for _, p := range c.PhiParams {
			if err := v(uint64(p.Condition)); err != nil {
				return err
			}
			if err := v(uint64(p.Assignment)); err != nil {
				return err
			}
		}
		return nil
	case fEncodeFlags:
		return v(uint64(c.EncodeFlags))
	case fDecodeFlags:
		return v(uint64(c.DecodeFlags))
	case fArrayLength:
		return v(uint64(c.ArrayLength))
	case fStringRef:
		return v(uint64(c.StringRef))
	default:
		return nil
	}
}

func readCode(r *bufio.Reader) (ir.Code, error) {
	var c ir.Code
	op, err := ReadVarint(r)
	if err != nil {
		return c, wrapReadErr(err)
	}
	c.Op = ir.AbstractOp(op)
	mask, err := ReadVarint(r)
	if err != nil {
		return c, wrapReadErr(err)
	}
	for f := codeField(0); f < codeFieldCount; f++ {
		if mask&(1<<uint(f)) == 0 {
			continue
		}
		if err := readCodeField(r, &c, f); err != nil {
			return c, err
		}
	}
	return c, nil
}

func readCodeField(r *bufio.Reader, c *ir.Code, f codeField) error {
	u := func() (uint64, error) {
		n, err := ReadVarint(r)
		return n, wrapReadErr(err)
	}
	switch f {
	case fIdent:
		n, err := u()
		c.Ident = ir.ObjectID(n)
		return err
	case fRef:
		n, err := u()
		c.Ref = ir.ObjectID(n)
		return err
	case fLeft:
		n, err := u()
		c.Left = ir.ObjectID(n)
		return err
	case fRight:
		n, err := u()
		c.Right = ir.ObjectID(n)
		return err
	case fBelong:
		n, err := u()
		c.Belong = ir.ObjectID(n)
		return err
	case fBOp:
		n, err := u()
		c.BOp = ir.BinOp(n)
		return err
	case fUOp:
		n, err := u()
		c.UOp = ir.UnOp(n)
		return err
	case fType:
		n, err := u()
		c.Type = ir.StorageRef(n)
		return err
	case fFromType:
		n, err := u()
		c.FromType = ir.StorageRef(n)
		return err
	case fCastType:
		n, err := u()
		c.CastType = ir.CastType(n)
		return err
	case fIntValue:
		n, err := u()
		c.IntValue = n
		return err
	case fIntValue64:
		n, err := u()
		c.IntValue64 = n
		return err
	case fBitSize:
		n, err := u()
		c.BitSize = uint32(n)
		return err
	case fBitSizePlus:
		n, err := u()
		c.BitSizePlus = uint32(n)
		return err
	case fEndian:
		e, err := u()
		if err != nil {
			return err
		}
		b, err := r.ReadByte()
		if err != nil {
			return wrapReadErr(err)
		}
		ref, err := u()
		if err != nil {
			return err
		}
		c.Endian = ir.EndianExpr{Endian: ir.Endian(e), Signed: b != 0, DynamicRef: ir.ObjectID(ref)}
		return nil
	case fFuncType:
		n, err := u()
		c.FuncType = ir.FuncType(n)
		return err
	case fMergeMode:
		n, err := u()
		c.MergeMode = ir.MergeMode(n)
		return err
	case fCheckAt:
		n, err := u()
		c.CheckAt = ir.CheckAt(n)
		return err
	case fPackedOpType:
		n, err := u()
		c.PackedOpType = ir.PackedOpType(n)
		return err
	case fReserveType:
		n, err := u()
		c.ReserveType = ir.ReserveType(n)
		return err
	case fSubRangeType:
		n, err := u()
		c.SubRangeType = ir.SubRangeType(n)
		return err
	case fFallback:
		n, err := u()
		c.Fallback = ir.ObjectID(n)
		return err
	case fMetadata:
		n, err := u()
		c.Metadata = ir.ObjectID(n)
		return err
	case fParam:
		count, err := u()
		if err != nil {
			return err
		}
		c.Param = make([]ir.ObjectID, count)
		for i := range c.Param {
			n, err := u()
			if err != nil {
				return err
			}
			c.Param[i] = ir.ObjectID(n)
		}
		return nil
	case fPhiParams:
		count, err := u()
		if err != nil {
			return err
		}
		c.PhiParams = make([]ir.PhiParam, count)
		for i := range c.PhiParams {
			cond, err := u()
			if err != nil {
				return err
			}
			assign, err := u()
			if err != nil {
				return err
			}
			c.PhiParams[i] = ir.PhiParam{Condition: ir.ObjectID(cond), Assignment: ir.ObjectID(assign)}
		}
		return nil
	case fEncodeFlags:
		n, err := u()
		c.EncodeFlags = uint8(n)
		return err
	case fDecodeFlags:
		n, err := u()
		c.DecodeFlags = uint8(n)
		return err
	case fArrayLength:
		n, err := u()
		c.ArrayLength = ir.ObjectID(n)
		return err
	case fStringRef:
		n, err := u()
		c.StringRef = ir.ObjectID(n)
		return err
	default:
		return nil
	}
}
