package passes

import "github.com/mna/bfcore/ir"

// DecideBitFieldSize implements spec.md §4.G. It operates on the two
// shapes the lowerer produces for a run of bit-field members: an inline
// BEGIN/END_*_PACKED_OPERATION wrapper (emitted by lower.coderPackedGroup
// for a run of FieldDecls with BitWidth set directly inside a format) and
// a standalone DEFINE_BIT_FIELD/END_BIT_FIELD block (a named ast.BitField
// declaration). Lowering takes each member's width from its own type, not
// from the value of BitWidth, and sets BitSizePlus on every ENCODE_INT/
// DECODE_INT it emits, so a packed group coming from lower is always
// marked PackedFixed; the VARIABLE branch is taken only for a packed group
// holding an opcode with BitSizePlus == 0. A DEFINE_BIT_FIELD block is
// always marked PackedFixed with the sum of its members' storage sizes.
func DecideBitFieldSize(mod *ir.Module) error {
	for i := range mod.Code {
		c := &mod.Code[i]
		switch c.Op {
		case ir.BEGIN_ENCODE_PACKED_OPERATION, ir.BEGIN_DECODE_PACKED_OPERATION:
			end := matchingEnd(mod.Code, i)
			sum, variable := sumPackedBits(mod.Code[i+1 : end])
			if variable {
				c.PackedOpType = ir.PackedVariable
				c.BitSize = 0
			} else {
				c.PackedOpType = ir.PackedFixed
				c.BitSize = sum
			}
			mod.SetBitFieldBounds(c.Ident, c.PackedOpType, sum)

		case ir.DEFINE_BIT_FIELD:
			end := matchingDefEnd(mod.Code, i, ir.END_BIT_FIELD)
			var sum uint32
			for j := i + 1; j < end; j++ {
				if mod.Code[j].Op != ir.DEFINE_FIELD {
					continue
				}
				if shape, ok := mod.GetStorage(mod.Code[j].Type); ok && len(shape) > 0 {
					sum += shape[0].Size
				}
			}
			c.PackedOpType = ir.PackedFixed
			c.BitSize = sum
			mod.SetBitFieldBounds(c.Ident, ir.PackedFixed, sum)
		}
	}
	return nil
}

func sumPackedBits(body []ir.Code) (sum uint32, variable bool) {
	for _, c := range body {
		if c.Op != ir.ENCODE_INT && c.Op != ir.DECODE_INT {
			continue
		}
		if c.BitSizePlus == 0 {
			variable = true
			continue
		}
		sum += c.BitSize
	}
	return sum, variable
}

// matchingEnd finds the END_*_PACKED_OPERATION closing the BEGIN at
// index i; packed-operation groups never nest, so a flat forward scan
// for the next end opcode suffices.
func matchingEnd(code []ir.Code, i int) int {
	for j := i + 1; j < len(code); j++ {
		switch code[j].Op {
		case ir.END_ENCODE_PACKED_OPERATION, ir.END_DECODE_PACKED_OPERATION:
			return j
		}
	}
	return len(code)
}

func matchingDefEnd(code []ir.Code, i int, end ir.AbstractOp) int {
	for j := i + 1; j < len(code); j++ {
		if code[j].Op == end {
			return j
		}
	}
	return len(code)
}
