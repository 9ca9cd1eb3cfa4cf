package passes

import "github.com/mna/bfcore/ir"

// ExpandBitOperations implements spec.md §4.L. Every packed-operation
// wrapper left from lowering/DecideBitFieldSize gets a DEFINE_FALLBACK
// block for back-ends that cannot execute the native packed opcode
// directly: a running accumulator variable is shifted and OR'd (encode)
// or AND'd and shifted (decode) one contained field at a time, in the
// order the fields were declared, which is the bit order
// BEGIN_*_PACKED_OPERATION's native form already commits to. The
// PackedVariable case additionally wraps the accumulation in a loop
// gated by IS_LITTLE_ENDIAN, since a variable-length packed run's byte
// order is only known at encode/decode time.
func ExpandBitOperations(mod *ir.Module) error {
	var out []ir.Code
	for i := 0; i < len(mod.Code); i++ {
		c := mod.Code[i]
		out = append(out, c)
		if c.Op != ir.BEGIN_ENCODE_PACKED_OPERATION && c.Op != ir.BEGIN_DECODE_PACKED_OPERATION {
			continue
		}
		end := matchingEnd(mod.Code, i)
		body := mod.Code[i+1 : end]
		decode := c.Op == ir.BEGIN_DECODE_PACKED_OPERATION

		fallbackID := mod.NewID()
		accID := mod.NewID()
		bitPos := uint32(0)

		var fb []ir.Code
		imm := func(n uint64) ir.ObjectID {
			id := mod.NewID()
			fb = append(fb, ir.Code{Op: ir.IMMEDIATE_INT, Ident: id, IntValue: n})
			return id
		}

		fb = append(fb, ir.Code{Op: ir.DEFINE_FALLBACK, Ident: fallbackID, Ref: c.Ident})
		fb = append(fb, ir.Code{Op: ir.DEFINE_VARIABLE, Ident: accID})
		if c.PackedOpType == ir.PackedVariable {
			fb = append(fb, ir.Code{Op: ir.IS_LITTLE_ENDIAN})
			fb = append(fb, ir.Code{Op: ir.LOOP_CONDITION})
		}
		for _, m := range body {
			if m.Op != ir.ENCODE_INT && m.Op != ir.DECODE_INT {
				continue
			}
			width := m.BitSize
			shiftImm := imm(uint64(bitPos))
			maskImm := imm((uint64(1) << width) - 1)
			if decode {
				shifted := mod.NewID()
				fb = append(fb, ir.Code{Op: ir.BINARY, Ident: shifted, BOp: ir.BShr, Left: accID, Right: shiftImm})
				fb = append(fb, ir.Code{Op: ir.BINARY, Ident: m.Ref, BOp: ir.BAnd, Left: shifted, Right: maskImm})
			} else {
				masked := mod.NewID()
				shifted := mod.NewID()
				fb = append(fb, ir.Code{Op: ir.BINARY, Ident: masked, BOp: ir.BAnd, Left: m.Ref, Right: maskImm})
				fb = append(fb, ir.Code{Op: ir.BINARY, Ident: shifted, BOp: ir.BShl, Left: masked, Right: shiftImm})
				fb = append(fb, ir.Code{Op: ir.BINARY, Ident: accID, BOp: ir.BOr, Left: accID, Right: shifted})
			}
			bitPos += width
		}
		if c.PackedOpType == ir.PackedVariable {
			fb = append(fb, ir.Code{Op: ir.END_LOOP})
		}
		fb = append(fb, ir.Code{Op: ir.END_FALLBACK, Ident: fallbackID})

		out[len(out)-1].Fallback = fallbackID
		out = append(out, fb...)
	}
	mod.Code = out
	return nil
}
