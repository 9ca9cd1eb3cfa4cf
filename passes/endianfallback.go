package passes

import "github.com/mna/bfcore/ir"

// EndianFallback implements spec.md §4.M: every ENCODE_INT/DECODE_INT
// (and the float/vector opcodes built on top of them) whose EndianExpr
// can't be resolved to a fixed byte order at lowering time —
// EndianNative or EndianDynamic — gets a DEFINE_FALLBACK block choosing
// between an explicit little-endian and big-endian body at runtime. The
// dynamic case reads the byte order off the EndianExpr's DynamicRef
// variable instead of the host's native order.
func EndianFallback(mod *ir.Module) error {
	endianOps := map[ir.AbstractOp]bool{
		ir.ENCODE_INT: true, ir.DECODE_INT: true,
		ir.ENCODE_INT_VECTOR: true, ir.DECODE_INT_VECTOR: true,
		ir.ENCODE_INT_VECTOR_FIXED: true, ir.DECODE_INT_VECTOR_FIXED: true,
	}

	var out []ir.Code
	for i := range mod.Code {
		c := mod.Code[i]
		out = append(out, c)
		if !endianOps[c.Op] || !c.Endian.NeedsFallback() {
			continue
		}

		fallbackID := mod.NewID()
		var fb []ir.Code
		fb = append(fb, ir.Code{Op: ir.DEFINE_FALLBACK, Ident: fallbackID, Ref: c.Ref})
		if c.Endian.Endian == ir.EndianDynamic {
			fb = append(fb, ir.Code{Op: ir.DYNAMIC_ENDIAN_SETUP, Ref: c.Endian.DynamicRef})
		} else {
			fb = append(fb, ir.Code{Op: ir.IS_LITTLE_ENDIAN})
		}
		little := c
		little.Endian = ir.EndianExpr{Endian: ir.EndianLittle, Signed: c.Endian.Signed}
		big := c
		big.Endian = ir.EndianExpr{Endian: ir.EndianBig, Signed: c.Endian.Signed}
		fb = append(fb, ir.Code{Op: ir.IF})
		fb = append(fb, little)
		fb = append(fb, ir.Code{Op: ir.ELSE})
		fb = append(fb, big)
		fb = append(fb, ir.Code{Op: ir.END_IF})
		fb = append(fb, ir.Code{Op: ir.END_FALLBACK, Ident: fallbackID})

		out[len(out)-1].Fallback = fallbackID
		out = append(out, fb...)
	}
	mod.Code = out
	return nil
}
