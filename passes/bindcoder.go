package passes

import (
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// BindCoders implements spec.md §4.H. lower already emits DEFINE_ENCODER/
// DEFINE_DECODER records at the point each format's coder is synthesized
// or overridden (spec.md §4.E), so this pass's remaining job is to
// confirm the binding actually happened for every format — catching the
// case where a custom Function with FuncCustomEncode/FuncCustomDecode
// was declared but never paired with a matching format.
func BindCoders(mod *ir.Module) error {
	hasEncoder := make(map[ir.ObjectID]bool)
	hasDecoder := make(map[ir.ObjectID]bool)
	var formats []ir.ObjectID

	for _, c := range mod.Code {
		switch c.Op {
		case ir.DEFINE_FORMAT:
			formats = append(formats, c.Ident)
		case ir.DEFINE_ENCODER:
			hasEncoder[c.Left] = true
		case ir.DEFINE_DECODER:
			hasDecoder[c.Left] = true
		}
	}
	for _, f := range formats {
		if !hasEncoder[f] {
			return diag.Internal(diag.Site{Op: "bind_coders"}, "format %d has no encoder bound", f)
		}
		if !hasDecoder[f] {
			return diag.Internal(diag.Site{Op: "bind_coders"}, "format %d has no decoder bound", f)
		}
	}
	return nil
}
