package passes

import "github.com/mna/bfcore/ir"

// SortImmediates implements the "sort immediates to front" half of
// spec.md §4.N: every IMMEDIATE_INT/IMMEDIATE_INT64 opcode moves ahead of
// the DEFINE_PROGRAM record, in the relative order they first appear, so
// a back-end can allocate constant-pool slots before touching any
// executable opcode. Everything else keeps its original relative order.
func SortImmediates(mod *ir.Module) error {
	var immediates, rest []ir.Code
	for _, c := range mod.Code {
		if c.Op == ir.IMMEDIATE_INT || c.Op == ir.IMMEDIATE_INT64 {
			immediates = append(immediates, c)
		} else {
			rest = append(rest, c)
		}
	}
	if len(immediates) == 0 {
		return nil
	}

	out := make([]ir.Code, 0, len(mod.Code))
	out = append(out, immediates...)
	out = append(out, rest...)
	mod.Code = out
	return nil
}
