package passes

import "github.com/mna/bfcore/ir"

// RemapPrograms implements the "remap programs" half of spec.md §4.N:
// Module.Programs is rebuilt from IdentToRanges, since every earlier pass
// in this pipeline may have shifted code indices by inserting fallback
// blocks, synthesized properties, or reordered formats. lower.Build
// appended one entry per DEFINE_PROGRAM directly at build time; that
// entry is now stale and is discarded in favor of AddIdentRanges's
// freshly computed span.
func RemapPrograms(mod *ir.Module) error {
	var programs []ir.Range
	for _, r := range mod.IdentToRanges {
		if r.Range.Start < len(mod.Code) && mod.Code[r.Range.Start].Op == ir.DEFINE_PROGRAM {
			programs = append(programs, r.Range)
		}
	}
	mod.Programs = programs
	return nil
}
