package passes

import (
	"github.com/mna/bfcore/cfg"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// GenerateCFGs implements the "generate CFG" half of spec.md §4.N. A CFG
// is not part of the container format (spec.md §6.3 lists seven sections
// and a CFG isn't one of them); it exists only for the CLI's
// -c/--cfg-output diagnostic flag, built on demand straight from
// Module.IdentToRanges by cfg.Build. This pass's job is to validate that
// every function's body (already final at this point in the pipeline —
// GenerateCFGs runs last) actually cuts into a well-formed graph: every
// block has a valid range and any block ending in IF/LOOP_CONDITION found
// its matching ELSE/END_IF/END_LOOP.
func GenerateCFGs(mod *ir.Module) error {
	for _, r := range mod.IdentToRanges {
		if r.Range.Start >= len(mod.Code) || mod.Code[r.Range.Start].Op != ir.DEFINE_FUNCTION {
			continue
		}
		g := cfg.Build(mod.Code, r.Range)
		for _, b := range g.Blocks {
			if b.Range.Start < r.Range.Start || b.Range.End > r.Range.End {
				return diag.Internal(diag.Site{Op: "generate_cfg"}, "function %d produced an out-of-range block", r.Ident)
			}
			needsBranch := b.Terminator == ir.IF || b.Terminator == ir.LOOP_CONDITION
			if needsBranch && b.CJmp == nil {
				return diag.Internal(diag.Site{Op: "generate_cfg"}, "function %d has an unterminated branch block", r.Ident)
			}
		}
	}
	return nil
}
