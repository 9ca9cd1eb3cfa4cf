// Package passes implements the fixed transformation pipeline of
// spec.md §4.F-N: fourteen named rewrites run in order over a raw
// ir.Module, turning the output of lower.Build into canonical form.
// Each pass gets its own file, named after its spec.md heading, mirroring
// how the teacher splits its own compiler stages (lang/compiler/compiler.go
// vs. lang/resolver/resolver.go vs. lang/resolver/naming.go: one file per
// named concern rather than one monolithic driver).
package passes

import "github.com/mna/bfcore/ir"

// Run executes every pass in spec.md §4.F-N order, returning the first
// error encountered. The Module is left partially transformed on error,
// matching the no-rollback cancellation model of spec.md §5.
func Run(mod *ir.Module) error {
	steps := []func(*ir.Module) error{
		Flatten,
		DecideBitFieldSize,
		BindCoders,
		SortFormats,
		MergeConditionalFields,
		DeriveProperties,
		ExpandBitOperations,
		EndianFallback,
		TraitAnalysis,
		SortImmediates,
		AddIdentRanges,
		RemapPrograms,
		OptimizeStorageUsage,
		GenerateCFGs,
	}
	for _, step := range steps {
		if err := step(mod); err != nil {
			return err
		}
		mod.RebuildIdentIndex()
	}
	return nil
}
