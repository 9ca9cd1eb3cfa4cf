package passes

import (
	"golang.org/x/exp/slices"

	"github.com/mna/bfcore/ir"
)

// OptimizeStorageUsage implements the "optimize type usage" half of
// spec.md §4.N: storage refs are renumbered so the most frequently
// referenced type shapes get the lowest numbers, a small win for any
// back-end encoding Type/FromType fields as a Varint (spec.md §6.3),
// since a low ref costs fewer bytes. Usage is counted across every
// Code.Type and Code.FromType field; ties keep the original relative ref
// order for determinism.
func OptimizeStorageUsage(mod *ir.Module) error {
	usage := map[ir.StorageRef]int{}
	for _, c := range mod.Code {
		if c.Type != 0 {
			usage[c.Type]++
		}
		if c.FromType != 0 {
			usage[c.FromType]++
		}
	}

	refs := mod.StorageRefs()
	shapes := make(map[ir.StorageRef]ir.Storages, len(refs))
	for _, r := range refs {
		s, _ := mod.GetStorage(r)
		shapes[r] = s
	}

	ordered := append([]ir.StorageRef(nil), refs...)
	slices.SortStableFunc(ordered, func(a, b ir.StorageRef) int {
		if usage[a] != usage[b] {
			return usage[b] - usage[a]
		}
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})

	remap := make(map[ir.StorageRef]ir.StorageRef, len(ordered))
	newOrder := make([]ir.StorageRef, len(ordered))
	newShapes := make(map[ir.StorageRef]ir.Storages, len(ordered))
	for i, old := range ordered {
		newRef := ir.StorageRef(i + 1)
		remap[old] = newRef
		newOrder[i] = newRef
		newShapes[newRef] = shapes[old]
	}

	for i := range mod.Code {
		c := &mod.Code[i]
		if c.Type != 0 {
			c.Type = remap[c.Type]
		}
		if c.FromType != 0 {
			c.FromType = remap[c.FromType]
		}
	}
	mod.RebuildStorageTable(newOrder, newShapes)
	return nil
}
