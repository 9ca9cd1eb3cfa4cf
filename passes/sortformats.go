package passes

import (
	"golang.org/x/exp/slices"

	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// declChunk is one top-level declaration's contiguous span of Code,
// spanning from its DEFINE_* opcode through everything lower.Build
// appended for it (fields, nested DECLARE_* stubs, synthesized or
// overridden coders) before moving on to the next top-level decl. The
// Builder's emission order guarantees these spans never interleave.
type declChunk struct {
	start, end int
	ident      ir.ObjectID
	isFormat   bool
}

var topLevelDefOps = map[ir.AbstractOp]bool{
	ir.DEFINE_FORMAT:    true,
	ir.DEFINE_ENUM:      true,
	ir.DEFINE_STATE:     true,
	ir.DEFINE_UNION:     true,
	ir.DEFINE_BIT_FIELD: true,
}

// SortFormats implements spec.md §4.I: formats are reordered so that a
// format referencing another format as a field's type follows it,
// decided by a DFS over the field-storage dependency graph with
// gray-marker cycle detection (a self-recursive format closes its cycle
// through RECURSIVE_STRUCT_REF at the storage level and is allowed).
// Reordering happens at the granularity of whole declaration chunks:
// format chunks move to satisfy the dependency order; every other
// top-level chunk (enums, states, unions, bit fields, helper functions)
// keeps its original relative position, following the reordered formats.
func SortFormats(mod *ir.Module) error {
	progStart, progEnd, ok := findProgramBody(mod.Code)
	if !ok {
		return nil
	}
	chunks := splitTopLevelChunks(mod.Code, progStart, progEnd)

	var formatChunks, otherChunks []declChunk
	for _, ch := range chunks {
		if ch.isFormat {
			formatChunks = append(formatChunks, ch)
		} else {
			otherChunks = append(otherChunks, ch)
		}
	}

	order, err := topoSortFormats(mod, formatChunks)
	if err != nil {
		return err
	}

	var body []ir.Code
	for _, ch := range order {
		body = append(body, mod.Code[ch.start:ch.end]...)
	}
	for _, ch := range otherChunks {
		body = append(body, mod.Code[ch.start:ch.end]...)
	}

	newCode := make([]ir.Code, 0, len(mod.Code))
	newCode = append(newCode, mod.Code[:progStart]...)
	newCode = append(newCode, body...)
	newCode = append(newCode, mod.Code[progEnd:]...)
	mod.Code = newCode
	return nil
}

func findProgramBody(code []ir.Code) (start, end int, ok bool) {
	for i, c := range code {
		if c.Op == ir.DEFINE_PROGRAM {
			start = i + 1
			ok = true
		}
		if c.Op == ir.END_PROGRAM && ok {
			return start, i, true
		}
	}
	return 0, 0, false
}

func splitTopLevelChunks(code []ir.Code, start, end int) []declChunk {
	var chunks []declChunk
	i := start
	for i < end {
		c := code[i]
		if topLevelDefOps[c.Op] {
			j := i + 1
			for j < end && !topLevelDefOps[code[j].Op] && !(code[j].Op == ir.DEFINE_FUNCTION && code[j].Belong == 0) {
				j++
			}
			chunks = append(chunks, declChunk{start: i, end: j, ident: c.Ident, isFormat: c.Op == ir.DEFINE_FORMAT})
			i = j
			continue
		}
		if c.Op == ir.DEFINE_FUNCTION && c.Belong == 0 {
			j := i + 1
			for j < end && code[j].Op != ir.END_FUNCTION {
				j++
			}
			j++ // include END_FUNCTION
			chunks = append(chunks, declChunk{start: i, end: j, ident: c.Ident})
			i = j
			continue
		}
		i++
	}
	return chunks
}

// topoSortFormats orders format chunks so each dependency precedes its
// dependent, using a DFS with a three-color visited map; a gray-to-gray
// edge (a cycle) is tolerated since the storage level already expresses
// self-recursion via RECURSIVE_STRUCT_REF rather than a hard ordering
// requirement.
func topoSortFormats(mod *ir.Module, chunks []declChunk) ([]declChunk, error) {
	byIdent := make(map[ir.ObjectID]declChunk, len(chunks))
	for _, ch := range chunks {
		byIdent[ch.ident] = ch
	}
	deps := make(map[ir.ObjectID][]ir.ObjectID, len(chunks))
	for _, ch := range chunks {
		deps[ch.ident] = formatDeps(mod, ch)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[ir.ObjectID]int, len(chunks))
	var order []declChunk
	var visit func(id ir.ObjectID) error
	visit = func(id ir.ObjectID) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return nil // cycle: allowed (self-recursive via RECURSIVE_STRUCT_REF)
		}
		color[id] = gray
		for _, dep := range deps[id] {
			if _, ok := byIdent[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, byIdent[id])
		return nil
	}

	idents := make([]ir.ObjectID, len(chunks))
	for i, ch := range chunks {
		idents[i] = ch.ident
	}
	slices.SortStableFunc(idents, func(a, b ir.ObjectID) int {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		return 0
	})
	for _, id := range idents {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	if len(order) != len(chunks) {
		return nil, diag.Internal(diag.Site{Op: "sort_formats"}, "lost a format chunk during topological sort")
	}
	return order, nil
}

// formatDeps collects the idents of other formats referenced by one
// format chunk's field types.
func formatDeps(mod *ir.Module, ch declChunk) []ir.ObjectID {
	var deps []ir.ObjectID
	for i := ch.start; i < ch.end; i++ {
		c := mod.Code[i]
		if c.Op != ir.DEFINE_FIELD {
			continue
		}
		shape, ok := mod.GetStorage(c.Type)
		if !ok || len(shape) == 0 {
			continue
		}
		if shape[0].Tag == ir.StStructRef {
			deps = append(deps, shape[0].Ref)
		}
	}
	return deps
}
