package passes

import "github.com/mna/bfcore/ir"

// defineEndPairs maps every DEFINE_*/BEGIN_* opener to its closer, for the
// "add ident ranges" pass, spec.md §4.N.
var defineEndPairs = map[ir.AbstractOp]ir.AbstractOp{
	ir.DEFINE_FUNCTION:   ir.END_FUNCTION,
	ir.DEFINE_FORMAT:     ir.END_FORMAT,
	ir.DEFINE_ENUM:       ir.END_ENUM,
	ir.DEFINE_STATE:      ir.END_STATE,
	ir.DEFINE_UNION:      ir.END_UNION,
	ir.DEFINE_UNION_MEMBER: ir.END_UNION_MEMBER,
	ir.DEFINE_BIT_FIELD:  ir.END_BIT_FIELD,
	ir.DEFINE_FIELD:      ir.END_FIELD,
	ir.DEFINE_PROPERTY:   ir.END_PROPERTY,
	ir.DEFINE_PROGRAM:    ir.END_PROGRAM,
	ir.DEFINE_FALLBACK:   ir.END_FALLBACK,
}

// AddIdentRanges implements the "add ident ranges" half of spec.md §4.N: a
// stack-based single pass over code records, for every identified
// DEFINE_*/END_* pair, the half-open [start, end) span it occupies
// (end is the index one past the matching END_*, so the span includes
// both delimiters). Nesting is handled with an explicit stack since a
// format's DEFINE_FIELD/DEFINE_FUNCTION spans nest inside its own
// DEFINE_FORMAT/END_FORMAT span.
func AddIdentRanges(mod *ir.Module) error {
	type frame struct {
		ident ir.ObjectID
		open  ir.AbstractOp
		close ir.AbstractOp
		start int
	}
	var stack []frame
	mod.IdentToRanges = mod.IdentToRanges[:0]

	for i, c := range mod.Code {
		if close, ok := defineEndPairs[c.Op]; ok {
			stack = append(stack, frame{ident: c.Ident, open: c.Op, close: close, start: i})
			continue
		}
		if len(stack) > 0 && c.Op == stack[len(stack)-1].close {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			mod.IdentToRanges = append(mod.IdentToRanges, ir.IdentRange{
				Ident: top.ident,
				Range: ir.Range{Start: top.start, End: i + 1},
			})
		}
	}
	return nil
}
