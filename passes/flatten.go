package passes

import (
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// declareStubOps are the DECLARE_* opcodes spec.md §4.F leaves behind in
// place of a hoisted nested definition.
var declareStubOps = map[ir.AbstractOp]bool{
	ir.DECLARE_FORMAT:    true,
	ir.DECLARE_ENUM:      true,
	ir.DECLARE_STATE:     true,
	ir.DECLARE_UNION:     true,
	ir.DECLARE_BIT_FIELD: true,
	ir.DECLARE_FUNCTION:  true,
}

// Flatten validates spec.md §4.F's invariant: every DECLARE_* stub's ref
// resolves to a DEFINE_* opcode elsewhere in the stream. The actual
// hoisting happens earlier, directly from the AST's Nested field
// (lower.flattenDecls), because the AST already carries the nesting
// relationship explicitly; this pass is the opcode-stream-level check
// that the result is well-formed, which is the part of §4.F that still
// meaningfully operates on `code` once lowering has already flattened.
func Flatten(mod *ir.Module) error {
	for i := range mod.Code {
		c := &mod.Code[i]
		if !declareStubOps[c.Op] {
			continue
		}
		if !c.Ref.Valid() {
			return diag.Internal(diag.Site{Op: "flatten"}, "declare stub at %d has no ref", i)
		}
		if _, ok := mod.IndexOf(c.Ref); !ok {
			return diag.Internal(diag.Site{Op: "flatten"}, "declare stub at %d refers to undefined ident %d", i, c.Ref)
		}
	}
	return nil
}
