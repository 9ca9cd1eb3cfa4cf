// Package debugprint implements the textual instruction dump behind the
// CLI's -p/--print-instructions and --print-only-op flags (spec.md §6.2).
// It is a pure diagnostic: nothing here feeds back into the pipeline, and
// its output format is not part of the binary container contract of
// spec.md §6.3. Modeled on the teacher's own informative dumpers
// (lang/compiler prints disassembled bytecode for debugging, not for
// consumption by another tool).
package debugprint

import (
	"fmt"
	"io"

	"github.com/mna/bfcore/ir"
)

// Instructions writes one line per Code in mod.Code, in order. When
// opOnly is true (the CLI's --print-only-op), only the opcode name is
// printed; otherwise the populated operand fields are included.
func Instructions(w io.Writer, mod *ir.Module, opOnly bool) error {
	for i, c := range mod.Code {
		var err error
		if opOnly {
			_, err = fmt.Fprintln(w, c.Op)
		} else {
			_, err = fmt.Fprintf(w, "%5d  %s\n", i, formatCode(mod, &c))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func formatCode(mod *ir.Module, c *ir.Code) string {
	s := c.Op.String()
	if c.Ident != 0 {
		s += fmt.Sprintf(" ident=%s", identLabel(mod, c.Ident))
	}
	if c.Ref != 0 {
		s += fmt.Sprintf(" ref=%s", identLabel(mod, c.Ref))
	}
	if c.Left != 0 {
		s += fmt.Sprintf(" left=%s", identLabel(mod, c.Left))
	}
	if c.Right != 0 {
		s += fmt.Sprintf(" right=%s", identLabel(mod, c.Right))
	}
	if c.Belong != 0 {
		s += fmt.Sprintf(" belong=%s", identLabel(mod, c.Belong))
	}
	if c.Type != 0 {
		s += fmt.Sprintf(" type=#%d", c.Type)
	}
	if c.IntValue != 0 || c.IntValue64 != 0 {
		s += fmt.Sprintf(" val=%d", c.IntValue+c.IntValue64)
	}
	if c.BitSize != 0 {
		s += fmt.Sprintf(" bits=%d", c.BitSize)
	}
	if c.Fallback != 0 {
		s += fmt.Sprintf(" fallback=%s", identLabel(mod, c.Fallback))
	}
	return s
}

func identLabel(mod *ir.Module, id ir.ObjectID) string {
	if name := mod.IdentName(id); name != "" {
		return fmt.Sprintf("%s(%d)", name, id)
	}
	return fmt.Sprintf("%d", id)
}

// CFG writes a text rendering of every function's control-flow graph, the
// CLI's -c/--cfg-output output: one block list per function, each block's
// opcode range and successor block indices.
func CFG(w io.Writer, mod *ir.Module, build func(code []ir.Code, r ir.Range) CFGText) error {
	for _, r := range mod.IdentToRanges {
		if r.Range.Start >= len(mod.Code) || mod.Code[r.Range.Start].Op != ir.DEFINE_FUNCTION {
			continue
		}
		text := build(mod.Code, r.Range)
		if _, err := fmt.Fprintf(w, "function %s:\n", identLabel(mod, r.Ident)); err != nil {
			return err
		}
		for _, line := range text.Lines {
			if _, err := fmt.Fprintf(w, "  %s\n", line); err != nil {
				return err
			}
		}
	}
	return nil
}

// CFGText is the pre-rendered block listing for one function, built by
// the caller (internal/maincmd) via cfg.Build so this package does not need to
// import cfg (avoiding a needless dependency edge for what is ultimately
// just string formatting).
type CFGText struct {
	Lines []string
}
