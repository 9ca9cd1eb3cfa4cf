// Package maincmd implements the single-command CLI shell described
// informatively by spec.md §6.2: load a JSON AST, lower it, run the
// transformation pipeline, and write the resulting binary module. It
// keeps the teacher's Cmd shape (a flat struct with flag:"..." tags
// parsed by mainer.Parser, plus Help/Version short-circuits and a
// CancelOnSignal context) but drops the parse/resolve/tokenize
// subcommand dispatch of internal/maincmd/maincmd.go, since this core has
// exactly one operation rather than three compiler phases to pick
// between.
package maincmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mna/mainer"

	"github.com/mna/bfcore/cfg"
	"github.com/mna/bfcore/internal/debugprint"
	"github.com/mna/bfcore/internal/jsonast"
	"github.com/mna/bfcore/ir"
	"github.com/mna/bfcore/lower"
	"github.com/mna/bfcore/passes"
	"github.com/mna/bfcore/serialize"
)

const binName = "bfcore"

var (
	shortUsage = fmt.Sprintf(`
usage: %s -i FILE -o FILE|- [<option>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s -i FILE -o FILE|- [<option>...]
       %[1]s -h|--help
       %[1]s -v|--version

Lowers a JSON-serialized format-description AST into a binary module.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -i --input FILE           AST JSON input (required).
       -o --output FILE|-        Where to write the serialized IR, or -
                                 for stdout (required).
       -c --cfg-output FILE      Also write a text control-flow-graph
                                 dump for every function.
       -p --print-instructions   Dump the IR textually to stdout.
       --print-only-op           Like -p, but print only opcode names.
       --base64                  Base64-encode the serialized output.
       --print-process-time      Print timing diagnostics to stderr.

More information on the %[1]s repository:
       https://github.com/mna/bfcore
`, binName)
)

// Cmd holds every CLI flag and the build metadata baked in at link time,
// the same shape as the teacher's Cmd in internal/maincmd/maincmd.go.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Input  string `flag:"i,input"`
	Output string `flag:"o,output"`

	CFGOutput string `flag:"c,cfg-output"`

	PrintInstructions bool `flag:"p,print-instructions"`
	PrintOnlyOp       bool `flag:"print-only-op"`
	Base64            bool `flag:"base64"`
	PrintProcessTime  bool `flag:"print-process-time"`

	args []string
}

func (c *Cmd) SetArgs(args []string)     { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if c.Input == "" {
		return errors.New("-i/--input is required")
	}
	if c.Output == "" {
		return errors.New("-o/--output is required")
	}
	if c.PrintOnlyOp {
		c.PrintInstructions = true
	}
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.run(ctx, stdio); err != nil {
		printError(stdio, err)
		return mainer.Failure
	}
	return mainer.Success
}

// run implements the pipeline: jsonast.Load -> lower.Build -> passes.Run
// -> serialize.Write/ToBytes, with -p/--print-instructions,
// -c/--cfg-output, and --print-process-time as optional side effects.
// Exit codes follow spec.md §6.2: any stage failing is one error, mapped
// to mainer.Failure (process exit 1) by Main.
func (c *Cmd) run(ctx context.Context, stdio mainer.Stdio) error {
	start := time.Now()
	mark := func(stage string) {
		if c.PrintProcessTime {
			fmt.Fprintf(stdio.Stderr, "%s: %s\n", stage, time.Since(start))
		}
	}

	data, err := os.ReadFile(c.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	prog, err := jsonast.Load(data)
	if err != nil {
		return fmt.Errorf("loading AST: %w", err)
	}
	mark("load")

	mod, err := lower.Build(prog)
	if err != nil {
		return fmt.Errorf("lowering: %w", err)
	}
	mark("lower")

	if err := passes.Run(mod); err != nil {
		return fmt.Errorf("transforming: %w", err)
	}
	mark("transform")

	if err := ctx.Err(); err != nil {
		return err
	}

	if c.PrintInstructions {
		if err := debugprint.Instructions(stdio.Stdout, mod, c.PrintOnlyOp); err != nil {
			return fmt.Errorf("printing instructions: %w", err)
		}
	}

	if c.CFGOutput != "" {
		if err := writeCFG(c.CFGOutput, mod); err != nil {
			return fmt.Errorf("writing cfg output: %w", err)
		}
	}

	if err := c.writeOutput(mod); err != nil {
		return err
	}
	mark("write")
	return nil
}

func (c *Cmd) writeOutput(mod *ir.Module) error {
	raw, err := serialize.ToBytes(mod)
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}

	var out io.Writer
	if c.Output == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if c.Base64 {
		enc := base64.NewEncoder(base64.StdEncoding, out)
		defer enc.Close()
		out = enc
	}

	if _, err := out.Write(raw); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// writeCFG renders every function's control-flow graph (built on demand
// by cfg.Build from mod.IdentToRanges, per spec.md §4.N's note that a CFG
// lives outside the container format) as a text block list.
func writeCFG(path string, mod *ir.Module) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return debugprint.CFG(f, mod, func(code []ir.Code, r ir.Range) debugprint.CFGText {
		g := cfg.Build(code, r)
		text := debugprint.CFGText{}
		for _, b := range g.Blocks {
			line := fmt.Sprintf("block %d: [%d,%d)", b.Index, b.Range.Start, b.Range.End)
			if b.Jmp != nil {
				line += fmt.Sprintf(" jmp=%d", b.Jmp.Index)
			}
			if b.CJmp != nil {
				line += fmt.Sprintf(" cjmp=%d", b.CJmp.Index)
			}
			text.Lines = append(text.Lines, line)
		}
		return text
	})
}
