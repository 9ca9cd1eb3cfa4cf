package lower

import (
	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/diag"
	"github.com/mna/bfcore/ir"
)

// Builder holds the process-local state threading through the lowering of
// one ast.Program into one ir.Module, grounded on the teacher's pcomp/fcomp
// split (lang/compiler/compiler.go): a program-wide part (name resolution,
// the Module itself) and scopes pushed/popped per function body.
type Builder struct {
	Mod *ir.Module

	// identByName resolves a top-level declaration's source name to the
	// ObjectID registered for it; populated by a pre-pass over the Program
	// before any body is lowered, so forward references (a field typed as
	// a format declared later) resolve.
	identByName map[string]ir.ObjectID

	formats map[string]*ast.Format
	enums   map[string]*ast.Enum

	scopes []map[string]ir.ObjectID

	trueEmitted, falseEmitted bool

	currentFormat *ast.Format

	// currentPhiCond is the condition id of the branch currently being
	// lowered inside an open phi frame; see withPhiCond in stmt.go.
	currentPhiCond ir.ObjectID
}

// NewBuilder returns a Builder over a fresh Module.
func NewBuilder() *Builder {
	return &Builder{
		Mod:         ir.NewModule(),
		identByName: make(map[string]ir.ObjectID),
		formats:     make(map[string]*ast.Format),
		enums:       make(map[string]*ast.Enum),
	}
}

// LookupIdentByName resolves name to its registered ObjectID, registering a
// fresh one if this is the first time name has been seen (used for local
// declarations that have no pre-pass entry).
func (b *Builder) LookupIdentByName(name string) ir.ObjectID {
	if id, ok := b.identByName[name]; ok {
		return id
	}
	id := b.Mod.LookupIdent(nil, name)
	b.identByName[name] = id
	return id
}

// RegisterName pre-registers a top-level declaration's name, allocating an
// ObjectID for it up front so sibling declarations can forward-reference
// it by name before its body is lowered.
func (b *Builder) RegisterName(name string) ir.ObjectID {
	return b.LookupIdentByName(name)
}

func (b *Builder) PushScope() { b.scopes = append(b.scopes, make(map[string]ir.ObjectID)) }

func (b *Builder) PopScope() {
	if n := len(b.scopes); n > 0 {
		b.scopes = b.scopes[:n-1]
	}
}

// Bind associates name with id in the innermost scope.
func (b *Builder) Bind(name string, id ir.ObjectID) {
	if n := len(b.scopes); n > 0 {
		b.scopes[n-1][name] = id
	}
}

// Resolve looks up name from the innermost scope outward, falling back to
// the program-wide identByName table for format/enum/state names.
func (b *Builder) Resolve(name string) (ir.ObjectID, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if id, ok := b.scopes[i][name]; ok {
			return id, true
		}
	}
	if id, ok := b.identByName[name]; ok {
		return id, true
	}
	return 0, false
}

func (b *Builder) site(op string, pos ast.Pos) diag.Site {
	line, col := pos.LineCol()
	return diag.Site{Op: op, Line: line, Col: col}
}

// Emit is a thin forwarding wrapper over Module.Emit, kept on Builder so
// lowering code reads b.Emit(...) uniformly alongside b.EmitWithID(...).
func (b *Builder) Emit(op ir.AbstractOp, set func(*ir.Code)) int { return b.Mod.Emit(op, set) }

func (b *Builder) EmitWithID(op ir.AbstractOp, set func(*ir.Code)) ir.ObjectID {
	return b.Mod.EmitWithID(op, set)
}

// ImmediateInt interns n, emitting IMMEDIATE_INT or IMMEDIATE_INT64 the
// first time it is seen, per spec.md §4.C.
func (b *Builder) ImmediateInt(n uint64) ir.ObjectID {
	return b.Mod.Immediate(n, func() ir.ObjectID {
		const varintMax = uint64(1)<<62 - 1
		if n > varintMax {
			return b.EmitWithID(ir.IMMEDIATE_INT64, func(c *ir.Code) { c.IntValue64 = n })
		}
		return b.EmitWithID(ir.IMMEDIATE_INT, func(c *ir.Code) { c.IntValue = n })
	})
}

// ImmediateBool returns the cached true/false immediate, emitting the
// singleton opcode the first time either polarity is requested.
func (b *Builder) ImmediateBool(v bool) ir.ObjectID {
	if v {
		if !b.trueEmitted {
			b.trueEmitted = true
			b.Emit(ir.IMMEDIATE_TRUE, func(c *ir.Code) { c.Ident = b.Mod.TrueID })
		}
		return b.Mod.TrueID
	}
	if !b.falseEmitted {
		b.falseEmitted = true
		b.Emit(ir.IMMEDIATE_FALSE, func(c *ir.Code) { c.Ident = b.Mod.FalseID })
	}
	return b.Mod.FalseID
}

// DefineTypedTmpVar allocates a DEFINE_VARIABLE wrapping value with the
// given storage, spec.md §4.C "Typed temporaries".
func (b *Builder) DefineTypedTmpVar(value ir.ObjectID, typ ir.StorageRef) ir.ObjectID {
	return b.EmitWithID(ir.DEFINE_VARIABLE, func(c *ir.Code) {
		c.Ref = value
		c.Type = typ
	})
}

// DefineIntTmp allocates a typed int temporary initialized to value.
func (b *Builder) DefineIntTmp(value ir.ObjectID, bits uint32, signed bool) ir.ObjectID {
	tag := ir.StUint
	if signed {
		tag = ir.StInt
	}
	typ := b.Mod.GetStorageRef(ir.Storages{{Tag: tag, Size: bits}})
	return b.DefineTypedTmpVar(value, typ)
}

// DefineBoolTmp allocates a typed bool temporary initialized to value.
func (b *Builder) DefineBoolTmp(value ir.ObjectID) ir.ObjectID {
	typ := b.Mod.GetStorageRef(ir.Storages{{Tag: ir.StBool}})
	return b.DefineTypedTmpVar(value, typ)
}

// DefineCounter allocates an int temporary initialized to the immediate n,
// the "counter initialized to N" wrapper of spec.md §4.C.
func (b *Builder) DefineCounter(n uint64, bits uint32) ir.ObjectID {
	imm := b.ImmediateInt(n)
	return b.DefineIntTmp(imm, bits, false)
}
