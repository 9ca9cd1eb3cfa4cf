package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/bfcore/ast"
	"github.com/mna/bfcore/ir"
	"github.com/mna/bfcore/passes"
)

func ident(name string) *ast.Ident { return &ast.Ident{Name: name} }

// TestBuildFixedWidthIntField covers spec.md §8 S1: a format with a single
// fixed-width integer field lowers to a DEFINE_FORMAT/DEFINE_FIELD/END_FIELD/
// END_FORMAT record run plus a synthesized encoder and decoder, and survives
// the full pass pipeline.
func TestBuildFixedWidthIntField(t *testing.T) {
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.Format{
				Name: ident("Header"),
				Fields: []*ast.FieldDecl{
					{Name: ident("length"), Type: &ast.IntType{Bits: 32, Signed: false}},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))

	var sawDefineFormat, sawDefineField, sawEndFormat bool
	for _, c := range mod.Code {
		switch c.Op {
		case ir.DEFINE_FORMAT:
			sawDefineFormat = true
		case ir.DEFINE_FIELD:
			sawDefineField = true
		case ir.END_FORMAT:
			sawEndFormat = true
		}
	}
	require.True(t, sawDefineFormat)
	require.True(t, sawDefineField)
	require.True(t, sawEndFormat)

	var encoders, decoders int
	for _, c := range mod.Code {
		switch c.Op {
		case ir.DEFINE_ENCODER:
			encoders++
		case ir.DEFINE_DECODER:
			decoders++
		}
	}
	require.Equal(t, 1, encoders, "one format gets exactly one synthesized encoder")
	require.Equal(t, 1, decoders, "one format gets exactly one synthesized decoder")
}

// TestBuildPackedBitField covers spec.md §8 S2: a bit field made of several
// sub-byte members lowers and runs through the full pass pipeline
// (DecideBitFieldSize/ExpandBitOperations included) without error, keeping
// its DEFINE_BIT_FIELD record.
func TestBuildPackedBitField(t *testing.T) {
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.BitField{
				Name: ident("Flags"),
				Fields: []*ast.FieldDecl{
					{Name: ident("a"), Type: &ast.IntType{Bits: 3}, BitWidth: &ast.IntLit{Value: 3}},
					{Name: ident("b"), Type: &ast.IntType{Bits: 5}, BitWidth: &ast.IntLit{Value: 5}},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))

	var sawDefineBitField bool
	for _, c := range mod.Code {
		if c.Op == ir.DEFINE_BIT_FIELD {
			sawDefineBitField = true
		}
	}
	require.True(t, sawDefineBitField)
}

// TestBuildVariableLengthVector covers spec.md §8 S3: an array field whose
// length is a runtime expression rather than a literal.
func TestBuildVariableLengthVector(t *testing.T) {
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.Format{
				Name: ident("Packet"),
				Fields: []*ast.FieldDecl{
					{Name: ident("count"), Type: &ast.IntType{Bits: 16}},
					{
						Name: ident("payload"),
						Type: &ast.ArrayType{
							Elem: &ast.IntType{Bits: 8},
							Len:  &ast.IdentExpr{Base: ident("count")},
						},
					},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))
}

// TestBuildUnionViaConditionalFields covers spec.md §8 S4: two FieldDecls
// sharing one Name under different Conditions merge into one logical field
// by the time MergeConditionalFields has run.
func TestBuildUnionViaConditionalFields(t *testing.T) {
	tagIdent := ident("tag")
	valueIdent := ident("value")
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.Format{
				Name: ident("Tagged"),
				Fields: []*ast.FieldDecl{
					{Name: tagIdent, Type: &ast.IntType{Bits: 8}},
					{
						Name:      valueIdent,
						Type:      &ast.IntType{Bits: 16},
						Condition: &ast.BinaryExpr{Op: ast.BEq, X: &ast.IdentExpr{Base: tagIdent}, Y: &ast.IntLit{Value: 0}},
					},
					{
						Name:      valueIdent,
						Type:      &ast.IntType{Bits: 32},
						Condition: &ast.BinaryExpr{Op: ast.BEq, X: &ast.IdentExpr{Base: tagIdent}, Y: &ast.IntLit{Value: 1}},
					},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))

	var merged int
	for _, c := range mod.Code {
		if c.Op == ir.MERGED_CONDITIONAL_FIELD {
			merged++
		}
	}
	require.Equal(t, 1, merged, "the two value alternatives collapse into one merged field")
}

// TestBuildRecursiveFormat covers spec.md §8 S5: a format referencing
// itself through a pointer field lowers and sorts without a cycle error.
func TestBuildRecursiveFormat(t *testing.T) {
	nodeName := ident("Node")
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.Format{
				Name: nodeName,
				Fields: []*ast.FieldDecl{
					{Name: ident("value"), Type: &ast.IntType{Bits: 32}},
					{
						Name: ident("next"),
						Type: &ast.OptionalType{Base: &ast.PointerType{Base: &ast.RecursiveStructType{Ref: nodeName}}},
					},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))
}

// TestBuildDynamicEndianField covers spec.md §8 S6: a field whose endian is
// resolved at runtime from an earlier field goes through EndianFallback
// without error.
func TestBuildDynamicEndianField(t *testing.T) {
	flagIdent := ident("littleEndianFlag")
	prog := &ast.Program{
		Decls: []ast.Decl{
			&ast.Format{
				Name: ident("Dynamic"),
				Fields: []*ast.FieldDecl{
					{Name: flagIdent, Type: &ast.BoolType{}},
					{
						Name: ident("value"),
						Type: &ast.IntType{Bits: 32, Endian: ast.EndianSpec{Endian: ast.EndianDynamic, DynamicRef: flagIdent}},
					},
				},
			},
		},
	}

	mod, err := Build(prog)
	require.NoError(t, err)
	require.NoError(t, passes.Run(mod))
}
