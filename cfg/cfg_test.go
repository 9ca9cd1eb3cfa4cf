package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/bfcore/ir"
)

func TestBuildStraightLine(t *testing.T) {
	code := []ir.Code{
		{Op: ir.DEFINE_FUNCTION},
		{Op: ir.ASSIGN},
		{Op: ir.END_FUNCTION},
	}
	g := Build(code, ir.Range{Start: 0, End: len(code)})
	require.Len(t, g.Blocks, 1)
	require.Equal(t, g.Entry, g.Blocks[0])
}

func TestBuildIfElseSplitsIntoBranches(t *testing.T) {
	code := []ir.Code{
		{Op: ir.DEFINE_FUNCTION},
		{Op: ir.IF},
		{Op: ir.ASSIGN},
		{Op: ir.ELSE},
		{Op: ir.ASSIGN},
		{Op: ir.END_IF},
		{Op: ir.END_FUNCTION},
	}
	g := Build(code, ir.Range{Start: 0, End: len(code)})
	require.NotEmpty(t, g.Blocks)

	var ifBlock *Block
	for _, b := range g.Blocks {
		if b.Terminator == ir.IF {
			ifBlock = b
		}
	}
	require.NotNil(t, ifBlock, "expected a block ending in IF")
	require.NotNil(t, ifBlock.Jmp, "taken branch should be set")
	require.NotNil(t, ifBlock.CJmp, "not-taken branch should be set")
	require.NotEqual(t, ifBlock.Jmp, ifBlock.CJmp)
}

func TestBuildEmptyRange(t *testing.T) {
	g := Build(nil, ir.Range{Start: 0, End: 0})
	require.Empty(t, g.Blocks)
	require.Nil(t, g.Entry)
}
