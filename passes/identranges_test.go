package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/bfcore/ir"
)

func TestAddIdentRangesCapturesNestedSpans(t *testing.T) {
	mod := &ir.Module{
		Code: []ir.Code{
			{Op: ir.DEFINE_FORMAT, Ident: 1},
			{Op: ir.DEFINE_FIELD, Ident: 2},
			{Op: ir.END_FIELD, Ident: 2},
			{Op: ir.END_FORMAT, Ident: 1},
			{Op: ir.DEFINE_FUNCTION, Ident: 3},
			{Op: ir.END_FUNCTION, Ident: 3},
		},
	}
	require.NoError(t, AddIdentRanges(mod))

	byIdent := map[ir.ObjectID]ir.Range{}
	for _, r := range mod.IdentToRanges {
		byIdent[r.Ident] = r.Range
	}
	require.Equal(t, ir.Range{Start: 0, End: 4}, byIdent[1])
	require.Equal(t, ir.Range{Start: 1, End: 3}, byIdent[2])
	require.Equal(t, ir.Range{Start: 4, End: 6}, byIdent[3])
}
