package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/bfcore/ir"
)

func TestSortImmediatesKeepsAppearanceOrderAndRest(t *testing.T) {
	mod := &ir.Module{
		Code: []ir.Code{
			{Op: ir.IMMEDIATE_INT, Ident: 1, IntValue: 30},
			{Op: ir.ASSIGN, Ident: 2},
			{Op: ir.IMMEDIATE_INT, Ident: 3, IntValue: 10},
			{Op: ir.IMMEDIATE_INT, Ident: 4, IntValue: 20},
		},
	}
	require.NoError(t, SortImmediates(mod))

	var immediates []uint64
	var sawAssign bool
	for _, c := range mod.Code {
		switch c.Op {
		case ir.IMMEDIATE_INT:
			immediates = append(immediates, c.IntValue)
		case ir.ASSIGN:
			sawAssign = true
		}
	}
	require.Equal(t, []uint64{30, 10, 20}, immediates)
	require.True(t, sawAssign)
	require.Equal(t, ir.IMMEDIATE_INT, mod.Code[0].Op, "immediates move to the front")
}

func TestSortImmediatesNoImmediatesIsNoop(t *testing.T) {
	mod := &ir.Module{Code: []ir.Code{{Op: ir.ASSIGN}}}
	require.NoError(t, SortImmediates(mod))
	require.Len(t, mod.Code, 1)
}
