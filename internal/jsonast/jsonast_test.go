package jsonast

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/bfcore/ast"
)

func TestLoadSimpleFormat(t *testing.T) {
	data := []byte(`{
		"kind": "program",
		"pos": [1, 1],
		"decls": [
			{
				"kind": "format",
				"pos": [1, 1],
				"name": {"ref": 1, "name": "Header", "pos": [1, 8]},
				"endian": {"endian": "big"},
				"fields": [
					{
						"pos": [2, 3],
						"name": {"ref": 2, "name": "magic", "pos": [2, 3]},
						"type": {"kind": "str_literal_type", "pos": [2, 10], "value": "QkY="},
						"condition": null
					},
					{
						"pos": [3, 3],
						"name": {"ref": 3, "name": "length", "pos": [3, 3]},
						"type": {"kind": "int_type", "pos": [3, 11], "bits": 32, "signed": false,
							"endian": {"endian": "big"}},
						"condition": {
							"kind": "binary_expr", "pos": [3, 20], "op": ">",
							"x": {"kind": "ident_expr", "pos": [3, 20], "base": {"ref": 3, "name": "length", "pos": [3, 20]}},
							"y": {"kind": "int_lit", "pos": [3, 25], "value": 0, "negative": false}
						}
					}
				],
				"nested": [],
				"funcs": []
			}
		],
		"funcs": []
	}`)

	prog, err := Load(data)
	require.NoError(t, err)
	require.Len(t, prog.Decls, 1)

	format, ok := prog.Decls[0].(*ast.Format)
	require.True(t, ok)
	require.Equal(t, "Header", format.Name.Name)
	require.Equal(t, ast.EndianBig, format.Endian.Endian)
	require.Len(t, format.Fields, 2)

	magic := format.Fields[0]
	require.Equal(t, "magic", magic.Name.Name)
	strType, ok := magic.Type.(*ast.StrLiteralType)
	require.True(t, ok)
	require.Equal(t, []byte("BF"), strType.Value)

	length := format.Fields[1]
	require.Equal(t, "length", length.Name.Name)
	intType, ok := length.Type.(*ast.IntType)
	require.True(t, ok)
	require.Equal(t, 32, intType.Bits)
	require.NotNil(t, length.Condition)
	cond, ok := length.Condition.(*ast.BinaryExpr)
	require.True(t, ok)
	require.Equal(t, ast.BGt, cond.Op)
}

func TestLoadInternsIdentByRef(t *testing.T) {
	data := []byte(`{
		"kind": "program",
		"pos": [0, 0],
		"decls": [
			{
				"kind": "state",
				"pos": [1, 1],
				"name": {"ref": 5, "name": "x", "pos": [1, 1]},
				"type": {"kind": "bool_type", "pos": [1, 1]}
			}
		],
		"funcs": [
			{
				"kind": "function",
				"pos": [2, 1],
				"name": {"ref": 9, "name": "helper", "pos": [2, 1]},
				"func_kind": "helper",
				"params": [
					{"pos": [2, 10], "name": {"ref": 5, "name": "x", "pos": [2, 10]},
						"type": {"kind": "bool_type", "pos": [2, 10]}}
				],
				"body": []
			}
		]
	}`)

	prog, err := Load(data)
	require.NoError(t, err)

	state, ok := prog.Decls[0].(*ast.State)
	require.True(t, ok)

	require.Len(t, prog.Funcs, 1)
	param := prog.Funcs[0].Params[0]
	require.Same(t, state.Name, param.Name, "ref 5 must resolve to the same *ast.Ident both times")
}
