// Package cfg builds a control-flow graph out of one function's opcode
// span, the structured-IR counterpart of the teacher's bytecode
// linearization (lang/compiler/compiler.go's visit/block pair): rather
// than threading jmp/cjmp through already-two-way-branch bytecode, it
// walks the nested IF/ELIF/ELSE, LOOP_*, and MATCH/CASE opcodes spec.md
// §4.D describes and cuts a new Block at every point where control could
// diverge or rejoin.
package cfg

import "github.com/mna/bfcore/ir"

// Block is one straight-line run of opcodes, addressed by its Index into
// Graph.Blocks (mirroring the teacher's block.index/addr pair, minus the
// byte address since this IR has no fixed instruction width). Jmp is the
// unconditional or fallthrough successor; CJmp is the "condition false"
// successor of a block ending in a branch (IF/LOOP_CONDITION), set only
// when the block splits.
type Block struct {
	Index      int
	Range      ir.Range
	Jmp, CJmp  *Block
	Terminator ir.AbstractOp // the opcode, if any, that ends this block
}

// Graph is one function's control-flow graph.
type Graph struct {
	Blocks []*Block
	Entry  *Block
}

// splitOps start a new block right after they appear; joinOps start a new
// block right before they appear (a control-flow merge point).
var splitOps = map[ir.AbstractOp]bool{
	ir.IF: true, ir.ELIF: true, ir.ELSE: true,
	ir.LOOP_INFINITE: true, ir.LOOP_CONDITION: true,
	ir.CASE: true, ir.DEFAULT_CASE: true,
}

var joinOps = map[ir.AbstractOp]bool{
	ir.END_IF: true, ir.END_LOOP: true, ir.END_MATCH: true, ir.END_CASE: true,
	ir.CONTINUE: true, ir.BREAK: true,
}

// Build constructs the CFG for the function occupying code[r.Start:r.End)
// (the span recorded by passes.AddIdentRanges for a DEFINE_FUNCTION).
func Build(code []ir.Code, r ir.Range) *Graph {
	g := &Graph{}
	if r.Start >= r.End {
		return g
	}

	start := r.Start
	var blocks []*Block
	cut := func(end int) *Block {
		if start >= end {
			return nil
		}
		b := &Block{Index: len(blocks), Range: ir.Range{Start: start, End: end}}
		if end > start {
			b.Terminator = code[end-1].Op
		}
		blocks = append(blocks, b)
		start = end
		return b
	}

	for i := r.Start; i < r.End; i++ {
		op := code[i].Op
		if joinOps[op] {
			cut(i)
			start = i
		}
		if splitOps[op] {
			cut(i + 1)
		}
	}
	cut(r.End)

	linkSequential(blocks)
	linkBranches(code, blocks)

	g.Blocks = blocks
	if len(blocks) > 0 {
		g.Entry = blocks[0]
	}
	return g
}

// linkSequential wires every block's Jmp to the block immediately
// following it, the default "fallthrough" edge; linkBranches overrides
// this for blocks that actually branch.
func linkSequential(blocks []*Block) {
	for i := 0; i+1 < len(blocks); i++ {
		blocks[i].Jmp = blocks[i+1]
	}
}

// linkBranches sets CJmp for blocks ending in a condition (IF,
// LOOP_CONDITION): Jmp is the taken branch (falls through to the next
// block, the "then"/loop-body), CJmp is the "not taken" path: the block
// right after the opener's matching ELSE, or the block starting at its
// END_IF/END_LOOP.
func linkBranches(code []ir.Code, blocks []*Block) {
	blockAt := make(map[int]*Block, len(blocks))
	for _, b := range blocks {
		blockAt[b.Range.Start] = b
	}
	for _, b := range blocks {
		if b.Range.End == 0 || b.Range.End > len(code) {
			continue
		}
		last := code[b.Range.End-1].Op
		if last != ir.IF && last != ir.LOOP_CONDITION {
			continue
		}
		target := matchingElseOrEnd(code, b.Range.End-1)
		if target < len(code) && code[target].Op == ir.ELSE {
			// ELSE closes the block it ends; the else body starts after it.
			target++
		}
		if blk, ok := blockAt[target]; ok {
			b.CJmp = blk
		}
	}
}

// matchingElseOrEnd scans forward from an IF/LOOP_CONDITION opener,
// tracking nesting depth, for the index of its ELSE (IF only) or its
// closing END_IF/END_LOOP.
func matchingElseOrEnd(code []ir.Code, openIdx int) int {
	depth := 0
	opener := code[openIdx].Op
	for j := openIdx + 1; j < len(code); j++ {
		switch code[j].Op {
		case ir.IF, ir.LOOP_INFINITE, ir.LOOP_CONDITION, ir.MATCH, ir.EXHAUSTIVE_MATCH:
			depth++
		case ir.ELSE:
			if depth == 0 && opener == ir.IF {
				return j
			}
		case ir.END_IF, ir.END_LOOP, ir.END_MATCH:
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return len(code)
}
