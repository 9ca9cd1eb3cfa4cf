package passes

import "github.com/mna/bfcore/ir"

// TraitAnalysis implements the "trait analysis" half of spec.md §4.N: each
// encoder/decoder function gets a flags bitset describing what stream
// capabilities its body (and anything it calls, transitively) needs —
// whether it tests for end of input (CAN_READ), peeks (PEEK_INT_VECTOR),
// seeks (SEEK_INPUT/SEEK_OUTPUT), asks for
// remaining byte count (REMAIN_BYTES), or opens a sub-range
// (BEGIN_*_SUB_RANGE). A struct-valued field's CALL_ENCODE/CALL_DECODE
// forwards the callee's needs to the caller, so the flags are propagated
// over the call graph to a fixed point before being written back onto
// each function's ENCODER_PARAMETER/DECODER_PARAMETER opcode.
func TraitAnalysis(mod *ir.Module) error {
	type fn struct {
		start, end int
		paramIdx   int
		decode     bool
		calls      []ir.ObjectID
		flags      uint8
	}
	fns := map[ir.ObjectID]*fn{}

	for i := 0; i < len(mod.Code); i++ {
		c := mod.Code[i]
		if c.Op != ir.DEFINE_FUNCTION || (c.FuncType != ir.FuncEncode && c.FuncType != ir.FuncDecode) {
			continue
		}
		end := i + 1
		for end < len(mod.Code) && mod.Code[end].Op != ir.END_FUNCTION {
			end++
		}
		f := &fn{start: i, end: end, decode: c.FuncType == ir.FuncDecode, paramIdx: -1}
		for j := i + 1; j < end; j++ {
			switch mod.Code[j].Op {
			case ir.ENCODER_PARAMETER, ir.DECODER_PARAMETER:
				f.paramIdx = j
			case ir.CAN_READ:
				f.flags |= uint8(ir.FlagNeedsEOF)
			case ir.PEEK_INT_VECTOR:
				f.flags |= uint8(ir.FlagNeedsPeek)
			case ir.SEEK_INPUT, ir.SEEK_OUTPUT:
				f.flags |= uint8(ir.FlagNeedsSeek)
			case ir.REMAIN_BYTES:
				f.flags |= uint8(ir.FlagNeedsRemainBytes)
			case ir.BEGIN_ENCODE_SUB_RANGE, ir.BEGIN_DECODE_SUB_RANGE:
				f.flags |= uint8(ir.FlagNeedsSubRange)
			case ir.CALL_ENCODE, ir.CALL_DECODE:
				f.calls = append(f.calls, mod.Code[j].Left)
			}
		}
		fns[c.Ident] = f
	}

	for changed := true; changed; {
		changed = false
		for _, f := range fns {
			for _, callee := range f.calls {
				cf, ok := fns[callee]
				if !ok {
					continue
				}
				if cf.flags&^f.flags != 0 {
					f.flags |= cf.flags
					changed = true
				}
			}
		}
	}

	for _, f := range fns {
		if f.paramIdx < 0 {
			continue
		}
		if f.decode {
			mod.Code[f.paramIdx].DecodeFlags = f.flags
		} else {
			mod.Code[f.paramIdx].EncodeFlags = f.flags
		}
	}
	return nil
}
