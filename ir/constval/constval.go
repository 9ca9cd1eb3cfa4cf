// Package constval implements a small closed set of compile-time
// constant values with overflow-checked folding, grounded on the
// teacher's lang/types package (Int, Float, Bool): a handful of value
// types each able to combine with its own kind, nothing more. No other
// package of this module imports it; the expression lowerer interns
// literals as immediates directly and emits arithmetic as BINARY opcodes
// without folding.
package constval

import (
	"fmt"

	"github.com/mna/bfcore/diag"
)

// ConstBool is a compile-time boolean constant.
type ConstBool bool

// ConstInt is a compile-time integer constant together with the bit width
// and signedness it is destined for, so folding can detect whether the
// result still fits.
type ConstInt struct {
	Value  int64
	Bits   uint32 // 0 means "untyped", i.e. no width to overflow-check against
	Signed bool
}

// Fits reports whether v fits within the declared width and signedness.
// An untyped (Bits == 0) constant always fits.
func (v ConstInt) Fits() bool {
	if v.Bits == 0 || v.Bits >= 64 {
		return true
	}
	if v.Signed {
		lo := -(int64(1) << (v.Bits - 1))
		hi := int64(1)<<(v.Bits-1) - 1
		return v.Value >= lo && v.Value <= hi
	}
	if v.Value < 0 {
		return false
	}
	hi := int64(1)<<v.Bits - 1
	return v.Value <= hi
}

// site is a no-location diag.Site carrying only the folding operation's
// name; the functions of this package have no source position to attach.
func site(op string) diag.Site { return diag.Site{Op: op} }

// Add folds x+y, reporting diag.ErrArithmeticOverflow if either the native
// int64 addition overflows or the result no longer fits the narrower of
// the two operands' declared widths (spec.md §7).
func Add(x, y ConstInt) (ConstInt, error) {
	result := x.Value + y.Value
	if (x.Value > 0 && y.Value > 0 && result < 0) || (x.Value < 0 && y.Value < 0 && result >= 0) {
		return ConstInt{}, diag.Overflow(site("const_add"), "constant addition %d + %d overflows int64", x.Value, y.Value)
	}
	out := narrower(x, y)
	out.Value = result
	if !out.Fits() {
		return ConstInt{}, diag.Overflow(site("const_add"), "constant %d does not fit %d-bit %s", result, out.Bits, signedness(out.Signed))
	}
	return out, nil
}

// Sub folds x-y with the same overflow rules as Add.
func Sub(x, y ConstInt) (ConstInt, error) {
	result := x.Value - y.Value
	if (y.Value < 0 && result < x.Value) || (y.Value > 0 && result > x.Value) {
		return ConstInt{}, diag.Overflow(site("const_sub"), "constant subtraction %d - %d overflows int64", x.Value, y.Value)
	}
	out := narrower(x, y)
	out.Value = result
	if !out.Fits() {
		return ConstInt{}, diag.Overflow(site("const_sub"), "constant %d does not fit %d-bit %s", result, out.Bits, signedness(out.Signed))
	}
	return out, nil
}

// Mul folds x*y with the same overflow rules as Add.
func Mul(x, y ConstInt) (ConstInt, error) {
	if x.Value != 0 {
		result := x.Value * y.Value
		if result/x.Value != y.Value {
			return ConstInt{}, diag.Overflow(site("const_mul"), "constant multiplication %d * %d overflows int64", x.Value, y.Value)
		}
		out := narrower(x, y)
		out.Value = result
		if !out.Fits() {
			return ConstInt{}, diag.Overflow(site("const_mul"), "constant %d does not fit %d-bit %s", result, out.Bits, signedness(out.Signed))
		}
		return out, nil
	}
	out := narrower(x, y)
	out.Value = 0
	return out, nil
}

// narrower picks the tighter of two operand widths, the same rule §4.C
// uses when two differently-sized integer literals are combined: the
// result is typed at the operand that would overflow first.
func narrower(x, y ConstInt) ConstInt {
	if x.Bits == 0 {
		return y
	}
	if y.Bits == 0 {
		return x
	}
	if x.Bits <= y.Bits {
		return x
	}
	return y
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

// Widen64 reports whether v requires the 62-bit-plus IMMEDIATE_INT64
// representation rather than the compact Varint-range IMMEDIATE_INT one,
// spec.md §4.C.
func (v ConstInt) Widen64() bool {
	const varintMax = int64(1)<<62 - 1
	return v.Value > varintMax || v.Value < -varintMax
}

func (v ConstInt) String() string {
	return fmt.Sprintf("%d", v.Value)
}

func (v ConstBool) String() string {
	if v {
		return "true"
	}
	return "false"
}
