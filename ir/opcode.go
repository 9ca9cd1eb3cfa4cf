package ir

import "fmt"

// AbstractOp is a closed, versioned enumeration of opcode kinds, spec.md
// §3. The families below follow the grouping the spec describes; within a
// family, opcodes are declared in the order they are first introduced by
// the corresponding section of spec.md §4.
type AbstractOp uint16

const (
	NOP AbstractOp = iota

	// --- immediate constants (§4.C) ---
	IMMEDIATE_INT
	IMMEDIATE_INT64
	IMMEDIATE_TRUE
	IMMEDIATE_FALSE

	// --- variable / parameter definition ---
	DEFINE_VARIABLE
	DEFINE_VARIABLE_REF
	DEFINE_CONST_VARIABLE
	DEFINE_PARAMETER

	// --- arithmetic, logical, casts ---
	BINARY
	UNARY
	CAST
	INC

	// --- field access and indexing ---
	ACCESS
	INDEX
	ARRAY_SIZE

	// --- assignment and phi (§4.D) ---
	ASSIGN
	PROPERTY_ASSIGN
	PHI

	// --- control flow (§4.D) ---
	IF
	ELIF
	ELSE
	END_IF
	BEGIN_COND_BLOCK
	END_COND_BLOCK
	MATCH
	EXHAUSTIVE_MATCH
	CASE
	DEFAULT_CASE
	END_CASE
	END_MATCH
	LOOP_INFINITE
	LOOP_CONDITION
	END_LOOP
	CONTINUE
	BREAK
	EVAL_EXPR
	ASSERT

	// --- function definition and return (§4.E) ---
	DEFINE_FUNCTION
	END_FUNCTION
	DECLARE_FUNCTION
	RETURN_TYPE
	RETURN
	RET_SUCCESS
	ENCODER_PARAMETER
	DECODER_PARAMETER
	CALL_ENCODE
	CALL_DECODE
	DEFINE_ENCODER
	DEFINE_DECODER

	// --- encode/decode primitives, bit/byte/vector granularity (§4.E) ---
	ENCODE_INT
	DECODE_INT
	ENCODE_INT_VECTOR
	DECODE_INT_VECTOR
	ENCODE_INT_VECTOR_FIXED
	DECODE_INT_VECTOR_FIXED
	CAN_READ
	REMAIN_BYTES
	PEEK_INT_VECTOR
	LENGTH_CHECK
	RESERVE_SIZE
	CHECK_RECURSIVE_STRUCT
	INIT_RECURSIVE_STRUCT
	IS_LITTLE_ENDIAN
	DYNAMIC_ENDIAN_SETUP
	INPUT_BYTE_OFFSET
	OUTPUT_BYTE_OFFSET
	SEEK_INPUT
	SEEK_OUTPUT

	// --- struct/enum/union/bit-field/state/property/program definitions ---
	DEFINE_FORMAT
	END_FORMAT
	DECLARE_FORMAT
	DEFINE_ENUM
	END_ENUM
	DECLARE_ENUM
	DEFINE_STATE
	END_STATE
	DECLARE_STATE
	DEFINE_UNION
	END_UNION
	DECLARE_UNION
	DEFINE_UNION_MEMBER
	END_UNION_MEMBER
	DECLARE_UNION_MEMBER
	DEFINE_BIT_FIELD
	END_BIT_FIELD
	DECLARE_BIT_FIELD
	DEFINE_FIELD
	END_FIELD
	DEFINE_PROPERTY
	END_PROPERTY
	DECLARE_PROPERTY_GETTER
	DECLARE_PROPERTY_SETTER
	DEFINE_PROGRAM
	END_PROGRAM

	// --- fallback and sub-range markers (§4.E, §4.L, §4.M) ---
	DEFINE_FALLBACK
	END_FALLBACK
	BEGIN_ENCODE_SUB_RANGE
	END_ENCODE_SUB_RANGE
	BEGIN_DECODE_SUB_RANGE
	END_DECODE_SUB_RANGE
	BEGIN_ENCODE_PACKED_OPERATION
	END_ENCODE_PACKED_OPERATION
	BEGIN_DECODE_PACKED_OPERATION
	END_DECODE_PACKED_OPERATION

	// --- conditional-field merge and derived properties (§4.I-K) ---
	CONDITIONAL_FIELD
	MERGED_CONDITIONAL_FIELD
	CHECK_UNION
	SWITCH_UNION
	OPTIONAL_OF
	EMPTY_OPTIONAL
	ADDRESS_OF
	EMPTY_PTR
	PROPERTY_INPUT_PARAMETER
	STATE_VARIABLE_PARAMETER
	RET_PROPERTY_SETTER_OK
	RET_PROPERTY_SETTER_FAIL

	opcodeMax
)

var opcodeNames = [...]string{
	NOP:                           "nop",
	IMMEDIATE_INT:                 "immediate_int",
	IMMEDIATE_INT64:               "immediate_int64",
	IMMEDIATE_TRUE:                "immediate_true",
	IMMEDIATE_FALSE:               "immediate_false",
	DEFINE_VARIABLE:               "define_variable",
	DEFINE_VARIABLE_REF:           "define_variable_ref",
	DEFINE_CONST_VARIABLE:         "define_const_variable",
	DEFINE_PARAMETER:              "define_parameter",
	BINARY:                        "binary",
	UNARY:                         "unary",
	CAST:                          "cast",
	INC:                           "inc",
	ACCESS:                        "access",
	INDEX:                         "index",
	ARRAY_SIZE:                    "array_size",
	ASSIGN:                        "assign",
	PROPERTY_ASSIGN:               "property_assign",
	PHI:                           "phi",
	IF:                            "if",
	ELIF:                          "elif",
	ELSE:                          "else",
	END_IF:                        "end_if",
	BEGIN_COND_BLOCK:              "begin_cond_block",
	END_COND_BLOCK:                "end_cond_block",
	MATCH:                         "match",
	EXHAUSTIVE_MATCH:              "exhaustive_match",
	CASE:                          "case",
	DEFAULT_CASE:                  "default_case",
	END_CASE:                      "end_case",
	END_MATCH:                     "end_match",
	LOOP_INFINITE:                 "loop_infinite",
	LOOP_CONDITION:                "loop_condition",
	END_LOOP:                      "end_loop",
	CONTINUE:                      "continue",
	BREAK:                         "break",
	EVAL_EXPR:                     "eval_expr",
	ASSERT:                        "assert",
	DEFINE_FUNCTION:               "define_function",
	END_FUNCTION:                  "end_function",
	DECLARE_FUNCTION:              "declare_function",
	RETURN_TYPE:                   "return_type",
	RETURN:                        "return",
	RET_SUCCESS:                   "ret_success",
	ENCODER_PARAMETER:             "encoder_parameter",
	DECODER_PARAMETER:             "decoder_parameter",
	CALL_ENCODE:                   "call_encode",
	CALL_DECODE:                   "call_decode",
	DEFINE_ENCODER:                "define_encoder",
	DEFINE_DECODER:                "define_decoder",
	ENCODE_INT:                    "encode_int",
	DECODE_INT:                    "decode_int",
	ENCODE_INT_VECTOR:             "encode_int_vector",
	DECODE_INT_VECTOR:             "decode_int_vector",
	ENCODE_INT_VECTOR_FIXED:       "encode_int_vector_fixed",
	DECODE_INT_VECTOR_FIXED:       "decode_int_vector_fixed",
	CAN_READ:                      "can_read",
	REMAIN_BYTES:                  "remain_bytes",
	PEEK_INT_VECTOR:               "peek_int_vector",
	LENGTH_CHECK:                  "length_check",
	RESERVE_SIZE:                  "reserve_size",
	CHECK_RECURSIVE_STRUCT:        "check_recursive_struct",
	INIT_RECURSIVE_STRUCT:         "init_recursive_struct",
	IS_LITTLE_ENDIAN:              "is_little_endian",
	DYNAMIC_ENDIAN_SETUP:          "dynamic_endian_setup",
	INPUT_BYTE_OFFSET:             "input_byte_offset",
	OUTPUT_BYTE_OFFSET:            "output_byte_offset",
	SEEK_INPUT:                    "seek_input",
	SEEK_OUTPUT:                   "seek_output",
	DEFINE_FORMAT:                 "define_format",
	END_FORMAT:                    "end_format",
	DECLARE_FORMAT:                "declare_format",
	DEFINE_ENUM:                   "define_enum",
	END_ENUM:                      "end_enum",
	DECLARE_ENUM:                  "declare_enum",
	DEFINE_STATE:                  "define_state",
	END_STATE:                     "end_state",
	DECLARE_STATE:                 "declare_state",
	DEFINE_UNION:                  "define_union",
	END_UNION:                     "end_union",
	DECLARE_UNION:                 "declare_union",
	DEFINE_UNION_MEMBER:           "define_union_member",
	END_UNION_MEMBER:              "end_union_member",
	DECLARE_UNION_MEMBER:          "declare_union_member",
	DEFINE_BIT_FIELD:              "define_bit_field",
	END_BIT_FIELD:                 "end_bit_field",
	DECLARE_BIT_FIELD:             "declare_bit_field",
	DEFINE_FIELD:                  "define_field",
	END_FIELD:                     "end_field",
	DEFINE_PROPERTY:               "define_property",
	END_PROPERTY:                  "end_property",
	DECLARE_PROPERTY_GETTER:       "declare_property_getter",
	DECLARE_PROPERTY_SETTER:       "declare_property_setter",
	DEFINE_PROGRAM:                "define_program",
	END_PROGRAM:                   "end_program",
	DEFINE_FALLBACK:               "define_fallback",
	END_FALLBACK:                  "end_fallback",
	BEGIN_ENCODE_SUB_RANGE:        "begin_encode_sub_range",
	END_ENCODE_SUB_RANGE:          "end_encode_sub_range",
	BEGIN_DECODE_SUB_RANGE:        "begin_decode_sub_range",
	END_DECODE_SUB_RANGE:          "end_decode_sub_range",
	BEGIN_ENCODE_PACKED_OPERATION: "begin_encode_packed_operation",
	END_ENCODE_PACKED_OPERATION:   "end_encode_packed_operation",
	BEGIN_DECODE_PACKED_OPERATION: "begin_decode_packed_operation",
	END_DECODE_PACKED_OPERATION:   "end_decode_packed_operation",
	CONDITIONAL_FIELD:             "conditional_field",
	MERGED_CONDITIONAL_FIELD:      "merged_conditional_field",
	CHECK_UNION:                   "check_union",
	SWITCH_UNION:                  "switch_union",
	OPTIONAL_OF:                   "optional_of",
	EMPTY_OPTIONAL:                "empty_optional",
	ADDRESS_OF:                    "address_of",
	EMPTY_PTR:                     "empty_ptr",
	PROPERTY_INPUT_PARAMETER:      "property_input_parameter",
	STATE_VARIABLE_PARAMETER:      "state_variable_parameter",
	RET_PROPERTY_SETTER_OK:        "ret_property_setter_ok",
	RET_PROPERTY_SETTER_FAIL:      "ret_property_setter_fail",
}

func (op AbstractOp) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

// --- closed-form dispatch predicates (spec.md §6.4) ---
//
// Back-ends are expected to dispatch on these rather than switching on the
// full AbstractOp enum themselves; they are exported precisely so a
// back-end can stay a short table lookup, per the spec's design note on
// "opcodes as tagged records".

var structDefineRelated = buildSet(
	DEFINE_FORMAT, END_FORMAT, DECLARE_FORMAT,
	DEFINE_ENUM, END_ENUM, DECLARE_ENUM,
	DEFINE_STATE, END_STATE, DECLARE_STATE,
	DEFINE_UNION, END_UNION, DECLARE_UNION,
	DEFINE_UNION_MEMBER, END_UNION_MEMBER, DECLARE_UNION_MEMBER,
	DEFINE_BIT_FIELD, END_BIT_FIELD, DECLARE_BIT_FIELD,
	DEFINE_FIELD, END_FIELD,
	DEFINE_PROPERTY, END_PROPERTY, DECLARE_PROPERTY_GETTER, DECLARE_PROPERTY_SETTER,
)

var exprOps = buildSet(
	IMMEDIATE_INT, IMMEDIATE_INT64, IMMEDIATE_TRUE, IMMEDIATE_FALSE,
	DEFINE_VARIABLE, DEFINE_VARIABLE_REF, DEFINE_CONST_VARIABLE,
	BINARY, UNARY, CAST, ACCESS, INDEX, ARRAY_SIZE, PHI,
	DECODE_INT, DECODE_INT_VECTOR, DECODE_INT_VECTOR_FIXED,
	CAN_READ, REMAIN_BYTES, PEEK_INT_VECTOR, IS_LITTLE_ENDIAN,
	OPTIONAL_OF, EMPTY_OPTIONAL, ADDRESS_OF, EMPTY_PTR,
	CALL_DECODE,
)

var parameterRelated = buildSet(
	DEFINE_PARAMETER, ENCODER_PARAMETER, DECODER_PARAMETER,
	PROPERTY_INPUT_PARAMETER, STATE_VARIABLE_PARAMETER,
)

var markerOps = buildSet(
	IF, ELIF, ELSE, END_IF, BEGIN_COND_BLOCK, END_COND_BLOCK,
	MATCH, EXHAUSTIVE_MATCH, CASE, DEFAULT_CASE, END_CASE, END_MATCH,
	LOOP_INFINITE, LOOP_CONDITION, END_LOOP, CONTINUE, BREAK,
	DEFINE_FUNCTION, END_FUNCTION, DEFINE_FALLBACK, END_FALLBACK,
	BEGIN_ENCODE_SUB_RANGE, END_ENCODE_SUB_RANGE,
	BEGIN_DECODE_SUB_RANGE, END_DECODE_SUB_RANGE,
	BEGIN_ENCODE_PACKED_OPERATION, END_ENCODE_PACKED_OPERATION,
	BEGIN_DECODE_PACKED_OPERATION, END_DECODE_PACKED_OPERATION,
	DEFINE_PROGRAM, END_PROGRAM,
)

func buildSet(ops ...AbstractOp) [opcodeMax]bool {
	var set [opcodeMax]bool
	for _, op := range ops {
		set[op] = true
	}
	return set
}

// IsStructDefineRelated reports whether op is a DEFINE_X/END_X/DECLARE_X
// opcode walked by the "inner block" back-end pass to emit type
// declarations.
func (op AbstractOp) IsStructDefineRelated() bool { return lookupSet(structDefineRelated, op) }

// IsExpr reports whether op produces a value a back-end should emit as a
// value-producing expression string.
func (op AbstractOp) IsExpr() bool { return lookupSet(exprOps, op) }

// IsParameterRelated reports whether op contributes to a function
// parameter list.
func (op AbstractOp) IsParameterRelated() bool { return lookupSet(parameterRelated, op) }

// IsMarker reports whether op is a structural begin/end marker with no
// value of its own.
func (op AbstractOp) IsMarker() bool { return lookupSet(markerOps, op) }

// IsBothExprAndDef reports whether op both defines a new identifier and is
// itself a value-producing expression (e.g. DEFINE_VARIABLE, PHI, the
// DECODE_* family): back-ends that cache "the current value of ident X"
// need to know this to avoid re-emitting the defining expression.
func (op AbstractOp) IsBothExprAndDef() bool {
	switch op {
	case DEFINE_VARIABLE, DEFINE_VARIABLE_REF, DEFINE_CONST_VARIABLE, PHI,
		DECODE_INT, DECODE_INT_VECTOR, DECODE_INT_VECTOR_FIXED, PEEK_INT_VECTOR:
		return true
	default:
		return false
	}
}

func lookupSet(set [opcodeMax]bool, op AbstractOp) bool {
	if int(op) >= len(set) {
		return false
	}
	return set[op]
}
