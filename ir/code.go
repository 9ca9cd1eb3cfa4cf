package ir

// BinOp and UnOp mirror ast.BinOp/ast.UnOp at the IR level so that a
// BINARY/UNARY opcode is self-describing without reaching back into the
// AST (the AST is discarded once lowering completes).
type BinOp = uint8
type UnOp = uint8

const (
	BAdd BinOp = iota
	BSub
	BMul
	BDiv
	BMod
	BAnd
	BOr
	BXor
	BShl
	BShr
	BEq
	BNeq
	BLt
	BLe
	BGt
	BGe
)

const (
	UNeg UnOp = iota
	UNot
	UBitNot
)

// FuncType classifies a DEFINE_FUNCTION's role.
type FuncType uint8

const (
	FuncEncode FuncType = iota
	FuncDecode
	FuncUnionGetter
	FuncUnionSetter
	FuncVectorSetter
	FuncHelper
)

// MergeMode classifies how a MERGED_CONDITIONAL_FIELD's type was derived,
// spec.md §4.J.
type MergeMode uint8

const (
	MergeCommonType MergeMode = iota
	MergeStrictCommonType
	MergeVariant
)

// CheckAt records where a CHECK_UNION opcode's guard applies, spec.md
// §4.K.
type CheckAt uint8

const (
	CheckAtPropertyGetterCommon CheckAt = iota
	CheckAtPropertyGetterVariant
	CheckAtPropertySetter
	CheckAtEncode
	CheckAtDecode
)

// PackedOpType is the spec.md §4.G bit-field sizing decision.
type PackedOpType uint8

const (
	PackedFixed PackedOpType = iota
	PackedVariable
)

// ReserveType distinguishes what a RESERVE_SIZE call reserves capacity
// for.
type ReserveType uint8

const (
	ReserveVector ReserveType = iota
	ReserveBytes
)

// SubRangeType distinguishes a byte sub-range from a bit sub-range,
// spec.md §4.E "Sub-byte sub-range".
type SubRangeType uint8

const (
	SubRangeByte SubRangeType = iota
	SubRangeBit
)

// CastType captures the narrowing/widening/enum<->int/float<->int-bits
// semantics of a CAST opcode, spec.md §4.C.
type CastType uint8

const (
	CastIdentity CastType = iota
	CastIntWiden
	CastIntNarrow
	CastIntSignChange
	CastEnumToInt
	CastIntToEnum
	CastFloatBitsToInt
	CastIntBitsToFloat
	CastRecursiveToStruct
)

// PhiParam is one predecessor contribution to a PHI node: the id of the
// opcode that produced the branch's condition, and the id of the last
// assignment to the joined variable along that branch.
type PhiParam struct {
	Condition  ObjectID
	Assignment ObjectID
}

// CoderFlag is one bit of the encode_flags/decode_flags bitset propagated
// by the trait-analysis pass, spec.md §4.N.
type CoderFlag uint8

const (
	FlagNeedsEOF CoderFlag = 1 << iota
	FlagNeedsPeek
	FlagNeedsSeek
	FlagNeedsRemainBytes
	FlagNeedsSubRange
)

// Code is one opcode record. Which fields are meaningful is determined by
// Op; reading an unset field is a programmer error, exactly as spec.md §3
// describes. Per-field comments below name the opcodes that populate that
// field; this mirrors the uniform-record-with-optional-fields design the
// spec calls out as "equally workable" to a tagged-variant-per-opcode
// representation, provided the live fields per opcode are documented,
// which is what the comments here, plus the predicate tables in
// opcode.go, do.
type Code struct {
	Op AbstractOp

	Ident ObjectID // the id this opcode defines, if any
	Ref   ObjectID // primary operand reference (condition, value, callee...)
	Left  ObjectID // BINARY/ASSIGN/DEFINE_ENCODER/DEFINE_DECODER left operand
	Right ObjectID // BINARY/ASSIGN/DEFINE_ENCODER/DEFINE_DECODER right operand
	Belong ObjectID // enclosing scope (format, function, fallback...)

	BOp BinOp
	UOp UnOp

	Type     StorageRef
	FromType StorageRef
	CastType CastType

	IntValue   uint64 // Varint-range immediate payload
	IntValue64 uint64 // oversize immediate payload (IMMEDIATE_INT64)

	BitSize     uint32
	BitSizePlus uint32 // BitSize+1; 0 means "variable"

	Endian EndianExpr

	FuncType FuncType

	MergeMode    MergeMode
	CheckAt      CheckAt
	PackedOpType PackedOpType
	ReserveType  ReserveType
	SubRangeType SubRangeType

	Fallback ObjectID
	Metadata ObjectID

	Param     []ObjectID
	PhiParams []PhiParam

	EncodeFlags uint8
	DecodeFlags uint8

	ArrayLength ObjectID
	StringRef   ObjectID
}
