package ast

// Endian is the endianness requested for an integer/float field.
type Endian uint8

const (
	EndianUnspec Endian = iota
	EndianBig
	EndianLittle
	EndianNative
	EndianDynamic // resolved at runtime via DynamicRef
)

// EndianSpec is the endian annotation on an IntType/FloatType, or on a
// Format's default. DynamicRef names the earlier field whose decoded value
// selects little vs. big endian at run time; it is only meaningful when
// Endian == EndianDynamic.
type EndianSpec struct {
	Endian     Endian
	DynamicRef *Ident
}

// FollowKind classifies how an open-ended ("any length") array's end is
// recognized, per spec.md §4.E "Open-ended vector decode".
type FollowKind uint8

const (
	FollowNone     FollowKind = iota
	FollowEnd                 // decode until EOF
	FollowConstant            // stop when the next bytes match a constant
)

// Type is implemented by every type expression.
type Type interface {
	Node
	isType()
}

type (
	// IntType is a fixed-width integer type, e.g. u16, i3 (inside a bit
	// field).
	IntType struct {
		Pos    Pos
		Bits   int
		Endian EndianSpec
		Signed bool
	}

	// FloatType is an IEEE-754 float of the given bit width (16/32/64).
	FloatType struct {
		Pos    Pos
		Bits   int
		Endian EndianSpec
	}

	// BoolType is a single-bit or single-byte boolean.
	BoolType struct {
		Pos Pos
	}

	// StrLiteralType is a fixed sequence of literal bytes that must decode
	// to exactly that value (a magic number or tag).
	StrLiteralType struct {
		Pos   Pos
		Value []byte
	}

	// ArrayType is `[len]Elem`, `[expr]Elem`, or an open `[..]Elem`.
	ArrayType struct {
		Pos    Pos
		Elem   Type
		Len    Expr // non-nil for a literal or expression length
		Follow FollowKind
		// FollowLit is the constant literal bytes to match against when
		// Follow == FollowConstant.
		FollowLit []byte
	}

	// StructType references another Format by name.
	StructType struct {
		Pos Pos
		Ref *Ident
	}

	// RecursiveStructType is a StructType that closes a cycle back to the
	// format currently being defined; the front end is expected to mark
	// this explicitly rather than have the core infer it from the name,
	// since only the front end has full knowledge of the format graph at
	// parse time (the core re-derives the distinction at the storage level
	// during format ordering, spec.md §4.I).
	RecursiveStructType struct {
		Pos Pos
		Ref *Ident
	}

	// EnumType references an Enum by name.
	EnumType struct {
		Pos Pos
		Ref *Ident
	}

	// IdentType is a type alias; the core recurses on the aliased type.
	IdentType struct {
		Pos Pos
		Ref *Ident
		// Underlying is resolved by the front end to the aliased type node.
		Underlying Type
	}

	// OptionalType is `Base?`.
	OptionalType struct {
		Pos  Pos
		Base Type
	}

	// PointerType is `Base*`, used for recursive/self-referential fields.
	PointerType struct {
		Pos  Pos
		Base Type
	}

	// VariantType is a tagged union of alternatives, synthesized by the
	// conditional-field merge pass (spec.md §4.J) rather than written by
	// hand in most source, but representable directly too.
	VariantType struct {
		Pos          Pos
		Alternatives []Type
	}
)

func (*IntType) isType()             {}
func (*FloatType) isType()           {}
func (*BoolType) isType()            {}
func (*StrLiteralType) isType()      {}
func (*ArrayType) isType()           {}
func (*StructType) isType()          {}
func (*RecursiveStructType) isType() {}
func (*EnumType) isType()            {}
func (*IdentType) isType()           {}
func (*OptionalType) isType()        {}
func (*PointerType) isType()         {}
func (*VariantType) isType()         {}

func (n *IntType) Span() (Pos, Pos)     { return n.Pos, n.Pos }
func (n *FloatType) Span() (Pos, Pos)   { return n.Pos, n.Pos }
func (n *BoolType) Span() (Pos, Pos)    { return n.Pos, n.Pos }
func (n *StrLiteralType) Span() (Pos, Pos) { return n.Pos, n.Pos }
func (n *ArrayType) Span() (Pos, Pos) {
	if n.Len != nil {
		_, end := n.Len.Span()
		return n.Pos, end
	}
	return n.Pos, n.Pos
}
func (n *StructType) Span() (Pos, Pos)          { return n.Pos, n.Ref.Pos }
func (n *RecursiveStructType) Span() (Pos, Pos) { return n.Pos, n.Ref.Pos }
func (n *EnumType) Span() (Pos, Pos)            { return n.Pos, n.Ref.Pos }
func (n *IdentType) Span() (Pos, Pos)           { return n.Pos, n.Ref.Pos }
func (n *OptionalType) Span() (Pos, Pos) {
	_, end := n.Base.Span()
	return n.Pos, end
}
func (n *PointerType) Span() (Pos, Pos) {
	_, end := n.Base.Span()
	return n.Pos, end
}
func (n *VariantType) Span() (Pos, Pos) { return n.Pos, n.Pos }

func (n *IntType) Walk(Visitor)        {}
func (n *FloatType) Walk(Visitor)      {}
func (n *BoolType) Walk(Visitor)       {}
func (n *StrLiteralType) Walk(Visitor) {}
func (n *ArrayType) Walk(v Visitor) {
	Walk(v, n.Elem)
	if n.Len != nil {
		Walk(v, n.Len)
	}
}
func (n *StructType) Walk(Visitor)          {}
func (n *RecursiveStructType) Walk(Visitor) {}
func (n *EnumType) Walk(Visitor)            {}
func (n *IdentType) Walk(Visitor)           {}
func (n *OptionalType) Walk(v Visitor)      { Walk(v, n.Base) }
func (n *PointerType) Walk(v Visitor)       { Walk(v, n.Base) }
func (n *VariantType) Walk(v Visitor) {
	for _, alt := range n.Alternatives {
		Walk(v, alt)
	}
}
