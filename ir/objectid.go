// Package ir implements the binary module: the linear opcode stream and
// side tables described in spec.md §3-4. It is the data model shared by
// the lower package (which builds a raw Module from an ast.Program) and
// the passes package (which rewrites it into canonical form).
package ir

// ObjectID uniquely names a program entity: a format, field, function,
// temporary, immediate, enum member, bit field, union, union member,
// variable, property, or type storage. The zero value means "no
// reference". IDs are allocated from a single monotonically increasing
// counter and are never reused, even across passes that remove the
// opcode that originally carried one.
type ObjectID uint64

// noID is the "no reference" sentinel, spelled out for readability at call
// sites that check for it explicitly.
const noID ObjectID = 0

// Valid reports whether id refers to an entity (i.e. is not the "no
// reference" sentinel).
func (id ObjectID) Valid() bool { return id != noID }

// maxObjectID is the largest value representable by the Varint encoding of
// spec.md §3 ("a u64 with value < 2^62").
const maxObjectID = (uint64(1) << 62) - 1

// idAllocator hands out fresh, never-reused ObjectIDs.
type idAllocator struct {
	next uint64
}

// newIDAllocator starts an allocator whose first id is 1 (0 is reserved).
func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

// alloc returns the next available id. It panics if the 62-bit budget is
// exhausted, which in practice cannot happen for any real source module.
func (a *idAllocator) alloc() ObjectID {
	if a.next > maxObjectID {
		panic("ir: object id space exhausted")
	}
	id := a.next
	a.next++
	return ObjectID(id)
}
