package ir

import (
	"encoding/binary"
)

// StorageTag classifies one element of a Storages list.
type StorageTag uint8

const (
	StUint StorageTag = iota
	StInt
	StFloat
	StBool
	StStructRef
	StRecursiveStructRef
	StEnum
	StArray
	StVector
	StOptional
	StPtr
	StVariant
	StCoderReturn
	StPropertySetterReturn
)

// Storage is one tagged leaf of a type expression, spec.md §3. Which
// fields are meaningful depends on Tag:
//
//   - StUint, StInt, StFloat: Size is the bit width.
//   - StStructRef, StRecursiveStructRef, StEnum: Ref names the format or
//     enum.
//   - StArray: Size is the element count (0 for a dynamically-sized
//     array whose length is carried elsewhere in the IR, not in the
//     storage shape).
//   - StVariant: Ref names the merged field the variant was derived for
//     (its "head"); the alternatives follow as later elements of the
//     Storages list the same way an array's element type does.
//   - StVector, StOptional, StPtr: no extra field; the base/element type
//     is the next Storage in the list.
//   - StBool, StCoderReturn, StPropertySetterReturn: no extra fields.
type Storage struct {
	Tag  StorageTag
	Size uint32
	Ref  ObjectID
}

// Storages is a non-empty ordered list whose first element classifies the
// type and whose tail, when applicable, gives element/base types. E.g. a
// `[]u8` vector is Storages{ {Tag: StVector}, {Tag: StUint, Size: 8} }.
type Storages []Storage

// StorageRef is a deduplicated handle into a Module's storage table;
// identical type shapes share one ref. The zero value is not a valid ref
// (mirroring ObjectID's "no reference" convention).
type StorageRef uint32

// storageKey produces the canonical, stable byte-string key used to
// deduplicate a Storages value in a Module's storage_key_table. The same
// shape built twice must always produce byte-identical keys (spec.md §4.A),
// so every field that participates in equality is written in a fixed
// order and width; nothing here may depend on map iteration.
func storageKey(s Storages) []byte {
	buf := make([]byte, 0, len(s)*10+2)
	var tmp [8]byte
	binary.BigEndian.PutUint16(tmp[:2], uint16(len(s)))
	buf = append(buf, tmp[:2]...)
	for _, st := range s {
		buf = append(buf, byte(st.Tag))
		binary.BigEndian.PutUint32(tmp[:4], st.Size)
		buf = append(buf, tmp[:4]...)
		binary.BigEndian.PutUint64(tmp[:8], uint64(st.Ref))
		buf = append(buf, tmp[:8]...)
	}
	return buf
}

// Equal reports whether two Storages values denote the same type shape.
// Two STRUCT_REF storages pointing at different format IDs are never
// equal, matching spec.md §3's "Storage equality is structural" rule.
func (s Storages) Equal(o Storages) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
