package ir

import (
	"github.com/mna/bfcore/internal/otable"
)

// Range is a half-open [Start, End) span of indices into Module.Code.
type Range struct {
	Start, End int
}

// IdentRange pairs a defining identifier with the span of Code it occupies,
// populated by the "add ident ranges" pass, spec.md §4.N.
type IdentRange struct {
	Ident ObjectID
	Range Range
}

// Module is the binary module container described in spec.md §3: the main
// opcode stream plus every side table it references.
type Module struct {
	Code []Code

	identTable    *otable.Map[ObjectID, string]
	identTableRev *otable.Map[string, ObjectID]
	// identNodeIDs caches the ObjectID assigned to a given AST node's
	// identity, so repeated lookups of the same *ast.Ident return the same
	// ID (spec.md §4.A). Keyed by pointer identity via astNodeKey.
	identNodeIDs *otable.Map[astNodeKey, ObjectID]

	stringTable    *otable.Map[ObjectID, string]
	stringTableRev *otable.Map[string, ObjectID]

	metadataTable    *otable.Map[ObjectID, string]
	metadataTableRev *otable.Map[string, ObjectID]

	storageTable    *otable.Map[StorageRef, Storages]
	storageKeyTable *otable.Map[string, StorageRef]
	nextStorageRef  StorageRef

	immediateTable *otable.Map[uint64, ObjectID]

	TrueID, FalseID ObjectID

	// identIndexTable maps an ObjectID to the index, in Code, of the
	// opcode that defines it. Rebuilt after every mutating pass (spec.md
	// §3 invariant: "ident_index_table[id] = i iff code[i].ident == id").
	identIndexTable *otable.Map[ObjectID, int]

	IdentToRanges []IdentRange
	Programs      []Range

	ids *idAllocator

	scratch scratch
}

// astNodeKey is an opaque, comparable identity for an AST node, used only
// as a map key; lower.Builder constructs these from node pointers.
type astNodeKey struct{ ptr interface{} }

// scratch holds the process-local bookkeeping spec.md §3 and §5 describe
// as living on the Module during lowering: it is never serialized and has
// no meaning once Build has returned.
type scratch struct {
	funcStack []ObjectID
	inDecode  bool // current encode-vs-decode mode
	phi       phiStack

	prevExpr ObjectID

	// bitFieldBounds memoizes, per bit-field ObjectID, the result of the
	// §4.G sizing decision so §4.L can read it back without recomputing.
	bitFieldBounds map[ObjectID]bitFieldBounds
}

type bitFieldBounds struct {
	Type     PackedOpType
	SumBits  uint32
	Variable bool
}

// NewModule returns an empty Module ready for lowering.
func NewModule() *Module {
	m := &Module{
		identTable:       otable.New[ObjectID, string](64),
		identTableRev:    otable.New[string, ObjectID](64),
		identNodeIDs:     otable.New[astNodeKey, ObjectID](64),
		stringTable:      otable.New[ObjectID, string](16),
		stringTableRev:   otable.New[string, ObjectID](16),
		metadataTable:    otable.New[ObjectID, string](8),
		metadataTableRev: otable.New[string, ObjectID](8),
		storageTable:     otable.New[StorageRef, Storages](32),
		storageKeyTable:  otable.New[string, StorageRef](32),
		nextStorageRef:   1,
		immediateTable:   otable.New[uint64, ObjectID](16),
		identIndexTable:  otable.New[ObjectID, int](64),
		ids:              newIDAllocator(),
		scratch: scratch{
			bitFieldBounds: make(map[ObjectID]bitFieldBounds),
		},
	}
	m.TrueID = m.ids.alloc()
	m.FalseID = m.ids.alloc()
	return m
}

// NewID allocates a fresh ObjectID not associated with any AST node, used
// for synthesized temporaries that have no source-level name.
func (m *Module) NewID() ObjectID { return m.ids.alloc() }

// NewNodeID allocates a fresh ObjectID and associates it with node, so a
// later LookupNode call with the same key returns this ID. Used for
// expression temporaries that may be revisited (e.g. a merged field's
// original AST position).
func (m *Module) NewNodeID(node interface{}) ObjectID {
	key := astNodeKey{ptr: node}
	if id, ok := m.identNodeIDs.Get(key); ok {
		return id
	}
	id := m.ids.alloc()
	m.identNodeIDs.Put(key, id)
	return id
}

// LookupIdent returns the ObjectID for a named declaration. node, if
// non-nil, is the AST node's identity used to memoize repeated lookups of
// the same declaration (spec.md §4.A). Otherwise, and on the first lookup
// of a node, a fresh ID is allocated and recorded with name in both
// directions of identTable; lookups are not deduplicated by name alone.
func (m *Module) LookupIdent(node interface{}, name string) ObjectID {
	if node != nil {
		key := astNodeKey{ptr: node}
		if id, ok := m.identNodeIDs.Get(key); ok {
			return id
		}
	}
	id := m.ids.alloc()
	m.identTable.Put(id, name)
	m.identTableRev.Put(name, id)
	if node != nil {
		m.identNodeIDs.Put(astNodeKey{ptr: node}, id)
	}
	return id
}

// IdentName returns the name registered for id, or "" if none.
func (m *Module) IdentName(id ObjectID) string {
	name, _ := m.identTable.Get(id)
	return name
}

// InternString deduplicates s into the string table.
func (m *Module) InternString(s string) ObjectID {
	if id, ok := m.stringTableRev.Get(s); ok {
		return id
	}
	id := m.ids.alloc()
	m.stringTable.Put(id, s)
	m.stringTableRev.Put(s, id)
	return id
}

// InternMetadata deduplicates a metadata string into the metadata table.
func (m *Module) InternMetadata(s string) ObjectID {
	if id, ok := m.metadataTableRev.Get(s); ok {
		return id
	}
	id := m.ids.alloc()
	m.metadataTable.Put(id, s)
	m.metadataTableRev.Put(s, id)
	return id
}

// GetStorageRef interns a Storages shape, returning its deduplicated ref.
// The canonical key is stable (spec.md §4.A): the same shape built twice
// always returns the same ref.
func (m *Module) GetStorageRef(s Storages) StorageRef {
	key := string(storageKey(s))
	if ref, ok := m.storageKeyTable.Get(key); ok {
		return ref
	}
	ref := m.nextStorageRef
	m.nextStorageRef++
	m.storageKeyTable.Put(key, ref)
	m.storageTable.Put(ref, s)
	return ref
}

// GetStorage reverse-looks-up a StorageRef.
func (m *Module) GetStorage(ref StorageRef) (Storages, bool) {
	return m.storageTable.Get(ref)
}

// RenumberStorage replaces a ref's association atomically, used by the
// "optimize type usage" pass (spec.md §4.N) when compacting storage
// numbers. It does not change storageKeyTable bijectivity: callers must
// ensure no other ref is using newRef already.
func (m *Module) RenumberStorage(oldRef, newRef StorageRef) {
	s, ok := m.storageTable.Get(oldRef)
	if !ok {
		return
	}
	m.storageTable.Put(newRef, s)
	key := string(storageKey(s))
	m.storageKeyTable.Put(key, newRef)
}

// StorageRefs returns every live storage ref, in the order they were first
// interned (spec.md §5 determinism requirement).
func (m *Module) StorageRefs() []StorageRef { return m.storageTable.Keys() }

// RebuildStorageTable replaces the storage table wholesale, in the given
// order, used by the "optimize type usage" pass (spec.md §4.N) after it
// has decided a new ref for every shape and rewritten every Code.Type/
// FromType reference to match. Unlike RenumberStorage this leaves no
// stale entries behind under the old refs.
func (m *Module) RebuildStorageTable(order []StorageRef, shapes map[StorageRef]Storages) {
	m.storageTable = otable.New[StorageRef, Storages](len(order))
	m.storageKeyTable = otable.New[string, StorageRef](len(order))
	var max StorageRef
	for _, ref := range order {
		s := shapes[ref]
		m.storageTable.Put(ref, s)
		m.storageKeyTable.Put(string(storageKey(s)), ref)
		if ref > max {
			max = ref
		}
	}
	m.nextStorageRef = max + 1
}

// EachIdent, EachString, and EachMetadata walk their respective table in
// insertion order, the shape the container writer of spec.md §6.3 needs.
func (m *Module) EachIdent(fn func(id ObjectID, name string))       { m.identTable.Each(func(k ObjectID, v string) bool { fn(k, v); return true }) }
func (m *Module) EachString(fn func(id ObjectID, s string))         { m.stringTable.Each(func(k ObjectID, v string) bool { fn(k, v); return true }) }
func (m *Module) EachMetadata(fn func(id ObjectID, s string))       { m.metadataTable.Each(func(k ObjectID, v string) bool { fn(k, v); return true }) }

// IdentCount, StringCount, and MetadataCount report table sizes without
// requiring a full walk.
func (m *Module) IdentCount() int    { return m.identTable.Len() }
func (m *Module) StringCount() int   { return m.stringTable.Len() }
func (m *Module) MetadataCount() int { return m.metadataTable.Len() }

// PutIdent, PutString, and PutMetadata install a table entry with a
// caller-chosen id, used by the container reader of spec.md §6.3 to
// reconstruct a Module from its serialized tables without going through
// the name-interning path (which would allocate fresh ids).
func (m *Module) PutIdent(id ObjectID, name string) {
	m.identTable.Put(id, name)
	m.identTableRev.Put(name, id)
}
func (m *Module) PutString(id ObjectID, s string) {
	m.stringTable.Put(id, s)
	m.stringTableRev.Put(s, id)
}
func (m *Module) PutMetadata(id ObjectID, s string) {
	m.metadataTable.Put(id, s)
	m.metadataTableRev.Put(s, id)
}

// PutStorage installs a (ref, shape) pair directly, the storage-table
// counterpart of PutIdent/PutString for container deserialization.
func (m *Module) PutStorage(ref StorageRef, s Storages) {
	m.storageTable.Put(ref, s)
	m.storageKeyTable.Put(string(storageKey(s)), ref)
	if ref >= m.nextStorageRef {
		m.nextStorageRef = ref + 1
	}
}

// Reserve advances the id allocator past n so ids loaded from a
// serialized container (which already have fixed numeric values) are
// never handed out again to a fresh allocation.
func (m *Module) Reserve(n uint64) {
	if n >= m.ids.next {
		m.ids.next = n + 1
	}
}

// Immediate returns the (deduplicated) ObjectID for the int immediate n,
// emitting IMMEDIATE_INT or IMMEDIATE_INT64 the first time n is seen. The
// emitter parameter lets the caller control where the opcode is appended
// (expression lowering always appends at the current cursor).
func (m *Module) Immediate(n uint64, emit func() ObjectID) ObjectID {
	if id, ok := m.immediateTable.Get(n); ok {
		return id
	}
	id := emit()
	m.immediateTable.Put(n, id)
	return id
}

// RebuildIdentIndex rebuilds identIndexTable from Code, satisfying the
// spec.md §3 invariant that it must hold after every mutating pass. Passes
// that append, reorder, or rewrite Code must call this before returning.
func (m *Module) RebuildIdentIndex() {
	m.identIndexTable = otable.New[ObjectID, int](len(m.Code))
	for i, c := range m.Code {
		if c.Ident.Valid() {
			m.identIndexTable.Put(c.Ident, i)
		}
	}
}

// IndexOf returns the Code index defining id, and whether it was found.
func (m *Module) IndexOf(id ObjectID) (int, bool) {
	return m.identIndexTable.Get(id)
}

// Emit appends a Code record built by configuring a zero Code with set,
// and returns its index. This is the thin helper of spec.md §4.B; callers
// needing the new opcode's own Ident should set it inside set and read it
// back, or use EmitWithID.
func (m *Module) Emit(op AbstractOp, set func(*Code)) int {
	c := Code{Op: op}
	if set != nil {
		set(&c)
	}
	m.Code = append(m.Code, c)
	return len(m.Code) - 1
}

// EmitWithID is like Emit but allocates a fresh ObjectID for the opcode,
// assigns it to Ident before calling set, and returns that ID.
func (m *Module) EmitWithID(op AbstractOp, set func(*Code)) ObjectID {
	id := m.ids.alloc()
	m.Emit(op, func(c *Code) {
		c.Ident = id
		if set != nil {
			set(c)
		}
	})
	return id
}

// PrevExpr returns the id of the most recently lowered expression's
// result, and SetPrevExpr updates it. Used by statement-sequence lowering
// (spec.md §4.D "Foreach with side-effect awareness") to detect standalone
// expression statements.
func (m *Module) PrevExpr() ObjectID        { return m.scratch.prevExpr }
func (m *Module) SetPrevExpr(id ObjectID)   { m.scratch.prevExpr = id }

// PushFunc/PopFunc/CurrentFunc manage the enclosing-function stack.
func (m *Module) PushFunc(id ObjectID)   { m.scratch.funcStack = append(m.scratch.funcStack, id) }
func (m *Module) PopFunc() {
	if n := len(m.scratch.funcStack); n > 0 {
		m.scratch.funcStack = m.scratch.funcStack[:n-1]
	}
}
func (m *Module) CurrentFunc() ObjectID {
	if n := len(m.scratch.funcStack); n > 0 {
		return m.scratch.funcStack[n-1]
	}
	return 0
}

// SetDecodeMode/InDecodeMode toggle and query the encode-vs-decode mode
// flag used while synthesizing a format's coder bodies (spec.md §4.E).
func (m *Module) SetDecodeMode(v bool)  { m.scratch.inDecode = v }
func (m *Module) InDecodeMode() bool    { return m.scratch.inDecode }

// BitFieldBounds/SetBitFieldBounds memoize the §4.G sizing decision for a
// bit field, by its defining ObjectID.
func (m *Module) BitFieldBounds(id ObjectID) (PackedOpType, uint32, bool) {
	b, ok := m.scratch.bitFieldBounds[id]
	if !ok {
		return PackedFixed, 0, false
	}
	return b.Type, b.SumBits, true
}
func (m *Module) SetBitFieldBounds(id ObjectID, t PackedOpType, sumBits uint32) {
	m.scratch.bitFieldBounds[id] = bitFieldBounds{Type: t, SumBits: sumBits}
}
