// Package otable provides an order-preserving map built on top of a swiss
// hash table. It exists because spec.md §5 ("Determinism over hash-maps")
// requires every table whose iteration order is observable in the
// serialized output (identifier dumps, the storage table, format
// topological-sort tie-breaking) to iterate in insertion order rather than
// whatever order a plain hash map happens to produce. A bare Go map would
// satisfy lookups but not that requirement; a plain ordered slice would
// satisfy ordering but make lookups O(n). This pairs a swiss.Map (adapted
// from the pattern in the teacher's lang/machine/map.go, which wraps the
// same library for its dictionary value type) with an insertion-ordered
// slice of keys.
package otable

import "github.com/dolthub/swiss"

// Map is a hash map that also remembers insertion order.
type Map[K comparable, V any] struct {
	idx   *swiss.Map[K, V]
	order []K
}

// New returns an empty Map with initial capacity for at least sizeHint
// entries (a hint only, not an upper bound).
func New[K comparable, V any](sizeHint int) *Map[K, V] {
	if sizeHint < 1 {
		sizeHint = 1
	}
	return &Map[K, V]{
		idx: swiss.NewMap[K, V](uint32(sizeHint)),
	}
}

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.idx.Get(key)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.idx.Get(key)
	return ok
}

// Put inserts or overwrites the value for key. The first insertion of a
// given key fixes its position in iteration order; subsequent overwrites
// of the same key do not move it.
func (m *Map[K, V]) Put(key K, val V) {
	if !m.Has(key) {
		m.order = append(m.order, key)
	}
	m.idx.Put(key, val)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.order) }

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (m *Map[K, V]) Keys() []K { return m.order }

// Each calls fn once per entry, in insertion order, stopping early if fn
// returns false.
func (m *Map[K, V]) Each(fn func(key K, val V) bool) {
	for _, k := range m.order {
		v, ok := m.idx.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}
