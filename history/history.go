// Package history keeps numbered versions of values per integer key.
//
// Each key owns an indexed.Store, so version numbers are permanent: a
// retracted version leaves a gap and the number is never reused. The current
// version of a key is its highest surviving version.
package history

import (
	"iter"
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/plus3/fixvec/indexed"
)

// History maps integer keys to their version lists.
// It is not safe for concurrent use.
type History[K intmap.IntKey, V any] struct {
	entries *intmap.Map[K, *indexed.Store[V]]
}

// New creates an empty history sized for roughly capacity keys.
func New[K intmap.IntKey, V any](capacity int) *History[K, V] {
	return &History[K, V]{
		entries: intmap.New[K, *indexed.Store[V]](capacity),
	}
}

// Record appends v as the newest version of key and returns its version number.
func (h *History[K, V]) Record(key K, v V) int {
	versions, ok := h.entries.Get(key)
	if !ok {
		versions = indexed.New[V]()
		h.entries.Put(key, versions)
	}
	return versions.Push(v)
}

// Current returns the highest surviving version of key.
func (h *History[K, V]) Current(key K) (int, V, bool) {
	versions, ok := h.entries.Get(key)
	if !ok {
		var zero V
		return -1, zero, false
	}
	return versions.Last()
}

// Initial returns the lowest surviving version of key.
func (h *History[K, V]) Initial(key K) (int, V, bool) {
	versions, ok := h.entries.Get(key)
	if !ok {
		var zero V
		return -1, zero, false
	}
	return versions.First()
}

// Version returns a specific version of key.
func (h *History[K, V]) Version(key K, version int) (V, bool) {
	versions, ok := h.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return versions.Get(version)
}

// Retract removes a version of key and returns it. The version number stays
// taken. A key whose versions are all retracted is still known to the
// history; use Drop to forget it.
func (h *History[K, V]) Retract(key K, version int) (V, bool) {
	versions, ok := h.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return versions.Remove(version)
}

// Versions iterates over the surviving versions of key, oldest first.
func (h *History[K, V]) Versions(key K) iter.Seq2[int, V] {
	return func(yield func(int, V) bool) {
		versions, ok := h.entries.Get(key)
		if !ok {
			return
		}
		for i, v := range versions.All() {
			if !yield(i, v) {
				return
			}
		}
	}
}

// Store returns the version store of key.
func (h *History[K, V]) Store(key K) (*indexed.Store[V], bool) {
	return h.entries.Get(key)
}

// Drop forgets key and all of its versions.
func (h *History[K, V]) Drop(key K) bool {
	if !h.entries.Has(key) {
		return false
	}
	h.entries.Del(key)
	return true
}

// Keys returns all known keys in ascending order.
func (h *History[K, V]) Keys() []K {
	keys := make([]K, 0, h.entries.Len())
	h.entries.ForEach(func(k K, _ *indexed.Store[V]) bool {
		keys = append(keys, k)
		return true
	})
	slices.Sort(keys)
	return keys
}

// Len returns the number of known keys.
func (h *History[K, V]) Len() int {
	return h.entries.Len()
}
