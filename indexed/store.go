// Package indexed provides Store, a growable collection that gives every
// inserted value a permanent index. Removing a value leaves an empty slot
// behind: indices are never shifted, compacted or handed out twice.
package indexed

import (
	"fmt"
	"iter"
	"math"
	"strings"
)

const (
	blockSize = 64
)

// Store holds values under permanent indices.
// Values live in blocks of 64 slots with a parallel occupancy block. A slot
// index, once assigned, refers either to the value it was assigned to or to
// nothing.
//
// A Store is not safe for concurrent use. The zero value is an empty store.
type Store[T any] struct {
	blocks    [][blockSize]T
	filled    [][blockSize]bool
	count     int
	nextIndex int
}

// New creates an empty store.
func New[T any]() *Store[T] {
	return &Store[T]{}
}

// FromSlice creates a store holding values at indices 0..len(values)-1.
func FromSlice[T any](values []T) *Store[T] {
	s := New[T]()
	for _, v := range values {
		s.Push(v)
	}
	return s
}

// Collect creates a store from a sequence, indexing values in the order they are yielded.
func Collect[T any](seq iter.Seq[T]) *Store[T] {
	s := New[T]()
	for v := range seq {
		s.Push(v)
	}
	return s
}

// Push appends a value and returns the index it was assigned.
// It panics with ErrIndexOverflow if the index space is exhausted.
func (s *Store[T]) Push(value T) int {
	index, err := s.TryPush(value)
	if err != nil {
		panic(err)
	}
	return index
}

// Insert is the same as Push. Values are only ever added at NextIndex.
func (s *Store[T]) Insert(value T) int {
	return s.Push(value)
}

// TryPush appends a value like Push, returning ErrIndexOverflow instead of
// panicking when no further index can be assigned.
func (s *Store[T]) TryPush(value T) (int, error) {
	if s.nextIndex == math.MaxInt {
		return -1, ErrIndexOverflow
	}

	index := s.nextIndex
	s.nextIndex++
	s.place(index, value)
	return index, nil
}

// Remove empties the slot at index and returns the value it held.
// It returns false if the index was never assigned or is already empty.
func (s *Store[T]) Remove(index int) (T, bool) {
	var zero T
	if !s.Has(index) {
		return zero, false
	}

	blockIdx := index / blockSize
	slotIdx := index % blockSize

	value := s.blocks[blockIdx][slotIdx]
	s.blocks[blockIdx][slotIdx] = zero
	s.filled[blockIdx][slotIdx] = false
	s.count--
	return value, true
}

// Get returns the value at index.
func (s *Store[T]) Get(index int) (T, bool) {
	if !s.Has(index) {
		var zero T
		return zero, false
	}
	return s.blocks[index/blockSize][index%blockSize], true
}

// Has reports whether the slot at index holds a value.
func (s *Store[T]) Has(index int) bool {
	if index < 0 || index >= s.nextIndex {
		return false
	}

	blockIdx := index / blockSize
	if blockIdx >= len(s.filled) {
		return false
	}

	return s.filled[blockIdx][index%blockSize]
}

// First returns the lowest occupied index and its value.
func (s *Store[T]) First() (int, T, bool) {
	for i, v := range s.All() {
		return i, v, true
	}
	var zero T
	return -1, zero, false
}

// Last returns the highest occupied index and its value.
func (s *Store[T]) Last() (int, T, bool) {
	for i, v := range s.Backward() {
		return i, v, true
	}
	var zero T
	return -1, zero, false
}

// All returns an iterator over occupied slots in ascending index order.
// Empty slots are skipped. The bound is taken when iteration starts, so
// values pushed during a traversal are not visited by it.
func (s *Store[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		end := s.nextIndex
		for i := 0; i < end; i++ {
			blockIdx := i / blockSize
			slotIdx := i % blockSize

			if blockIdx >= len(s.filled) {
				return
			}

			if s.filled[blockIdx][slotIdx] {
				if !yield(i, s.blocks[blockIdx][slotIdx]) {
					return
				}
			}
		}
	}
}

// Backward returns an iterator over occupied slots in descending index order.
func (s *Store[T]) Backward() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		// Slots past the last allocated block are empty.
		for i := min(s.nextIndex, len(s.filled)*blockSize) - 1; i >= 0; i-- {
			blockIdx := i / blockSize
			slotIdx := i % blockSize

			if s.filled[blockIdx][slotIdx] {
				if !yield(i, s.blocks[blockIdx][slotIdx]) {
					return
				}
			}
		}
	}
}

// Values returns an iterator over stored values in ascending index order.
func (s *Store[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range s.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// Indices returns an iterator over occupied indices in ascending order.
func (s *Store[T]) Indices() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range s.All() {
			if !yield(i) {
				return
			}
		}
	}
}

// Len returns the number of occupied slots. This is not NextIndex unless
// nothing has been removed.
func (s *Store[T]) Len() int {
	return s.count
}

// IsEmpty reports whether no slot holds a value. A store can be empty while
// NextIndex is greater than zero.
func (s *Store[T]) IsEmpty() bool {
	return s.count == 0
}

// NextIndex returns the index the next Push will assign.
func (s *Store[T]) NextIndex() int {
	return s.nextIndex
}

// Clear empties every slot. NextIndex is kept, so later pushes continue
// numbering where they left off. Allocated blocks are kept for reuse.
func (s *Store[T]) Clear() {
	clear(s.blocks)
	clear(s.filled)
	s.count = 0
}

// Reset empties the store and sets NextIndex back to 0.
func (s *Store[T]) Reset() {
	s.Clear()
	s.blocks = s.blocks[:0]
	s.filled = s.filled[:0]
	s.nextIndex = 0
}

// Clone returns a copy of the store with the same indices and NextIndex.
// Values are copied by assignment.
func (s *Store[T]) Clone() *Store[T] {
	c := &Store[T]{
		blocks:    make([][blockSize]T, len(s.blocks)),
		filled:    make([][blockSize]bool, len(s.filled)),
		count:     s.count,
		nextIndex: s.nextIndex,
	}
	copy(c.blocks, s.blocks)
	copy(c.filled, s.filled)
	return c
}

// String formats the store as one "index: value" line per occupied slot.
func (s *Store[T]) String() string {
	var b strings.Builder
	for i, v := range s.All() {
		fmt.Fprintf(&b, "%d: %v\n", i, v)
	}
	return b.String()
}

// Equal reports whether two stores have the same NextIndex and hold equal
// values at the same indices.
func Equal[T comparable](a, b *Store[T]) bool {
	return EqualFunc(a, b, func(x, y T) bool { return x == y })
}

// EqualFunc is like Equal but compares values with eq.
func EqualFunc[T, U any](a *Store[T], b *Store[U], eq func(T, U) bool) bool {
	if a.nextIndex != b.nextIndex || a.count != b.count {
		return false
	}
	for i, v := range a.All() {
		w, ok := b.Get(i)
		if !ok || !eq(v, w) {
			return false
		}
	}
	return true
}

// Restore rebuilds a store from its state: the next index to assign and the
// occupied slots. Entries must be yielded in strictly ascending index order
// and lie within [0, nextIndex).
func Restore[T any](nextIndex int, entries iter.Seq2[int, T]) (*Store[T], error) {
	if nextIndex < 0 {
		return nil, fmt.Errorf("%w: negative next index %d", ErrInvalidState, nextIndex)
	}

	s := New[T]()
	last := -1
	for i, v := range entries {
		if i <= last {
			return nil, fmt.Errorf("%w: index %d after %d", ErrInvalidState, i, last)
		}
		if i >= nextIndex {
			return nil, fmt.Errorf("%w: index %d not below next index %d", ErrInvalidState, i, nextIndex)
		}
		s.place(i, v)
		last = i
	}
	s.nextIndex = nextIndex
	return s, nil
}

// place stores value at index, allocating blocks up to it. Blocks past the
// last occupied slot are allocated lazily.
func (s *Store[T]) place(index int, value T) {
	s.grow(index + 1)

	blockIdx := index / blockSize
	slotIdx := index % blockSize

	s.blocks[blockIdx][slotIdx] = value
	s.filled[blockIdx][slotIdx] = true
	s.count++
}

// grow allocates enough blocks to cover n slots.
func (s *Store[T]) grow(n int) {
	if n <= 0 {
		return
	}
	need := (n-1)/blockSize + 1
	for len(s.blocks) < need {
		s.blocks = append(s.blocks, [blockSize]T{})
		s.filled = append(s.filled, [blockSize]bool{})
	}
}
