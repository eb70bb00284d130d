package indexed

// Batch buffers pushes and removals so they can be applied to a store in one
// step, for example after iterating over it.
type Batch[T any] struct {
	pushes  []T
	removes []int
}

// NewBatch creates an empty batch.
func NewBatch[T any]() *Batch[T] {
	return &Batch[T]{}
}

// Push queues a value to be appended on Flush.
func (b *Batch[T]) Push(value T) {
	b.pushes = append(b.pushes, value)
}

// Remove queues the removal of index.
func (b *Batch[T]) Remove(index int) {
	b.removes = append(b.removes, index)
}

// Len returns the number of queued operations.
func (b *Batch[T]) Len() int {
	return len(b.pushes) + len(b.removes)
}

// Flush applies all queued removals, then all queued pushes, to the store and
// resets the batch. It returns the indices assigned to the pushed values in
// the order they were queued.
func (b *Batch[T]) Flush(s *Store[T]) []int {
	for _, index := range b.removes {
		s.Remove(index)
	}

	var assigned []int
	if len(b.pushes) > 0 {
		assigned = make([]int, 0, len(b.pushes))
	}
	for _, v := range b.pushes {
		assigned = append(assigned, s.Push(v))
	}

	clear(b.pushes)
	b.pushes = b.pushes[:0]
	b.removes = b.removes[:0]
	return assigned
}
