package indexed

import (
	"encoding/json"
	"fmt"
)

type jsonSlot[T any] struct {
	Value T `json:"value"`
}

type jsonStore[T any] struct {
	NextIndex int            `json:"next_index"`
	Slots     []*jsonSlot[T] `json:"slots"`
}

// MarshalJSON encodes every slot up to NextIndex in index order. Empty
// slots are written as null so they keep their position.
func (s *Store[T]) MarshalJSON() ([]byte, error) {
	out := jsonStore[T]{
		NextIndex: s.nextIndex,
		Slots:     make([]*jsonSlot[T], s.nextIndex),
	}
	for i, v := range s.All() {
		out.Slots[i] = &jsonSlot[T]{Value: v}
	}
	return json.Marshal(out)
}

// UnmarshalJSON replaces the store's contents with the encoded state.
// A JSON null leaves the store unchanged.
func (s *Store[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var in jsonStore[T]
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Slots) != in.NextIndex {
		return fmt.Errorf("%w: %d slots for next index %d", ErrInvalidState, len(in.Slots), in.NextIndex)
	}

	restored, err := Restore(in.NextIndex, func(yield func(int, T) bool) {
		for i, slot := range in.Slots {
			if slot == nil {
				continue
			}
			if !yield(i, slot.Value) {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	*s = *restored
	return nil
}
