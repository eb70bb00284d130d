package indexed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTryPushOverflow(t *testing.T) {
	s := New[int]()
	s.nextIndex = math.MaxInt

	index, err := s.TryPush(1)
	assert.ErrorIs(t, err, ErrIndexOverflow)
	assert.Equal(t, -1, index)
	assert.Equal(t, math.MaxInt, s.NextIndex())
	assert.Equal(t, 0, s.Len())

	assert.PanicsWithError(t, ErrIndexOverflow.Error(), func() {
		s.Push(1)
	})
}

func TestGrowCoversLastSlot(t *testing.T) {
	s := New[int]()

	s.grow(1)
	assert.Len(t, s.blocks, 1)
	s.grow(blockSize)
	assert.Len(t, s.blocks, 1)
	s.grow(blockSize + 1)
	assert.Len(t, s.blocks, 2)
	s.grow(0)
	assert.Len(t, s.filled, 2)
}
