package flock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRingBufferRejectsNonPowerOfTwo(t *testing.T) {
	_, err := newRingBuffer(3)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRingBufferGetSet(t *testing.T) {
	rb, err := newRingBuffer(4)
	require.NoError(t, err)

	slots := make([]*taskSlot, 4)
	for i := range slots {
		slots[i] = &taskSlot{}
	}
	for i, s := range slots {
		rb.set(int64(i), s)
	}
	for i, s := range slots {
		require.Same(t, s, rb.get(int64(i)))
	}

	// indices wrap modulo capacity
	require.Same(t, slots[0], rb.get(4))
}

func TestRingBufferEnlargedCopyPreservesLiveRange(t *testing.T) {
	rb, err := newRingBuffer(4)
	require.NoError(t, err)

	a, b, c := &taskSlot{}, &taskSlot{}, &taskSlot{}
	rb.set(0, a)
	rb.set(1, b)
	rb.set(2, c)

	bigger := rb.enlargedCopy(3, 0)
	require.Equal(t, int64(8), bigger.capacity)
	require.Same(t, a, bigger.get(0))
	require.Same(t, b, bigger.get(1))
	require.Same(t, c, bigger.get(2))

	// the original buffer is left untouched for concurrent readers
	require.Same(t, a, rb.get(0))
}
