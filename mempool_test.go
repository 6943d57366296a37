package flock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaskSlotInvokeRunsTaskAndFreesSlot(t *testing.T) {
	b := newBlock(2)
	ran := false
	slot := b.getSlot()
	slot.task = func() { ran = true }

	recovered, panicked := slot.invoke()
	require.True(t, ran)
	require.False(t, panicked)
	require.Nil(t, recovered)
	require.True(t, slot.done)
	require.True(t, b.fullyFreed() == false) // one of two slots freed
}

func TestTaskSlotInvokeRecoversPanic(t *testing.T) {
	b := newBlock(1)
	slot := b.getSlot()
	slot.task = func() { panic("boom") }

	recovered, panicked := slot.invoke()
	require.True(t, panicked)
	require.Equal(t, "boom", recovered)
	require.True(t, slot.done)
	require.True(t, b.fullyFreed())
}

func TestMempoolReusesFullyFreedBlock(t *testing.T) {
	p := newMempool(2)

	s1 := p.allocate(func() {})
	s2 := p.allocate(func() {})
	require.NotSame(t, s1, s2)

	// exhausting the first block should allocate a second one
	s3 := p.allocate(func() {})
	require.NotNil(t, s3)

	// freeing everything in the first block should make it reclaimable
	s1.block.freeOne()
	s2.block.freeOne()
	require.True(t, s1.block.fullyFreed())

	s4 := p.allocate(func() {})
	require.NotNil(t, s4)

	// with the second block now exhausted too, the next allocation reuses
	// the fully freed first block from its first slot
	s5 := p.allocate(func() {})
	require.Same(t, s1, s5)
}

func TestMempoolReset(t *testing.T) {
	p := newMempool(4)
	for i := 0; i < 4; i++ {
		p.allocate(func() {})
	}
	p.reset()

	s := p.allocate(func() {})
	require.NotNil(t, s)
	require.Same(t, p.tail, p.head)
}
