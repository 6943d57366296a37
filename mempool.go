package flock

import "sync/atomic"

// taskSlot is storage for one task plus a back-reference to its owning
// block. It is invoked exactly once by whichever goroutine wins the pop
// race for its index; invocation always marks the slot done and frees it
// back to the block, whether or not the task panicked.
type taskSlot struct {
	task  func()
	block *block
	done  bool
}

// invoke runs the task exactly once, guaranteeing that slab bookkeeping
// (marking done, freeing the slot back to its block) happens regardless of
// whether task panics. A panic is captured and returned to the caller
// instead of propagating through invoke, so the caller decides how to
// report it without risking a leaked, never-freed slot.
func (s *taskSlot) invoke() (recovered any, panicked bool) {
	defer func() {
		s.done = true
		s.block.freeOne()
	}()
	defer func() {
		if r := recover(); r != nil {
			recovered, panicked = r, true
		}
	}()
	s.task()
	return nil, false
}

// block is a fixed-capacity array of slots with a monotonically increasing
// allocation index and an atomic free-count. Blocks form a doubly-linked
// list within a mempool. Reclamation is coarse: a block is reusable only
// once every slot in it has been freed.
type block struct {
	size     int
	slots    []taskSlot
	idx      int
	numFreed int64 // atomic
	next     *block
	prev     *block
}

func newBlock(size int) *block {
	b := &block{size: size, slots: make([]taskSlot, size)}
	for i := range b.slots {
		b.slots[i].block = b
	}
	return b
}

func (b *block) getSlot() *taskSlot {
	if b.idx >= b.size {
		return nil
	}
	s := &b.slots[b.idx]
	b.idx++
	return s
}

func (b *block) freeOne() {
	atomic.AddInt64(&b.numFreed, 1)
}

func (b *block) fullyFreed() bool {
	return atomic.LoadInt64(&b.numFreed) == int64(b.size)
}

func (b *block) reset() {
	b.idx = 0
	atomic.StoreInt64(&b.numFreed, 0)
}

// mempool is a slab allocator for task closures. Allocation first tries
// the head block's next free slot; if that block is exhausted, it either
// advances to an already-linked, fully-reclaimed block, or allocates a
// fresh block at the head. Allocation is only ever called by the single
// goroutine holding the owning taskQueue's push mutex, so the index
// bookkeeping here needs no synchronization of its own. Only numFreed,
// written by concurrent poppers, is atomic.
type mempool struct {
	head      *block
	tail      *block
	blockSize int
}

func newMempool(blockSize int) *mempool {
	if blockSize <= 0 {
		blockSize = 1024
	}
	b := newBlock(blockSize)
	return &mempool{head: b, tail: b, blockSize: blockSize}
}

func (p *mempool) allocate(task func()) *taskSlot {
	slot := p.getSlot()
	slot.task = task
	slot.done = false
	return slot
}

func (p *mempool) getSlot() *taskSlot {
	if s := p.head.getSlot(); s != nil {
		return s
	}

	if p.head.next != nil {
		p.head = p.head.next
		if s := p.head.getSlot(); s != nil {
			return s
		}
	}

	oldTail := p.tail
	for p.tail.fullyFreed() && p.tail.next != nil {
		p.tail = p.tail.next
	}
	if p.tail != oldTail {
		// detach the reclaimed range [oldTail, tail) and move it to head,
		// resetting each block in it back to freshly-allocated state
		p.tail.prev.next = nil
		p.tail.prev = nil
		for b := oldTail; b != nil; b = b.next {
			b.reset()
		}
		p.setHead(oldTail)
		return p.head.getSlot()
	}

	p.setHead(newBlock(p.blockSize))
	return p.head.getSlot()
}

func (p *mempool) setHead(b *block) {
	b.prev = p.head
	p.head.next = b
	p.head = b
}

// reset brings every block in the pool back to freshly-allocated state.
func (p *mempool) reset() {
	for b := p.tail; b != nil; b = b.next {
		b.reset()
	}
	p.head = p.tail
}
