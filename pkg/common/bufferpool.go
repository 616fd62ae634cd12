package common

import (
	"time"
)

// FrameBufferSize is the size of every pooled frame buffer. It covers a full
// Ethernet frame at the standard MTU.
const FrameBufferSize = 1518

// DefaultPoolBuffers is the number of frame buffers a pool holds when no
// explicit capacity is given.
const DefaultPoolBuffers = 32

// BufferPool hands out fixed-size frame buffers from a bounded free list.
// Unlike an unbounded allocator, acquisition can fail: callers must be
// prepared to receive nil and skip whatever they were about to do. Outgoing
// housekeeping traffic (IGMP reports) always asks for a non-blocking acquire
// so it can never stall the stack's serialized loop.
type BufferPool struct {
	free chan []byte
	size int
}

// NewBufferPool creates a pool of count buffers of the given size each.
func NewBufferPool(size, count int) *BufferPool {
	if size <= 0 {
		size = FrameBufferSize
	}
	if count <= 0 {
		count = DefaultPoolBuffers
	}
	p := &BufferPool{
		free: make(chan []byte, count),
		size: size,
	}
	for i := 0; i < count; i++ {
		p.free <- make([]byte, size)
	}
	return p
}

// NewDefaultBufferPool creates a pool of DefaultPoolBuffers frame-sized buffers.
func NewDefaultBufferPool() *BufferPool {
	return NewBufferPool(FrameBufferSize, DefaultPoolBuffers)
}

// Acquire takes a buffer of at least size bytes from the pool, waiting up to
// wait for one to become free. With wait == 0 the call never blocks. Returns
// nil if no buffer could be obtained in time or size exceeds the pool's
// buffer size; the caller is expected to treat that as "skip this operation".
func (p *BufferPool) Acquire(size int, wait time.Duration) []byte {
	if size > p.size {
		return nil
	}
	if wait <= 0 {
		select {
		case buf := <-p.free:
			return buf[:size]
		default:
			return nil
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case buf := <-p.free:
		return buf[:size]
	case <-timer.C:
		return nil
	}
}

// Release returns a buffer to the pool. Buffers that did not come from the
// pool, or a second Release of the same buffer once the pool is full, are
// dropped on the floor and left to the garbage collector.
func (p *BufferPool) Release(buf []byte) {
	if cap(buf) < p.size {
		return
	}
	buf = buf[:p.size]
	for i := range buf {
		buf[i] = 0
	}
	select {
	case p.free <- buf:
	default:
	}
}

// Available reports how many buffers are currently free.
func (p *BufferPool) Available() int {
	return len(p.free)
}
