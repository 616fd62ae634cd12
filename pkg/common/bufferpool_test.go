package common

import (
	"testing"
	"time"
)

func TestBufferPoolAcquireRelease(t *testing.T) {
	pool := NewBufferPool(128, 2)

	buf := pool.Acquire(42, 0)
	if buf == nil {
		t.Fatal("Acquire() = nil, want buffer")
	}
	if len(buf) != 42 {
		t.Errorf("Acquire() len = %d, want 42", len(buf))
	}
	if pool.Available() != 1 {
		t.Errorf("Available() = %d, want 1", pool.Available())
	}

	pool.Release(buf)
	if pool.Available() != 2 {
		t.Errorf("Available() after Release = %d, want 2", pool.Available())
	}
}

func TestBufferPoolExhaustion(t *testing.T) {
	pool := NewBufferPool(64, 1)

	first := pool.Acquire(64, 0)
	if first == nil {
		t.Fatal("first Acquire() = nil, want buffer")
	}

	// Non-blocking acquire on an empty pool must fail immediately.
	if buf := pool.Acquire(64, 0); buf != nil {
		t.Error("Acquire() on exhausted pool = buffer, want nil")
	}

	// A bounded wait must also fail once the timeout passes.
	start := time.Now()
	if buf := pool.Acquire(64, 10*time.Millisecond); buf != nil {
		t.Error("Acquire() with timeout on exhausted pool = buffer, want nil")
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("Acquire() returned after %v, want at least 10ms", elapsed)
	}

	pool.Release(first)
	if buf := pool.Acquire(64, 0); buf == nil {
		t.Error("Acquire() after Release = nil, want buffer")
	}
}

func TestBufferPoolOversizedRequest(t *testing.T) {
	pool := NewBufferPool(64, 1)
	if buf := pool.Acquire(65, 0); buf != nil {
		t.Error("Acquire(65) from 64-byte pool = buffer, want nil")
	}
}

func TestBufferPoolForeignRelease(t *testing.T) {
	pool := NewBufferPool(64, 1)

	// Undersized foreign buffers are dropped, not pooled.
	pool.Release(make([]byte, 8))
	if pool.Available() != 1 {
		t.Errorf("Available() after foreign Release = %d, want 1", pool.Available())
	}
}

func TestBufferPoolClearsOnRelease(t *testing.T) {
	pool := NewBufferPool(16, 1)

	buf := pool.Acquire(16, 0)
	for i := range buf {
		buf[i] = 0xAB
	}
	pool.Release(buf)

	buf = pool.Acquire(16, 0)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("recycled buffer byte %d = 0x%02x, want 0x00", i, b)
		}
	}
}
