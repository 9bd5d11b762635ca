package taskqueue

import (
	"context"
	"testing"
	"time"
)

func TestSlotPoolBound(t *testing.T) {
	pool := NewSlotPool(2)

	if pool.Cap() != 2 {
		t.Fatalf("cap = %d, want 2", pool.Cap())
	}
	if !pool.TryAcquire() || !pool.TryAcquire() {
		t.Fatal("could not fill pool")
	}
	if pool.TryAcquire() {
		t.Fatal("acquired beyond capacity")
	}
	if pool.InUse() != 2 {
		t.Errorf("in use = %d, want 2", pool.InUse())
	}

	pool.Release()
	if !pool.TryAcquire() {
		t.Error("slot not reusable after release")
	}
}

func TestSlotPoolMinimumSize(t *testing.T) {
	for _, size := range []int{0, -3} {
		pool := NewSlotPool(size)
		if pool.Cap() != 1 {
			t.Errorf("NewSlotPool(%d).Cap() = %d, want 1", size, pool.Cap())
		}
	}
}

func TestSlotPoolAcquireBlocksUntilRelease(t *testing.T) {
	pool := NewSlotPool(1)
	if !pool.TryAcquire() {
		t.Fatal("could not take the only slot")
	}

	acquired := make(chan error, 1)
	go func() {
		acquired <- pool.Acquire(context.Background())
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded while pool was full")
	case <-time.After(20 * time.Millisecond):
	}

	pool.Release()
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("acquire after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not wake after release")
	}
}

func TestSlotPoolAcquireCancelled(t *testing.T) {
	pool := NewSlotPool(1)
	if !pool.TryAcquire() {
		t.Fatal("could not take the only slot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- pool.Acquire(ctx)
	}()

	cancel()
	select {
	case err := <-acquired:
		if err == nil {
			t.Fatal("acquire succeeded after context cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("acquire did not abort after context cancel")
	}
}
