package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// stepClock is a mutable test clock.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time { return c.t }

func TestMemoryReplayStore_PutGet(t *testing.T) {
	store := NewMemoryReplayStore(nil)
	ctx := context.Background()

	store.Put(ctx, "proof-1", "decision-1", time.Now().UTC().Add(30*time.Second))

	v, ok := store.Get(ctx, "proof-1")
	if !ok {
		t.Fatal("Get should return the stored value")
	}
	if v != "decision-1" {
		t.Errorf("v = %v, want decision-1", v)
	}
}

func TestMemoryReplayStore_Missing(t *testing.T) {
	store := NewMemoryReplayStore(nil)

	if _, ok := store.Get(context.Background(), "nope"); ok {
		t.Error("Get should return false for an unknown proof")
	}
}

func TestMemoryReplayStore_Expired(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	clk := &stepClock{t: base}
	store := NewMemoryReplayStore(clk)
	ctx := context.Background()

	store.Put(ctx, "proof-1", "decision-1", base.Add(30*time.Second))

	clk.t = base.Add(29 * time.Second)
	if _, ok := store.Get(ctx, "proof-1"); !ok {
		t.Error("entry should still be live just inside the window")
	}

	clk.t = base.Add(31 * time.Second)
	if _, ok := store.Get(ctx, "proof-1"); ok {
		t.Error("entry should expire with the token window")
	}
}

func TestMemoryReplayStore_SweepDropsUnreadExpiredEntries(t *testing.T) {
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	clk := &stepClock{t: base}
	store := NewMemoryReplayStore(clk)
	ctx := context.Background()

	// One-shot scans are never re-presented, so only the sweep can reclaim them.
	for i := 0; i < sweepEvery-1; i++ {
		store.Put(ctx, fmt.Sprintf("proof-%d", i), i, base.Add(30*time.Second))
	}

	clk.t = base.Add(time.Minute)
	store.Put(ctx, "proof-live", "decision", clk.t.Add(30*time.Second))

	store.mu.RLock()
	size := len(store.m)
	store.mu.RUnlock()
	if size != 1 {
		t.Fatalf("store holds %d entries after sweep, want only the live one", size)
	}
	if _, ok := store.Get(ctx, "proof-live"); !ok {
		t.Error("live entry dropped by the sweep")
	}
}

func TestMemoryReplayStore_Concurrent(t *testing.T) {
	store := NewMemoryReplayStore(nil)
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			store.Put(ctx, key, n, expires)
			store.Get(ctx, key)
		}(i)
	}
	wg.Wait()
}
