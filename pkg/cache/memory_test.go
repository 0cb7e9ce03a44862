package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	type entry struct {
		Symbol string `json:"symbol"`
		Score  int    `json:"score"`
	}
	if err := mc.Set(ctx, "prefilter:WAVY", entry{Symbol: "WAVY", Score: 88}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got entry
	if err := mc.Get(ctx, "prefilter:WAVY", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Symbol != "WAVY" || got.Score != 88 {
		t.Fatalf("got %+v", got)
	}
	if err := mc.Get(ctx, "prefilter:NOPE", &got); err != ErrCacheMiss {
		t.Fatalf("missing key: err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	var s string
	if err := mc.Get(ctx, "k", &s); err != ErrCacheMiss {
		t.Fatalf("expired key: err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"candles:AAA:1d:250", "candles:BBB:1d:250", "lock:scan-scheduler"} {
		if err := mc.Set(ctx, k, "x", time.Minute); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := mc.DeleteByPattern(ctx, BuildPattern("candles")); err != nil {
		t.Fatalf("purge: %v", err)
	}
	var s string
	if err := mc.Get(ctx, "candles:AAA:1d:250", &s); err != ErrCacheMiss {
		t.Fatalf("purged key survived: %v", err)
	}
	if err := mc.Get(ctx, "lock:scan-scheduler", &s); err != nil {
		t.Fatalf("unrelated key was dropped: %v", err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:scan", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, err = mc.TryLock(ctx, "lock:scan", time.Minute)
	if err != nil || ok {
		t.Fatalf("held lock was granted again: ok=%v err=%v", ok, err)
	}
	if err := mc.Unlock(ctx, "lock:scan"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = mc.TryLock(ctx, "lock:scan", time.Minute)
	if err != nil || !ok {
		t.Fatalf("relock: ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("set a: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := mc.Set(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("set b: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	// Touch a so b becomes the eviction candidate.
	var s string
	if err := mc.Get(ctx, "a", &s); err != nil {
		t.Fatalf("get a: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if err := mc.Set(ctx, "c", "3", time.Minute); err != nil {
		t.Fatalf("set c: %v", err)
	}
	if err := mc.Get(ctx, "b", &s); err != ErrCacheMiss {
		t.Fatalf("b should have been evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &s); err != nil {
		t.Fatalf("recently used key evicted: %v", err)
	}
}
