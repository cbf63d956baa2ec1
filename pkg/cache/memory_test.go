package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySetGetString(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(8))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got string
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestMemoryMissAndExpiry(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(8))
	defer mc.Close()
	ctx := context.Background()

	var got string
	if err := mc.Get(ctx, "absent", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get(absent) = %v, want ErrCacheMiss", err)
	}

	if err := mc.Set(ctx, "short", "v", 5*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := mc.Get(ctx, "short", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get(expired) = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := mc.Set(ctx, "b", "2", time.Minute); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	// Touch a so b becomes the LRU entry.
	var got string
	if err := mc.Get(ctx, "a", &got); err != nil {
		t.Fatalf("Get a: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := mc.Set(ctx, "c", "3", time.Minute); err != nil {
		t.Fatalf("Set c: %v", err)
	}

	if err := mc.Get(ctx, "b", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("b should have been evicted, got %v", err)
	}
	if err := mc.Get(ctx, "a", &got); err != nil {
		t.Fatalf("a should survive eviction: %v", err)
	}
	if err := mc.Get(ctx, "c", &got); err != nil {
		t.Fatalf("c should be present: %v", err)
	}
}

func TestMemoryDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(8))
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "bars:x", "1", time.Minute)
	_ = mc.Set(ctx, "bars:y", "2", time.Minute)

	if err := mc.DeleteByPattern(ctx, "bars:*"); err != nil {
		t.Fatalf("DeleteByPattern: %v", err)
	}

	var got string
	if err := mc.Get(ctx, "bars:x", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("bars:x should be gone, got %v", err)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	got := GenerateKeyWithParams("bars", "TSLA", "1m", 500)
	want := "bars:TSLA:1m:500"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHashKeyStable(t *testing.T) {
	a := HashKey("bars:TSLA:1m")
	b := HashKey("bars:TSLA:1m")
	if a != b {
		t.Fatalf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d, want 32 hex chars", len(a))
	}
	if HashKey("bars:TSLA:15m") == a {
		t.Fatalf("different inputs produced the same hash")
	}
}
