package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemoryClient_SetGetRemove(t *testing.T) {
	c := NewMemoryClient(10, 0)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	if err := c.Set(ctx, "k", []byte("v1"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}

	if err := c.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("key should be removed")
	}
	if err := c.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove of missing key should succeed: %v", err)
	}
}

func TestMemoryClient_ExpiresPerEntry(t *testing.T) {
	c := NewMemoryClient(10, 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("a"), time.Minute)
	_ = c.Set(ctx, "long", []byte("b"), time.Hour)
	_ = c.Set(ctx, "forever", []byte("c"), 0)

	now = now.Add(2 * time.Minute)

	if _, ok, _ := c.Get(ctx, "short"); ok {
		t.Error("short entry should be expired")
	}
	if _, ok, _ := c.Get(ctx, "long"); !ok {
		t.Error("long entry should still be present")
	}
	if _, ok, _ := c.Get(ctx, "forever"); !ok {
		t.Error("entry without ttl should be present")
	}
}

func TestMemoryClient_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryClient(2, 0)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("b should be evicted")
	}
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Error("a should remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestMemoryClient_CopiesValues(t *testing.T) {
	c := NewMemoryClient(10, 0)
	ctx := context.Background()

	value := []byte("abc")
	_ = c.Set(ctx, "k", value, 0)
	value[0] = 'X'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value mutated: %q", got)
	}
}

func TestParseBackend(t *testing.T) {
	for _, s := range []string{"memory", "database"} {
		if _, err := ParseBackend(s); err != nil {
			t.Errorf("ParseBackend(%q) error = %v", s, err)
		}
	}
	if _, err := ParseBackend("redis"); err == nil {
		t.Error("ParseBackend(redis) should fail")
	}
}
