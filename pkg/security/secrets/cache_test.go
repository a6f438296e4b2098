package secrets

import (
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10})

	if _, ok := cache.Get("missing"); ok {
		t.Error("expected miss for absent key")
	}

	cache.Set("key", "value")

	value, ok := cache.Get("key")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if value != "value" {
		t.Errorf("expected 'value', got '%s'", value)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: false, TTL: time.Minute, MaxSize: 10})

	cache.Set("key", "value")

	if _, ok := cache.Get("key"); ok {
		t.Error("disabled cache should never hit")
	}
	if cache.Size() != 0 {
		t.Errorf("disabled cache should stay empty, got size %d", cache.Size())
	}
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: true, TTL: 10 * time.Millisecond, MaxSize: 10})

	cache.Set("key", "value")
	time.Sleep(20 * time.Millisecond)

	if _, ok := cache.Get("key"); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 2})

	cache.Set("a", "1")
	time.Sleep(time.Millisecond)
	cache.Set("b", "2")
	time.Sleep(time.Millisecond)
	cache.Set("c", "3")

	if cache.Size() != 2 {
		t.Errorf("expected size 2 after eviction, got %d", cache.Size())
	}
	// Oldest entry evicted.
	if _, ok := cache.Get("a"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected newest entry to survive")
	}
}

func TestCache_ClearDelete(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10})

	cache.Set("a", "1")
	cache.Set("b", "2")

	cache.Delete("a")
	if _, ok := cache.Get("a"); ok {
		t.Error("expected miss after Delete")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("expected empty cache after Clear, got size %d", cache.Size())
	}
}
