package util

import (
	"sync"
	"testing"
	"time"
)

func TestLRUCacheBasic(t *testing.T) {
	cache, err := NewLRUCache[string, int](2, 0)
	if err != nil {
		t.Fatalf("NewLRUCache() error = %v", err)
	}

	cache.Put("a", 1)
	cache.Put("b", 2)

	if v, ok := cache.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = (%d, %v), want (1, true)", v, ok)
	}

	// "a" was just used; inserting "c" must evict "b".
	cache.Put("c", 3)
	if _, ok := cache.Get("b"); ok {
		t.Error("Get(b) hit after eviction")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("Get(a) missed, recently used entry evicted")
	}
}

func TestLRUCacheRejectsZeroCapacity(t *testing.T) {
	if _, err := NewLRUCache[string, int](0, 0); err == nil {
		t.Fatal("NewLRUCache(0) error = nil, want rejection")
	}
}

func TestLRUCacheTTL(t *testing.T) {
	cache, _ := NewLRUCache[string, int](10, 20*time.Millisecond)
	cache.Put("a", 1)

	if _, ok := cache.Get("a"); !ok {
		t.Fatal("Get(a) missed before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := cache.Get("a"); ok {
		t.Error("Get(a) hit after expiry")
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("k")
			counter++
			km.Unlock("k")
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	km.Lock("a")
	defer km.Unlock("a")

	done := make(chan struct{})
	go func() {
		km.Lock("b")
		km.Unlock("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestBloomFilter(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	bf.Add("user-1\x00prefers tea")
	if !bf.Contains("user-1\x00prefers tea") {
		t.Error("Contains() = false for added item")
	}
	if bf.Contains("user-2\x00prefers tea") {
		t.Error("Contains() = true for absent item")
	}
}
