package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_Expiration(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("page:admin-overview", "view")

	if v, ok := c.Get("page:admin-overview"); !ok || v != "view" {
		t.Fatalf("expected cached value, got %q,%v", v, ok)
	}

	clk.t = clk.t.Add(time.Second)
	if _, ok := c.Get("page:admin-overview"); ok {
		t.Fatal("entry should expire at its TTL")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be removed on Get, size=%d", c.Size())
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a was recently used and should remain")
	}
}

func TestLRUCache_DeletePrefixAndPurge(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("page:reports", "r")
	c.Set("page:settings", "s")
	c.Set("settings:admin", "x")

	if n := c.DeletePrefix("page:"); n != 2 {
		t.Fatalf("DeletePrefix removed %d, want 2", n)
	}
	if _, ok := c.Get("settings:admin"); !ok {
		t.Fatal("unrelated key should survive")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("Purge left %d entries", c.Size())
	}
}

func TestManager_Sweep(t *testing.T) {
	c, clk := newTestCache(10, time.Second)
	c.Set("a", "1")
	c.Set("b", "2")
	clk.t = clk.t.Add(2 * time.Second)
	c.Set("c", "3")

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("Sweep evicted %d, want 2", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a manager that was never started")
	}
}
