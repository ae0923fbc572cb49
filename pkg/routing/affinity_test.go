package routing

import (
	"fmt"
	"testing"
	"time"
)

func TestAffinityCache_GetSet(t *testing.T) {
	c := NewAffinityCache(time.Minute, 0, 0)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) = ok, want miss")
	}

	c.Set("s1", "a")
	got, ok := c.Get("s1")
	if !ok || got != "a" {
		t.Errorf("Get(s1) = %q, %v, want a, true", got, ok)
	}

	// Re-pinning an existing session moves it.
	c.Set("s1", "b")
	got, _ = c.Get("s1")
	if got != "b" {
		t.Errorf("Get(s1) after re-pin = %q, want b", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestAffinityCache_Expiry(t *testing.T) {
	c := NewAffinityCache(20*time.Millisecond, 0, 0)
	defer c.Close()

	c.Set("s1", "a")
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("s1"); ok {
		t.Error("Get(s1) after TTL = ok, want expired")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d after expired access, want 0", c.Size())
	}
}

func TestAffinityCache_PerEndpointCap(t *testing.T) {
	c := NewAffinityCache(time.Minute, 0, 2)
	defer c.Close()

	c.Set("s1", "a")
	c.Set("s2", "a")
	c.Set("s3", "a")

	if _, ok := c.Get("s3"); ok {
		t.Error("third pin to a capped endpoint must be refused")
	}

	// Pins to other endpoints are unaffected.
	c.Set("s3", "b")
	if got, _ := c.Get("s3"); got != "b" {
		t.Errorf("Get(s3) = %q, want b", got)
	}
}

func TestAffinityCache_LRUEviction(t *testing.T) {
	c := NewAffinityCache(time.Minute, 3, 0)
	defer c.Close()

	c.Set("s1", "a")
	time.Sleep(time.Millisecond)
	c.Set("s2", "a")
	time.Sleep(time.Millisecond)
	c.Set("s3", "a")
	time.Sleep(time.Millisecond)

	// Touch s1 so s2 becomes the least recently used.
	c.Get("s1")
	time.Sleep(time.Millisecond)

	c.Set("s4", "b")

	if _, ok := c.Get("s2"); ok {
		t.Error("s2 should have been evicted as least recently used")
	}
	for _, key := range []string{"s1", "s3", "s4"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("Get(%s) = miss, want hit", key)
		}
	}
}

func TestAffinityCache_DropEndpoint(t *testing.T) {
	c := NewAffinityCache(time.Minute, 0, 0)
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("a%d", i), "a")
		c.Set(fmt.Sprintf("b%d", i), "b")
	}

	c.DropEndpoint("a")

	if c.Size() != 5 {
		t.Errorf("Size() = %d after DropEndpoint, want 5", c.Size())
	}
	if _, ok := c.Get("a0"); ok {
		t.Error("pins to a dropped endpoint must be removed")
	}
	if _, ok := c.Get("b0"); !ok {
		t.Error("pins to other endpoints must survive DropEndpoint")
	}
}
