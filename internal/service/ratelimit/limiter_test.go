package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst of 2 should be allowed")
	}
	if l.Allow("a") {
		t.Fatalf("third call should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("expected refill after 1.5s")
	}
	if l.Allow("a") {
		t.Fatalf("only one token should have refilled")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Unix(1000, 0)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Minute)
	l.Allow("fresh")

	if n := l.Prune(30 * time.Second); n != 1 {
		t.Fatalf("expected 1 pruned bucket, got %d", n)
	}
	if _, ok := l.m["fresh"]; !ok {
		t.Fatalf("fresh bucket must survive")
	}
}
