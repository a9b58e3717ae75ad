package ratelimit

import (
	"testing"
	"time"
)

func TestNewDefaultCapacity(t *testing.T) {
	lim := New(0)
	if lim.Capacity() != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, lim.Capacity())
	}
	lim = New(-5)
	if lim.Capacity() != DefaultCapacity {
		t.Fatalf("expected default capacity for negative input, got %d", lim.Capacity())
	}
}

func TestAllowExhaustsCapacity(t *testing.T) {
	lim := New(3)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if !lim.allowAt(now) {
			t.Fatalf("call %d: expected admission within capacity", i+1)
		}
	}
	if lim.allowAt(now) {
		t.Fatal("expected rejection after capacity exhausted")
	}
	if lim.Remaining() != 0 {
		t.Fatalf("expected 0 tokens remaining, got %d", lim.Remaining())
	}
}

func TestAllowRefillsAfterWindow(t *testing.T) {
	lim := New(2)
	now := time.Now()

	lim.allowAt(now)
	lim.allowAt(now)
	if lim.allowAt(now.Add(Window - time.Second)) {
		t.Fatal("expected rejection inside the same window")
	}

	later := now.Add(Window)
	if !lim.allowAt(later) {
		t.Fatal("expected admission after window rollover")
	}
	if lim.Remaining() != 1 {
		t.Fatalf("expected 1 token after refill and one admission, got %d", lim.Remaining())
	}
}

func TestAllowCountsPerWindowNotPerCall(t *testing.T) {
	lim := New(1)
	now := time.Now()

	if !lim.allowAt(now) {
		t.Fatal("expected first admission")
	}
	// Repeated rejections must not extend the window.
	for i := 0; i < 5; i++ {
		if lim.allowAt(now.Add(time.Duration(i) * time.Second)) {
			t.Fatal("expected rejection while window still open")
		}
	}
	if !lim.allowAt(now.Add(Window + time.Second)) {
		t.Fatal("expected admission in the next window")
	}
}
