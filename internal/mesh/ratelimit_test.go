package mesh

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	r := NewRateLimiter(30, time.Minute)
	for i := 0; i < 30; i++ {
		if err := r.Allow("alice"); err != nil {
			t.Fatalf("publish %d unexpectedly limited: %v", i+1, err)
		}
	}
	if err := r.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("publish 31 should be limited, got %v", err)
	}
}

func TestRateLimiterPerSender(t *testing.T) {
	r := NewRateLimiter(1, time.Minute)
	if err := r.Allow("alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Allow("bob"); err != nil {
		t.Fatalf("bob must have his own window: %v", err)
	}
	if err := r.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected alice limited, got %v", err)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRateLimiter(2, time.Minute)
	r.now = func() time.Time { return now }

	if err := r.Allow("alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Allow("alice"); err != nil {
		t.Fatal(err)
	}
	if err := r.Allow("alice"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited inside window, got %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := r.Allow("alice"); err != nil {
		t.Fatalf("expected fresh window after expiry: %v", err)
	}
}

func TestRateLimiterRejectedAttemptsStillCount(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRateLimiter(1, time.Minute)
	r.now = func() time.Time { return now }

	if err := r.Allow("alice"); err != nil {
		t.Fatal(err)
	}
	// Hammering while limited does not extend or reset the window.
	for i := 0; i < 5; i++ {
		if err := r.Allow("alice"); !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected limited, got %v", err)
		}
	}
	now = now.Add(61 * time.Second)
	if err := r.Allow("alice"); err != nil {
		t.Fatalf("expected fresh window: %v", err)
	}
}
