package handlers

import (
	"testing"
	"time"
)

func TestActorThrottleWindowRollover(t *testing.T) {
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	throttle := newActorThrottle(2, time.Minute, clock)

	if !throttle.Allow("hh-1") || !throttle.Allow("hh-1") {
		t.Fatalf("expected first two actions inside the window to pass")
	}
	if throttle.Allow("hh-1") {
		t.Fatalf("expected third action to be throttled")
	}
	if !throttle.Allow("hh-2") {
		t.Fatalf("expected a different actor to have its own budget")
	}

	now = now.Add(time.Minute)
	if !throttle.Allow("hh-1") {
		t.Fatalf("expected budget to reset after the window rolls over")
	}
}

func TestActorThrottleDisabled(t *testing.T) {
	if limiter := newActorThrottle(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected zero budget to disable throttling")
	}
	if limiter := newActorThrottle(5, 0, nil); limiter != nil {
		t.Fatalf("expected zero span to disable throttling")
	}
}
