package handlers

import (
	"strings"
	"sync"
	"time"
)

// rateLimiter gates abuse-prone actions (lock purchases, request creation)
// per acting account.
type rateLimiter interface {
	Allow(key string) bool
}

// actorThrottle counts actions in fixed windows keyed by actor ID. The window
// opens on the actor's first action and all further actions share its budget
// until it rolls over.
type actorThrottle struct {
	budget int
	span   time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]throttleWindow
}

type throttleWindow struct {
	openedAt time.Time
	used     int
}

// newActorThrottle returns nil when the budget or span is non-positive, which
// callers treat as throttling disabled.
func newActorThrottle(budget int, span time.Duration, clock func() time.Time) rateLimiter {
	if budget <= 0 || span <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &actorThrottle{
		budget:  budget,
		span:    span,
		clock:   clock,
		windows: make(map[string]throttleWindow),
	}
}

func (t *actorThrottle) Allow(key string) bool {
	if t == nil {
		return true
	}
	if key = strings.TrimSpace(key); key == "" {
		key = "anonymous"
	}

	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()

	window, open := t.windows[key]
	if open && now.Sub(window.openedAt) < t.span {
		if window.used >= t.budget {
			return false
		}
		window.used++
		t.windows[key] = window
		return true
	}

	t.dropStaleWindows(now)
	t.windows[key] = throttleWindow{openedAt: now, used: 1}
	return true
}

// dropStaleWindows runs under the mutex, piggybacking cleanup on window
// rollovers so the map tracks only active actors.
func (t *actorThrottle) dropStaleWindows(now time.Time) {
	for key, window := range t.windows {
		if now.Sub(window.openedAt) >= t.span {
			delete(t.windows, key)
		}
	}
}
