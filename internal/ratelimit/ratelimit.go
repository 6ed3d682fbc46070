// Package ratelimit provides the keyed gates that protect every externally
// visible side effect: alert notification dispatch, raw location ingestion,
// and alert creation bursts.
//
// Two different disciplines live here on purpose:
//
//   - Limiter is a single-slot "last allowed" gate: at most one allowed call
//     per key per window. Every dispatch-style caller wants exactly this
//     semantics, not a burst quota.
//   - CountLimiter is a sliding count window: up to N allowed calls per key
//     per window. Alert creation explicitly tolerates bursts (up to 10/min),
//     so a single-slot gate would be wrong there.
//
// Both are injected as capabilities so a distributed backend (see redis.go)
// can replace the in-memory maps without touching callers. The in-memory
// implementations are best-effort storm suppressors; the durable idempotency
// guard remains the status-checked conditional write in the repo layer.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a gate check. RetryAfter is only meaningful when
// Allowed is false; it is rounded up so a caller sleeping that long is
// guaranteed to pass the next check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the single-slot gate: Allow succeeds iff no prior Allow for the
// same key succeeded within the window, and records now as the new slot.
type Limiter interface {
	Allow(key string, window time.Duration) Decision
}

// CountLimiter bounds the number of allowed calls per key inside a sliding
// window. AllowN succeeds while fewer than max calls were admitted in the
// trailing window.
type CountLimiter interface {
	AllowN(key string, window time.Duration, max int) Decision
}

// MemoryLimiter implements both Limiter and CountLimiter over mutex-guarded
// maps. Entries older than twice their window are garbage-collected
// opportunistically, at most once per cleanup interval, to bound memory
// without paying an O(n) sweep on every call.
//
// Safe for concurrent use.
type MemoryLimiter struct {
	mu sync.Mutex

	slots  map[string]slotEntry
	counts map[string]*countEntry

	cleanupEvery time.Duration
	lastCleanup  time.Time

	now func() time.Time // test seam
}

type slotEntry struct {
	lastAllowed time.Time
	window      time.Duration
}

type countEntry struct {
	admitted []time.Time
	window   time.Duration
}

// NewMemoryLimiter constructs a MemoryLimiter. cleanupEvery <= 0 defaults to
// one minute.
func NewMemoryLimiter(cleanupEvery time.Duration) *MemoryLimiter {
	if cleanupEvery <= 0 {
		cleanupEvery = time.Minute
	}
	return &MemoryLimiter{
		slots:        make(map[string]slotEntry),
		counts:       make(map[string]*countEntry),
		cleanupEvery: cleanupEvery,
		now:          time.Now,
	}
}

// Allow implements the single-slot gate.
func (m *MemoryLimiter) Allow(key string, window time.Duration) Decision {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeCleanup(now)

	if e, ok := m.slots[key]; ok {
		elapsed := now.Sub(e.lastAllowed)
		if elapsed < window {
			return Decision{Allowed: false, RetryAfter: ceilDuration(window - elapsed)}
		}
	}
	m.slots[key] = slotEntry{lastAllowed: now, window: window}
	return Decision{Allowed: true}
}

// AllowN implements the sliding count window.
func (m *MemoryLimiter) AllowN(key string, window time.Duration, max int) Decision {
	if max <= 0 {
		max = 1
	}
	now := m.now()
	cutoff := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.maybeCleanup(now)

	e, ok := m.counts[key]
	if !ok {
		e = &countEntry{window: window}
		m.counts[key] = e
	}
	e.window = window

	// Drop admissions that slid out of the window.
	kept := e.admitted[:0]
	for _, at := range e.admitted {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.admitted = kept

	if len(e.admitted) >= max {
		// The caller can retry once the oldest admission slides out.
		oldest := e.admitted[0]
		return Decision{Allowed: false, RetryAfter: ceilDuration(oldest.Add(window).Sub(now))}
	}

	e.admitted = append(e.admitted, now)
	return Decision{Allowed: true}
}

// maybeCleanup evicts entries idle for more than twice their window. Bounded
// to run at most once per cleanupEvery. Caller holds m.mu.
func (m *MemoryLimiter) maybeCleanup(now time.Time) {
	if now.Sub(m.lastCleanup) < m.cleanupEvery {
		return
	}
	m.lastCleanup = now

	for k, e := range m.slots {
		if now.Sub(e.lastAllowed) >= 2*e.window {
			delete(m.slots, k)
		}
	}
	for k, e := range m.counts {
		if len(e.admitted) == 0 || now.Sub(e.admitted[len(e.admitted)-1]) >= 2*e.window {
			delete(m.counts, k)
		}
	}
}

// ceilDuration rounds a duration up to a whole second so that Retry-After
// headers never advertise a wait shorter than the real one.
func ceilDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	if r := d % time.Second; r != 0 {
		d += time.Second - r
	}
	return d
}

// RetryAfterSeconds converts a Decision into the integral seconds value used
// in Retry-After headers and JSON payloads.
func (d Decision) RetryAfterSeconds() int {
	return int(d.RetryAfter / time.Second)
}
