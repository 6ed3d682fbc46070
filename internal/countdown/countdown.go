// Package countdown implements the client-side arrival-confirmation window.
//
// All arithmetic runs off absolute deadlines, never accumulated ticks, so a
// countdown survives foreground/background transitions without drift: on
// resume, the caller simply ticks it with the current time and gets the
// events it missed. The halfway nudge and the timeout trigger each fire at
// most once, guarded by fired-once flags.
//
// The timeout event is a convenience signal; the caller forwards it to the
// server's idempotent timeout check rather than fabricating an alert locally,
// so the client and the scheduler can never produce divergent outcomes.
package countdown

import "time"

// Phase describes where the trip stands relative to its deadline.
type Phase string

const (
	// EnRoute means the arrival estimate has not been reached yet.
	EnRoute Phase = "en_route"
	// Confirming means the arrival estimate passed and the confirmation
	// window is running.
	Confirming Phase = "confirming"
	// Expired means the window closed without a confirmation.
	Expired Phase = "expired"
)

// Event is a one-shot signal produced by Tick.
type Event string

const (
	// HalfwayNudge is the single midpoint haptic/notification reminder.
	HalfwayNudge Event = "halfway_nudge"
	// TimeoutTrigger tells the caller to invoke the server timeout check.
	TimeoutTrigger Event = "timeout_trigger"
)

// DefaultBuffer is the confirmation window length.
const DefaultBuffer = 300 * time.Second

// Countdown tracks one trip's confirmation window. Not safe for concurrent
// use; drive it from the single UI loop that owns the trip.
type Countdown struct {
	arrivalAt time.Time
	buffer    time.Duration

	halfwayFired bool
	timeoutFired bool
}

// New builds a countdown for a trip arriving at arrivalAt. buffer <= 0 uses
// DefaultBuffer.
func New(arrivalAt time.Time, buffer time.Duration) *Countdown {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Countdown{arrivalAt: arrivalAt, buffer: buffer}
}

// Deadline is the instant the window closes.
func (c *Countdown) Deadline() time.Time { return c.arrivalAt.Add(c.buffer) }

// halfway is the midpoint of the confirmation window.
func (c *Countdown) halfway() time.Time { return c.arrivalAt.Add(c.buffer / 2) }

// Phase reports the current phase at time now.
func (c *Countdown) Phase(now time.Time) Phase {
	switch {
	case now.Before(c.arrivalAt):
		return EnRoute
	case now.Before(c.Deadline()):
		return Confirming
	default:
		return Expired
	}
}

// Remaining is the time left in the current phase: until arrival while en
// route, until the deadline while confirming, zero after expiry.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	switch c.Phase(now) {
	case EnRoute:
		return c.arrivalAt.Sub(now)
	case Confirming:
		return c.Deadline().Sub(now)
	default:
		return 0
	}
}

// Tick evaluates the countdown at time now and returns the events that
// became due since the last tick, each at most once for the lifetime of the
// countdown. A resume that jumps straight past the deadline yields only the
// timeout trigger; a nudge for a window that already closed is pointless.
func (c *Countdown) Tick(now time.Time) []Event {
	var events []Event

	deadline := c.Deadline()
	if !c.timeoutFired && !now.Before(deadline) {
		c.timeoutFired = true
		c.halfwayFired = true // moot once the window closed
		return append(events, TimeoutTrigger)
	}
	if !c.halfwayFired && !now.Before(c.halfway()) && now.Before(deadline) {
		c.halfwayFired = true
		events = append(events, HalfwayNudge)
	}
	return events
}

// Extend moves the arrival estimate forward by d and re-opens the one-shot
// signals, mirroring a server-side trip extension.
func (c *Countdown) Extend(d time.Duration) {
	c.arrivalAt = c.arrivalAt.Add(d)
	c.halfwayFired = false
	c.timeoutFired = false
}
