// Package gesture implements the long-press trigger as a pure tagged-state
// machine. It owns no timers and no goroutines: the caller feeds it events
// (press-down, press-up, timer-fired) with the current time, and it returns
// the next state plus the effects to perform. That keeps the duress-critical
// interaction trivially unit-testable without simulating real timers.
//
// The holds are asymmetric on purpose: arming takes a 2s hold so triggering
// is easy under duress, while disarming takes a longer 3s hold so an attacker
// grabbing the phone cannot silence the alert quickly.
package gesture

import "time"

// State is the machine's tag.
type State string

const (
	// Idle means no interaction is in progress.
	Idle State = "idle"
	// Armed means a press-and-hold is in progress and the hint is visible.
	Armed State = "armed"
	// Active means the alert fired and is live.
	Active State = "active"
)

// Event is an input to the machine.
type Event string

const (
	// PressDown is finger-down on the trigger control.
	PressDown Event = "press_down"
	// PressUp is finger-up.
	PressUp Event = "press_up"
	// TimerFired is the hold timer completing. Stale firings (from a timer
	// the machine already asked to stop) are ignored via the deadline check.
	TimerFired Event = "timer_fired"
)

// Effect is an output the caller must perform.
type Effect string

const (
	// StartArmTimer schedules TimerFired after ArmHold.
	StartArmTimer Effect = "start_arm_timer"
	// StartCancelTimer schedules TimerFired after CancelHold.
	StartCancelTimer Effect = "start_cancel_timer"
	// StopTimer cancels the pending timer.
	StopTimer Effect = "stop_timer"
	// TriggerAlert fires the manual alert (CreateAlert type=manual).
	TriggerAlert Effect = "trigger_alert"
	// CancelAlert resolves the live alert via the cancel path.
	CancelAlert Effect = "cancel_alert"
)

// Hold durations.
const (
	// ArmHold is the press duration required to fire the alert.
	ArmHold = 2000 * time.Millisecond
	// CancelHold is the longer press duration required to cancel it.
	CancelHold = 3000 * time.Millisecond
)

// Machine is the state value. The zero value is not valid; use New.
//
// Deadline is the instant the pending hold completes; it is zero when no
// timer is pending. A TimerFired event earlier than Deadline is stale and
// ignored, which makes rapid press/release sequences safe even if the
// caller's timer cancellation races the firing.
type Machine struct {
	State    State
	Deadline time.Time
}

// New returns an idle machine.
func New() Machine {
	return Machine{State: Idle}
}

// Transition applies one event at time now and returns the next machine plus
// the effects to perform, in order. Unrecognized combinations are no-ops.
func Transition(m Machine, ev Event, now time.Time) (Machine, []Effect) {
	switch m.State {
	case Idle:
		if ev == PressDown {
			return Machine{State: Armed, Deadline: now.Add(ArmHold)}, []Effect{StartArmTimer}
		}

	case Armed:
		switch ev {
		case PressUp:
			// Released before the hold completed: abort.
			return Machine{State: Idle}, []Effect{StopTimer}
		case TimerFired:
			if m.Deadline.IsZero() || now.Before(m.Deadline) {
				return m, nil // stale or early firing
			}
			return Machine{State: Active}, []Effect{TriggerAlert}
		}

	case Active:
		switch ev {
		case PressDown:
			return Machine{State: Active, Deadline: now.Add(CancelHold)}, []Effect{StartCancelTimer}
		case PressUp:
			if m.Deadline.IsZero() {
				return m, nil
			}
			// Released before the cancel hold completed: the alert stays
			// active.
			return Machine{State: Active}, []Effect{StopTimer}
		case TimerFired:
			if m.Deadline.IsZero() || now.Before(m.Deadline) {
				return m, nil
			}
			return Machine{State: Idle}, []Effect{CancelAlert}
		}
	}
	return m, nil
}
