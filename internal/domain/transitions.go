// Transition guards for the trip and alert state machines.
//
// The guards are pure functions over status strings so that every write path
// (HTTP handler, sweep, client retry) checks the same rules before touching
// the database. The conditional UPDATE in the repo layer re-checks the source
// status, which keeps concurrent callers race-safe; these helpers exist to
// fail fast with a specific error before any side effect.
package domain

// TripTerminal reports whether a trip status admits no further transitions.
// `alerted` is not terminal: the timeout sweep moves alerted trips no further,
// but an owner cancel ("I'm safe") may still close them.
func TripTerminal(status string) bool {
	switch status {
	case TripCompleted, TripCancelled, TripTimeout:
		return true
	}
	return false
}

// TripCanTransition reports whether a trip may move from one status to
// another. The extend/pause/resume operations do not change status and are
// not represented here.
func TripCanTransition(from, to string) bool {
	switch from {
	case TripDraft:
		return to == TripActive || to == TripCancelled
	case TripActive:
		return to == TripCompleted || to == TripCancelled || to == TripTimeout || to == TripAlerted
	case TripAlerted:
		return to == TripCancelled || to == TripCompleted
	}
	return false
}

// AlertTerminal reports whether an alert status admits no further transitions.
func AlertTerminal(status string) bool {
	return status == AlertResolved || status == AlertFalseAlarm
}

// AlertCanTransition encodes the monotonic alert lifecycle:
// triggered → acknowledged → resolved, or triggered → {resolved, false_alarm}.
func AlertCanTransition(from, to string) bool {
	switch from {
	case AlertTriggered:
		return to == AlertAcknowledged || to == AlertResolved || to == AlertFalseAlarm
	case AlertAcknowledged:
		return to == AlertResolved
	}
	return false
}
