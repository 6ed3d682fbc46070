// Package services implements the business rules of the escalation pipeline:
// trip lifecycle, alert lifecycle, notification dispatch, OTP issuance and
// verification, and trusted-contact invitations. This file centralizes the
// service-level error values so they can be consistently returned by service
// methods and mapped to HTTP results at the handler layer.
//
// Backpressure errors (rate limits, cooldowns) carry the computed wait as
// data, because the caller is expected to retry after it.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTripNotFound indicates the requested trip does not exist or is not
	// accessible to the current user.
	ErrTripNotFound = errors.New("trip not found")

	// ErrAlertNotFound indicates the requested alert does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrContactNotFound indicates the requested trusted contact does not
	// exist.
	ErrContactNotFound = errors.New("contact not found")

	// ErrInvitationNotFound indicates the invitation token does not resolve
	// to any contact (unknown, already accepted, or revoked).
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrActiveTripExists is returned when starting a trip while another trip
	// of the same owner is still active or alerted.
	ErrActiveTripExists = errors.New("another trip is already in progress")

	// ErrInvalidTransition is returned when a requested state change violates
	// the trip or alert state machine. It is surfaced verbatim to the caller,
	// never silently ignored.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrIdentityNotConfirmed is returned when trip completion is requested
	// without a successful identity confirmation.
	ErrIdentityNotConfirmed = errors.New("identity confirmation required")

	// ErrForbidden is returned when the caller does not own the targeted
	// resource.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidDuration is returned when a trip duration lies outside the
	// accepted range of 5 to 480 minutes.
	ErrInvalidDuration = errors.New("estimated duration must be between 5 and 480 minutes")

	// ErrMissingEndpoints is returned when a trip is started with neither a
	// departure nor an arrival point.
	ErrMissingEndpoints = errors.New("at least one of departure or arrival is required")

	// ErrInvalidPhone is returned when a phone number is not in E.164 form.
	ErrInvalidPhone = errors.New("phone must be in E.164 format")

	// ErrMissingName is returned when a contact is created without a name.
	ErrMissingName = errors.New("contact name is required")

	// ErrInvalidAlertType is returned when an alert is created with a type
	// outside {manual, automatic}. Timeout alerts are minted only by the
	// sweep path.
	ErrInvalidAlertType = errors.New("alert type must be manual or automatic")

	// ErrCodeExpired is returned when no usable verification code exists for
	// the (owner, phone) pair.
	ErrCodeExpired = errors.New("verification code expired or missing")

	// ErrTooManyAttempts is returned when a verification code has exhausted
	// its attempt budget.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrLimitReached is returned when an invitation has been sent the
	// maximum number of times.
	ErrLimitReached = errors.New("invitation send limit reached")
)

// RateLimitedError reports that an operation was rejected by a rate gate.
// RetryAfter is the wait after which a retry may succeed.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TooSoonError reports that an invitation resend was requested before its
// cooldown elapsed. Wait is the remaining cooldown.
type TooSoonError struct {
	Wait time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("too soon, wait %s", e.Wait)
}

// RetryHint extracts the wait carried by a backpressure error. ok is false
// for every other error.
func RetryHint(err error) (wait time.Duration, ok bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	var ts *TooSoonError
	if errors.As(err, &ts) {
		return ts.Wait, true
	}
	return 0, false
}
