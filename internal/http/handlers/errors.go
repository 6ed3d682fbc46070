// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes the symbolic error code constants that are mapped to
// HTTP responses (via the `fail()` helper in this package) and the single
// translation point from service errors to HTTP results. These codes give
// clients a stable, machine-readable error taxonomy that supplements the
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., invalid_transition, identity_required) are
//     reserved for business errors that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_transition",
//	  "message": "invalid state transition"
//	}
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/monjodav/prudency-backend/internal/services"
	"github.com/monjodav/prudency-backend/internal/sms"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidTransition = "invalid_transition"
	ErrCodeIdentityRequired  = "identity_required"
	ErrCodeTripInProgress    = "trip_in_progress"
	ErrCodeCodeExpired       = "code_expired"
	ErrCodeTooManyAttempts   = "too_many_attempts"
	ErrCodeSendFailed        = "send_failed"
	ErrCodeMethodNotAllowed  = "method_not_allowed"
)

// failFromService translates a service-layer error into the HTTP response it
// maps to. The mapping is intentionally exhaustive over the service sentinel
// set so every endpoint answers consistently:
//
//	400  validation failures (duration, endpoints, phone, name, alert type)
//	403  ownership violations and failed identity confirmation
//	404  trip / alert / contact / invitation not found, unusable OTP code
//	409  state-machine violations and the one-active-trip rule
//	429  rate gates and cooldowns (Retry-After carries the wait)
//	502  an SMS provider failure surfaced to the caller (OTP issuance)
//	500  everything else
func failFromService(c *gin.Context, err error) {
	if wait, ok := services.RetryHint(err); ok {
		c.Header("Retry-After", strconv.Itoa(int(wait.Seconds()+0.999)))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidDuration),
		errors.Is(err, services.ErrMissingEndpoints),
		errors.Is(err, services.ErrInvalidPhone),
		errors.Is(err, services.ErrMissingName),
		errors.Is(err, services.ErrInvalidAlertType):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())

	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
	case errors.Is(err, services.ErrIdentityNotConfirmed):
		fail(c, http.StatusForbidden, ErrCodeIdentityRequired, err.Error())

	case errors.Is(err, services.ErrTripNotFound),
		errors.Is(err, services.ErrAlertNotFound),
		errors.Is(err, services.ErrContactNotFound),
		errors.Is(err, services.ErrInvitationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case errors.Is(err, services.ErrActiveTripExists):
		fail(c, http.StatusConflict, ErrCodeTripInProgress, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())

	case errors.Is(err, services.ErrCodeExpired):
		fail(c, http.StatusNotFound, ErrCodeCodeExpired, err.Error())
	case errors.Is(err, services.ErrTooManyAttempts):
		fail(c, http.StatusTooManyRequests, ErrCodeTooManyAttempts, err.Error())
	case errors.Is(err, services.ErrLimitReached):
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())

	case errors.Is(err, sms.ErrInvalidRecipient), sms.IsTransient(err):
		fail(c, http.StatusBadGateway, ErrCodeSendFailed, "sms delivery failed")

	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}
