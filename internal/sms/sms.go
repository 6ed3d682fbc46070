// Package sms abstracts outbound SMS delivery behind a small Gateway
// interface so services depend on a capability, not on a provider SDK.
//
// Error classification matters more than the transport here: callers retry
// only transient failures, so every Gateway implementation must wrap
// provider errors into the two classes below.
package sms

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidRecipient marks a terminal delivery failure: the destination
// number is malformed, unroutable, or rejected by the provider. Retrying the
// same number cannot succeed.
var ErrInvalidRecipient = errors.New("sms: invalid recipient")

// TransientError wraps a failure that a later attempt may resolve, such as a
// provider 5xx, a timeout, or a dropped connection.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("sms: transient delivery failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Gateway delivers a single SMS. Implementations must honor ctx cancellation
// and classify failures as ErrInvalidRecipient or *TransientError.
type Gateway interface {
	// Send delivers body to the E.164 number toE164 and returns the
	// provider's delivery identifier.
	Send(ctx context.Context, toE164, body string) (deliveryID string, err error)
}
