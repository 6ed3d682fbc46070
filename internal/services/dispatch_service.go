// Package services – DispatchService
//
// This file implements the Notification Dispatcher: given an alert, resolve
// the SMS-enabled trusted contacts, render a per-type message, and fan the
// deliveries out concurrently with bounded retry and backoff.
//
// Partial failure is a normal, reportable outcome. The result aggregates the
// success count and a per-recipient failure list as data; a hard error is
// returned only when the alert or contact list cannot be read at all.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
	"github.com/monjodav/prudency-backend/internal/sms"
)

// ContactRepo defines the repository contract for trusted contacts, shared by
// the dispatcher, the contact service, and the invitation service.
type ContactRepo interface {
	// CreateContact inserts a new contact row.
	CreateContact(ctx context.Context, db *gorm.DB, c *domain.TrustedContact) error

	// GetContact fetches a contact by ID without an ownership filter.
	GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.TrustedContact, error)

	// GetContactByToken resolves an invitation token to its contact.
	GetContactByToken(ctx context.Context, db *gorm.DB, token string) (*domain.TrustedContact, error)

	// ListContacts returns all contacts of an owner, primary first.
	ListContacts(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.TrustedContact, error)

	// RecordInvitationSend persists post-send invitation state.
	RecordInvitationSend(ctx context.Context, db *gorm.DB, id, token string, count int, sentAt time.Time) error

	// MarkInvitationAccepted flags acceptance and burns the token.
	MarkInvitationAccepted(ctx context.Context, db *gorm.DB, id, token string) error
}

// NameResolver maps a user ID to a display name for message rendering.
// Implementations live at the edge (profile store, auth claims); a nil
// resolver falls back to a neutral phrase.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// DispatchFailure records one contact the dispatcher could not reach after
// exhausting the retry budget.
type DispatchFailure struct {
	ContactID   string `json:"contact_id"`
	ContactName string `json:"contact_name"`
	Error       string `json:"error"`
}

// DispatchResult aggregates one fan-out: how many contacts were reached and
// which ones were not.
type DispatchResult struct {
	AlertID       string            `json:"alert_id,omitempty"`
	NotifiedCount int               `json:"notified_count"`
	Failures      []DispatchFailure `json:"failures,omitempty"`
}

// Notifier is the dispatch capability consumed by the trip and alert
// services.
type Notifier interface {
	Notify(ctx context.Context, alertID string) (*DispatchResult, error)
}

// CancellationNotifier sends the best-effort trip-cancellation notice.
type CancellationNotifier interface {
	NotifyCancellation(ctx context.Context, trip *domain.Trip) (*DispatchResult, error)
}

// DispatchService implements Notifier and CancellationNotifier over the SMS
// gateway.
type DispatchService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Alerts resolves the alert being dispatched.
	Alerts AlertRepo
	// Contacts resolves the recipient list.
	Contacts ContactRepo
	// Gateway delivers the rendered messages.
	Gateway sms.Gateway
	// Names resolves the owner's display name; nil uses a neutral phrase.
	Names NameResolver
	// Limiter suppresses duplicate dispatches per alert.
	Limiter ratelimit.Limiter

	// Log receives per-recipient delivery outcomes.
	Log zerolog.Logger

	// DispatchWindow is the minimum spacing between dispatch attempts for
	// the same alert.
	DispatchWindow time.Duration
	// MaxRetries and BaseDelay shape the per-recipient backoff: MaxRetries
	// extra attempts after the first, starting at BaseDelay and doubling.
	MaxRetries int
	BaseDelay  time.Duration
	// MapLinkBase prefixes the "lat,lng" pair in rendered map links.
	MapLinkBase string

	sleep func(time.Duration) // test seam

	titler cases.Caser
}

// Dispatch defaults.
const (
	DefaultDispatchWindow = 60 * time.Second
	DefaultMaxRetries     = 3
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMapLinkBase    = "https://maps.google.com/?q="
)

// NewDispatchService constructs a DispatchService with the default retry and
// spacing parameters.
func NewDispatchService(db *gorm.DB, alerts AlertRepo, contacts ContactRepo, gw sms.Gateway, lim ratelimit.Limiter) *DispatchService {
	return &DispatchService{
		DB:             db,
		Alerts:         alerts,
		Contacts:       contacts,
		Gateway:        gw,
		Limiter:        lim,
		Log:            zerolog.Nop(),
		DispatchWindow: DefaultDispatchWindow,
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		MapLinkBase:    DefaultMapLinkBase,
		sleep:          time.Sleep,
		titler:         cases.Title(language.Und),
	}
}

// Notify fans an alert out to the owner's SMS-enabled contacts. A second call
// for the same alert inside DispatchWindow returns a RateLimitedError, which
// callers treat as "already being handled" rather than a hard failure.
func (s *DispatchService) Notify(ctx context.Context, alertID string) (*DispatchResult, error) {
	if s.Limiter != nil {
		if d := s.Limiter.Allow("notify:"+alertID, s.DispatchWindow); !d.Allowed {
			return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
		}
	}

	alert, err := s.Alerts.GetAlert(ctx, s.DB, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	body := s.renderAlert(ctx, alert)
	res, err := s.fanOut(ctx, alert.OwnerID, body)
	if err != nil {
		return nil, err
	}
	res.AlertID = alertID
	return res, nil
}

// NotifyCancellation tells the owner's contacts that a trip was cancelled.
// Gated per trip so a retried cancel does not double-text anyone.
func (s *DispatchService) NotifyCancellation(ctx context.Context, trip *domain.Trip) (*DispatchResult, error) {
	if s.Limiter != nil {
		if d := s.Limiter.Allow("notify:cancel:"+trip.ID, s.DispatchWindow); !d.Allowed {
			return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
		}
	}
	body := fmt.Sprintf("%s cancelled their Prudency trip and no longer needs an escort. No action needed.",
		s.ownerName(ctx, trip.OwnerID))
	return s.fanOut(ctx, trip.OwnerID, body)
}

// fanOut resolves the recipient list and runs one delivery attempt per
// contact concurrently. Each attempt carries its own retry budget; a slow
// recipient does not block the others.
func (s *DispatchService) fanOut(ctx context.Context, ownerID, body string) (*DispatchResult, error) {
	contacts, err := s.Contacts.ListContacts(ctx, s.DB, ownerID)
	if err != nil {
		return nil, err
	}

	recipients := contacts[:0]
	for _, c := range contacts {
		if c.NotifyBySMS && c.Phone != "" {
			recipients = append(recipients, c)
		}
	}

	res := &DispatchResult{}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range recipients {
		wg.Add(1)
		go func(c domain.TrustedContact) {
			defer wg.Done()
			err := s.deliver(ctx, c.Phone, body)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, DispatchFailure{
					ContactID:   c.ID,
					ContactName: c.Name,
					Error:       err.Error(),
				})
				s.Log.Warn().Err(err).Str("contact_id", c.ID).Msg("contact delivery failed")
				return
			}
			res.NotifiedCount++
		}(c)
	}
	wg.Wait()
	return res, nil
}

// deliver runs one recipient's attempt loop: the initial send plus up to
// MaxRetries retries with doubling backoff. Only transient failures are
// retried; an invalid recipient is terminal immediately.
func (s *DispatchService) deliver(ctx context.Context, phone, body string) error {
	delay := s.BaseDelay
	var lastErr error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if attempt > 0 {
			s.sleep(delay)
			delay *= 2
		}
		_, err := s.Gateway.Send(ctx, phone, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !sms.IsTransient(err) {
			return err
		}
	}
	return lastErr
}

// renderAlert builds the per-type message: a human name, the optional
// free-text reason, and a map link when the trigger location is known.
func (s *DispatchService) renderAlert(ctx context.Context, a *domain.Alert) string {
	name := s.ownerName(ctx, a.OwnerID)

	var b strings.Builder
	switch a.Type {
	case domain.AlertTimeout:
		fmt.Fprintf(&b, "PRUDENCY ALERT: %s did not confirm safe arrival and may need help.", name)
	case domain.AlertManual:
		fmt.Fprintf(&b, "PRUDENCY ALERT: %s triggered an emergency alert.", name)
	default:
		fmt.Fprintf(&b, "PRUDENCY ALERT: an automatic safety alert was raised for %s.", name)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, " Message: %s.", a.Reason)
	}
	if a.Lat != nil && a.Lng != nil {
		fmt.Fprintf(&b, " Last known location: %s%.5f,%.5f", s.MapLinkBase, *a.Lat, *a.Lng)
	}
	if a.BatteryLevel != nil {
		fmt.Fprintf(&b, " (battery %d%%)", *a.BatteryLevel)
	}
	return b.String()
}

// ownerName resolves a display name, title-cased, with a neutral fallback so
// messages never read "PRUDENCY ALERT:  did not...".
func (s *DispatchService) ownerName(ctx context.Context, ownerID string) string {
	if s.Names != nil {
		if name, err := s.Names.DisplayName(ctx, ownerID); err == nil && strings.TrimSpace(name) != "" {
			return s.titler.String(strings.TrimSpace(name))
		}
	}
	return "someone you protect"
}
