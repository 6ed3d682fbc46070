// Package services – AlertService
//
// This file implements the AlertService, which owns the alert lifecycle:
// manual/automatic creation with a per-owner burst cap, acknowledgment by a
// guardian, and resolution. Timeout alerts are minted by the trip timeout
// path, not here.
//
// Alert creation is the durable source of truth; notification dispatch is
// asynchronous and best-effort, so a slow or failing SMS provider never rolls
// back an alert.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
)

// AlertRepo defines the repository contract required by AlertService and by
// the trip timeout path.
type AlertRepo interface {
	// CreateAlert inserts a fully-populated alert row.
	CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error

	// GetAlert fetches an alert by ID.
	GetAlert(ctx context.Context, db *gorm.DB, id string) (*domain.Alert, error)

	// CountAlertsSince counts an owner's alerts triggered at or after cutoff.
	CountAlertsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (int64, error)

	// FindTimeoutAlertForTrip returns the trip's timeout alert if one exists.
	FindTimeoutAlertForTrip(ctx context.Context, db *gorm.DB, tripID string) (*domain.Alert, error)

	// DeleteAlert removes an alert row, discarding a lost-race orphan.
	DeleteAlert(ctx context.Context, db *gorm.DB, id string) error

	// UpdateAlertStatus performs the conditional status transition.
	UpdateAlertStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error)

	// ListAlertsPage returns a page of an owner's alerts, newest first.
	ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Alert, error)

	// CountAlerts returns the owner's total alert count for pagination.
	CountAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)
}

// CreateAlertInput carries the caller-supplied parameters for Create.
type CreateAlertInput struct {
	Type         string
	TripID       *string
	Reason       string
	Lat          *float64
	Lng          *float64
	BatteryLevel *int
}

// AlertService provides alert lifecycle operations.
type AlertService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the alert repository used by this service.
	Repo AlertRepo
	// Trips is used to flip the owning trip to `alerted` on creation.
	Trips TripRepo

	// Notifier dispatches contact notifications for a newly created alert.
	Notifier Notifier
	// Limiter is the in-process burst gate; the durable CountAlertsSince
	// check backs it up across instances.
	Limiter ratelimit.CountLimiter

	// Log receives inconsistency and best-effort failure events.
	Log zerolog.Logger

	// BurstWindow / BurstMax bound alert creation per owner (sliding count
	// window, bursts up to BurstMax explicitly allowed).
	BurstWindow time.Duration
	BurstMax    int
	// DispatchTimeout bounds each asynchronous notification dispatch.
	DispatchTimeout time.Duration

	now func() time.Time // test seam
}

// Alert burst cap defaults: at most 10 alerts per owner per trailing minute.
const (
	DefaultAlertBurstWindow = time.Minute
	DefaultAlertBurstMax    = 10
)

// NewAlertService constructs an AlertService with default burst parameters.
func NewAlertService(db *gorm.DB, r AlertRepo, trips TripRepo) *AlertService {
	return &AlertService{
		DB:              db,
		Repo:            r,
		Trips:           trips,
		Log:             zerolog.Nop(),
		BurstWindow:     DefaultAlertBurstWindow,
		BurstMax:        DefaultAlertBurstMax,
		DispatchTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// Create persists a manual or automatic alert in `triggered` and dispatches
// notifications asynchronously. When the alert references a trip, the trip is
// flipped to `alerted` unless it already reached a terminal state; a skipped
// flip is logged as an inconsistency but does not fail the alert, because the
// alert record is what reaches the contacts.
func (s *AlertService) Create(ctx context.Context, ownerID string, in CreateAlertInput) (*domain.Alert, error) {
	if in.Type != domain.AlertManual && in.Type != domain.AlertAutomatic {
		return nil, ErrInvalidAlertType
	}
	if len(in.Reason) > 500 {
		in.Reason = in.Reason[:500]
	}

	// Cheap in-process gate first, then the durable count, which stays
	// correct when several API instances share the database.
	if s.Limiter != nil {
		if d := s.Limiter.AllowN("alerts:"+ownerID, s.BurstWindow, s.BurstMax); !d.Allowed {
			return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
		}
	}
	now := s.now().UTC()
	n, err := s.Repo.CountAlertsSince(ctx, s.DB, ownerID, now.Add(-s.BurstWindow))
	if err != nil {
		return nil, err
	}
	if n >= int64(s.BurstMax) {
		return nil, &RateLimitedError{RetryAfter: s.BurstWindow}
	}

	var trip *domain.Trip
	if in.TripID != nil {
		trip, err = s.Trips.GetOwnedTrip(ctx, s.DB, *in.TripID, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTripNotFound
			}
			return nil, err
		}
	}

	alert := &domain.Alert{
		ID:           uuid.NewString(),
		TripID:       in.TripID,
		OwnerID:      ownerID,
		Type:         in.Type,
		Status:       domain.AlertTriggered,
		Reason:       in.Reason,
		Lat:          in.Lat,
		Lng:          in.Lng,
		BatteryLevel: in.BatteryLevel,
		TriggeredAt:  now,
	}
	if err := s.Repo.CreateAlert(ctx, s.DB, alert); err != nil {
		return nil, err
	}

	if trip != nil {
		if domain.TripCanTransition(trip.Status, domain.TripAlerted) {
			ok, err := s.Trips.UpdateTripStatus(ctx, s.DB, trip.ID, trip.Status, domain.TripAlerted, nil)
			if err != nil || !ok {
				s.Log.Warn().Err(err).
					Str("trip_id", trip.ID).
					Str("alert_id", alert.ID).
					Msg("trip not flipped to alerted")
			}
		} else {
			s.Log.Warn().
				Str("trip_id", trip.ID).
				Str("trip_status", trip.Status).
				Str("alert_id", alert.ID).
				Msg("alert created against terminal trip")
		}
	}

	s.dispatchAsync(alert.ID)
	return alert, nil
}

// Get returns an alert owned by ownerID.
func (s *AlertService) Get(ctx context.Context, ownerID, alertID string) (*domain.Alert, error) {
	a, err := s.Repo.GetAlert(ctx, s.DB, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return a, nil
}

// ListPage returns a page of the owner's alerts with the total count.
func (s *AlertService) ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Alert, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Repo.CountAlerts(ctx, s.DB, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Alert{}, 0, nil
	}
	items, err := s.Repo.ListAlertsPage(ctx, s.DB, ownerID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Acknowledge marks a triggered alert as seen by a guardian. Illegal
// transitions are reported, not silently ignored.
func (s *AlertService) Acknowledge(ctx context.Context, alertID string) (*domain.Alert, error) {
	return s.transition(ctx, alertID, domain.AlertAcknowledged, "acknowledged_at")
}

// Resolve closes an alert with the given outcome, `resolved` or
// `false_alarm`. Resolution is legal from triggered, and from acknowledged
// for `resolved` only.
func (s *AlertService) Resolve(ctx context.Context, alertID, outcome string) (*domain.Alert, error) {
	if outcome != domain.AlertResolved && outcome != domain.AlertFalseAlarm {
		return nil, ErrInvalidTransition
	}
	return s.transition(ctx, alertID, outcome, "resolved_at")
}

// transition applies a monotonic status move with the conditional repository
// write. A lost race (another caller moved the alert first) surfaces as
// ErrInvalidTransition, matching a stale client's view of the world.
func (s *AlertService) transition(ctx context.Context, alertID, to, stampColumn string) (*domain.Alert, error) {
	a, err := s.Repo.GetAlert(ctx, s.DB, alertID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	if !domain.AlertCanTransition(a.Status, to) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	ok, err := s.Repo.UpdateAlertStatus(ctx, s.DB, alertID, a.Status, to,
		map[string]any{stampColumn: now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	a.Status = to
	switch stampColumn {
	case "acknowledged_at":
		a.AcknowledgedAt = &now
	case "resolved_at":
		a.ResolvedAt = &now
	}
	return a, nil
}

// dispatchAsync hands the alert to the notifier on a fresh context.
func (s *AlertService) dispatchAsync(alertID string) {
	if s.Notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), s.DispatchTimeout)
		defer cancel()
		res, err := s.Notifier.Notify(nctx, alertID)
		if err != nil {
			s.Log.Warn().Err(err).Str("alert_id", alertID).Msg("alert dispatch failed")
			return
		}
		s.Log.Info().
			Str("alert_id", alertID).
			Int("notified", res.NotifiedCount).
			Int("failures", len(res.Failures)).
			Msg("alert dispatched")
	}()
}
