// Package services – TripService
//
// This file implements the TripService, which owns the trip lifecycle:
// starting, extending, completing, cancelling, raw location ingestion, and
// the authoritative timeout check the sweep and client retries both call.
//
// Every status change goes through a conditional repository write, so
// concurrent callers (scheduler plus client) converge on one outcome. The
// timeout check in particular wins or loses the active→timeout write
// atomically, which is what bounds the pipeline to one timeout alert per
// trip.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/observability"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
)

// TripRepo defines the repository contract required by TripService.
type TripRepo interface {
	// CreateTrip inserts a fully-populated trip row.
	CreateTrip(ctx context.Context, db *gorm.DB, t *domain.Trip) error

	// GetTrip fetches a trip by ID regardless of owner (sweep path).
	GetTrip(ctx context.Context, db *gorm.DB, id string) (*domain.Trip, error)

	// GetOwnedTrip fetches a trip by ID ensuring it belongs to the owner.
	GetOwnedTrip(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Trip, error)

	// CountTripsInStatuses counts an owner's trips in any of the statuses.
	CountTripsInStatuses(ctx context.Context, db *gorm.DB, ownerID string, statuses []string) (int64, error)

	// UpdateTripStatus performs the conditional status transition.
	UpdateTripStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error)

	// ExtendTripArrival replaces the arrival estimate via compare-and-swap.
	ExtendTripArrival(ctx context.Context, db *gorm.DB, id, ownerID string, prevArrival, newArrival time.Time, addMinutes int) error

	// ListOverdueActive returns IDs of active trips past deadline plus buffer.
	ListOverdueActive(ctx context.Context, db *gorm.DB, now time.Time, buffer time.Duration, limit int) ([]string, error)

	// ListTripsPage returns a page of an owner's trips, newest first.
	ListTripsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Trip, error)

	// CountTrips returns the owner's total trip count for pagination.
	CountTrips(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)
}

// LocationRepo defines the repository contract for raw location samples.
type LocationRepo interface {
	// CreateLocationSample inserts one position report.
	CreateLocationSample(ctx context.Context, db *gorm.DB, s *domain.LocationSample) error

	// LatestLocationSample returns the newest sample for a trip.
	LatestLocationSample(ctx context.Context, db *gorm.DB, tripID string) (*domain.LocationSample, error)

	// PruneLocationSamples deletes samples recorded before the cutoff.
	PruneLocationSamples(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
}

// IdentityConfirmer is the external collaborator that verifies a password or
// biometric proof before a trip may be completed. The trip state machine only
// accepts the boolean outcome; it never sees the secret.
type IdentityConfirmer interface {
	Confirm(ctx context.Context, ownerID, proof string) (bool, error)
}

// StartTripInput carries the caller-supplied parameters for StartTrip.
type StartTripInput struct {
	DepartureLat     *float64
	DepartureLng     *float64
	DepartureAddress string
	ArrivalLat       *float64
	ArrivalLng       *float64
	ArrivalAddress   string
	DurationMinutes  int
}

// TimeoutResult reports the outcome of one timeout check. Triggered is true
// only for the single invocation that actually escalated the trip; redundant
// calls see Triggered=false with the current status and, when available, the
// previously created alert's ID.
type TimeoutResult struct {
	Triggered bool   `json:"triggered"`
	Status    string `json:"status"`
	AlertID   string `json:"alert_id,omitempty"`
}

// TripService provides trip lifecycle operations and the authoritative
// timeout check. Optional collaborators (Identity, Notifier, Cancellation,
// Limiter) are exported fields wired at composition time; nil disables the
// corresponding side effect, which only tests should rely on.
type TripService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the trip repository used by this service.
	Repo TripRepo
	// Locations stores and serves raw position samples.
	Locations LocationRepo
	// Alerts is used by the timeout path to mint the timeout alert.
	Alerts AlertRepo

	// Identity gates CompleteTrip on a password/biometric proof.
	Identity IdentityConfirmer
	// Notifier dispatches contact notifications for a newly created alert.
	Notifier Notifier
	// Cancellation sends the best-effort cancellation notice.
	Cancellation CancellationNotifier
	// Limiter gates raw location ingestion (one sample per window per trip).
	Limiter ratelimit.Limiter

	// Log receives inconsistency and best-effort failure events.
	Log zerolog.Logger

	// TimeoutBuffer is the grace period past the arrival estimate before a
	// trip is considered overdue.
	TimeoutBuffer time.Duration
	// LocationWindow is the minimum spacing between accepted samples.
	LocationWindow time.Duration
	// DispatchTimeout bounds each asynchronous notification dispatch.
	DispatchTimeout time.Duration

	now func() time.Time // test seam
}

// Trip duration bounds in minutes.
const (
	MinTripDurationMin = 5
	MaxTripDurationMin = 480
)

// DefaultTimeoutBuffer is the grace window past the arrival estimate.
const DefaultTimeoutBuffer = 5 * time.Minute

// NewTripService constructs a TripService with default timing parameters.
// Callers wire the optional collaborators afterwards.
func NewTripService(db *gorm.DB, r TripRepo, locations LocationRepo, alerts AlertRepo) *TripService {
	return &TripService{
		DB:              db,
		Repo:            r,
		Locations:       locations,
		Alerts:          alerts,
		Log:             zerolog.Nop(),
		TimeoutBuffer:   DefaultTimeoutBuffer,
		LocationWindow:  5 * time.Second,
		DispatchTimeout: 30 * time.Second,
		now:             time.Now,
	}
}

// Start creates a trip in `active` for ownerID with the arrival estimate
// computed from now plus the estimated duration. At most one trip per owner
// may be active or alerted at a time.
func (s *TripService) Start(ctx context.Context, ownerID string, in StartTripInput) (*domain.Trip, error) {
	if in.DurationMinutes < MinTripDurationMin || in.DurationMinutes > MaxTripDurationMin {
		return nil, ErrInvalidDuration
	}
	hasDeparture := in.DepartureLat != nil && in.DepartureLng != nil
	hasArrival := in.ArrivalLat != nil && in.ArrivalLng != nil
	if !hasDeparture && !hasArrival && in.DepartureAddress == "" && in.ArrivalAddress == "" {
		return nil, ErrMissingEndpoints
	}

	n, err := s.Repo.CountTripsInStatuses(ctx, s.DB, ownerID, []string{domain.TripActive, domain.TripAlerted})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrActiveTripExists
	}

	now := s.now().UTC()
	arrival := now.Add(time.Duration(in.DurationMinutes) * time.Minute)
	t := &domain.Trip{
		ID:                   uuid.NewString(),
		OwnerID:              ownerID,
		Status:               domain.TripActive,
		DepartureLat:         in.DepartureLat,
		DepartureLng:         in.DepartureLng,
		DepartureAddress:     in.DepartureAddress,
		ArrivalLat:           in.ArrivalLat,
		ArrivalLng:           in.ArrivalLng,
		ArrivalAddress:       in.ArrivalAddress,
		EstimatedDurationMin: in.DurationMinutes,
		StartedAt:            &now,
		EstimatedArrivalAt:   &arrival,
	}
	if err := s.Repo.CreateTrip(ctx, s.DB, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns a trip owned by ownerID.
func (s *TripService) Get(ctx context.Context, ownerID, tripID string) (*domain.Trip, error) {
	t, err := s.Repo.GetOwnedTrip(ctx, s.DB, tripID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListPage returns a page of the owner's trips with the total count.
func (s *TripService) ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Trip, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := s.Repo.CountTrips(ctx, s.DB, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Trip{}, 0, nil
	}
	items, err := s.Repo.ListTripsPage(ctx, s.DB, ownerID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Extend adds minutes to the arrival estimate of an active trip. The update
// is a compare-and-swap against the previously read estimate, so two
// concurrent extends apply once each instead of clobbering one another.
func (s *TripService) Extend(ctx context.Context, ownerID, tripID string, minutes int) (*domain.Trip, error) {
	if minutes < 1 || minutes > MaxTripDurationMin {
		return nil, ErrInvalidDuration
	}

	// Retry the CAS a few times so a lost race with another extend does not
	// surface as an error.
	for attempt := 0; attempt < 3; attempt++ {
		t, err := s.Repo.GetOwnedTrip(ctx, s.DB, tripID, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTripNotFound
			}
			return nil, err
		}
		if t.Status != domain.TripActive || t.EstimatedArrivalAt == nil {
			return nil, ErrInvalidTransition
		}

		newArrival := t.EstimatedArrivalAt.Add(time.Duration(minutes) * time.Minute)
		err = s.Repo.ExtendTripArrival(ctx, s.DB, tripID, ownerID, *t.EstimatedArrivalAt, newArrival, minutes)
		if err == nil {
			t.EstimatedArrivalAt = &newArrival
			t.EstimatedDurationMin += minutes
			return t, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, ErrInvalidTransition
}

// Complete marks a trip as safely finished. It requires a successful identity
// confirmation (password or biometric) via the Identity collaborator; the
// proof string is opaque to this service. Valid from active or alerted.
func (s *TripService) Complete(ctx context.Context, ownerID, tripID, proof string) (*domain.Trip, error) {
	if s.Identity != nil {
		confirmed, err := s.Identity.Confirm(ctx, ownerID, proof)
		if err != nil {
			return nil, err
		}
		if !confirmed {
			return nil, ErrIdentityNotConfirmed
		}
	}

	t, err := s.Repo.GetOwnedTrip(ctx, s.DB, tripID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if !domain.TripCanTransition(t.Status, domain.TripCompleted) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	ok, err := s.Repo.UpdateTripStatus(ctx, s.DB, tripID, t.Status, domain.TripCompleted,
		map[string]any{"completed_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	t.Status = domain.TripCompleted
	t.CompletedAt = &now
	return t, nil
}

// Cancel aborts a trip from any non-terminal state and sends a best-effort
// cancellation notice to the owner's contacts. The notice never blocks or
// fails the cancellation itself.
func (s *TripService) Cancel(ctx context.Context, ownerID, tripID string) (*domain.Trip, error) {
	t, err := s.Repo.GetOwnedTrip(ctx, s.DB, tripID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if !domain.TripCanTransition(t.Status, domain.TripCancelled) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	ok, err := s.Repo.UpdateTripStatus(ctx, s.DB, tripID, t.Status, domain.TripCancelled,
		map[string]any{"cancelled_at": now})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	t.Status = domain.TripCancelled
	t.CancelledAt = &now

	if s.Cancellation != nil {
		trip := *t
		go func() {
			nctx, cancel := context.WithTimeout(context.Background(), s.DispatchTimeout)
			defer cancel()
			if _, err := s.Cancellation.NotifyCancellation(nctx, &trip); err != nil {
				s.Log.Warn().Err(err).Str("trip_id", trip.ID).Msg("cancellation notice failed")
			}
		}()
	}
	return t, nil
}

// RecordLocation ingests one raw position sample for an active trip, gated to
// one sample per LocationWindow per trip.
func (s *TripService) RecordLocation(ctx context.Context, ownerID, tripID string, lat, lng float64, battery *int, recordedAt time.Time) error {
	if s.Limiter != nil {
		if d := s.Limiter.Allow("location:"+tripID, s.LocationWindow); !d.Allowed {
			return &RateLimitedError{RetryAfter: d.RetryAfter}
		}
	}

	t, err := s.Repo.GetOwnedTrip(ctx, s.DB, tripID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTripNotFound
		}
		return err
	}
	if t.Status != domain.TripActive && t.Status != domain.TripAlerted {
		return ErrInvalidTransition
	}

	if recordedAt.IsZero() {
		recordedAt = s.now().UTC()
	}
	return s.Locations.CreateLocationSample(ctx, s.DB, &domain.LocationSample{
		ID:           uuid.NewString(),
		TripID:       tripID,
		Lat:          lat,
		Lng:          lng,
		BatteryLevel: battery,
		RecordedAt:   recordedAt,
	})
}

// OverdueTripIDs lists active trips whose deadline plus buffer has passed.
// The sweep iterates the result and calls CheckTimeout per trip.
func (s *TripService) OverdueTripIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.Repo.ListOverdueActive(ctx, s.DB, s.now().UTC(), s.TimeoutBuffer, limit)
}

// PruneLocations deletes location samples older than the retention horizon.
func (s *TripService) PruneLocations(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.Locations.PruneLocationSamples(ctx, s.DB, s.now().UTC().Add(-olderThan))
}

// CheckTimeout is the authoritative, idempotent timeout check. It is safe to
// call concurrently and redundantly from the scheduler and from client
// retries: a trip that is no longer active is reported as a no-op with its
// current status, never as an error.
//
// The escalation sequence is alert first, status second: mint (or reuse) the
// timeout alert with the latest location sample as context, then win the
// active→timeout conditional write, then dispatch notifications
// asynchronously. Any failure before the status write leaves the trip
// active, so the next sweep retries the whole sequence and adopts the alert
// row that already exists. Losing the write means another caller escalated
// (or the owner closed the trip); an alert minted by the loser is discarded.
func (s *TripService) CheckTimeout(ctx context.Context, tripID string) (*TimeoutResult, error) {
	t, err := s.Repo.GetTrip(ctx, s.DB, tripID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}

	if t.Status != domain.TripActive {
		return s.timeoutNoop(ctx, t), nil
	}
	if t.EstimatedArrivalAt == nil {
		return &TimeoutResult{Triggered: false, Status: t.Status}, nil
	}
	now := s.now().UTC()
	if !now.After(t.EstimatedArrivalAt.Add(s.TimeoutBuffer)) {
		// Not yet due.
		return &TimeoutResult{Triggered: false, Status: t.Status}, nil
	}

	// Adopt an alert left over from a prior attempt that failed between the
	// insert and the status write, so a retry never double-mints.
	minted := false
	alert, err := s.Alerts.FindTimeoutAlertForTrip(ctx, s.DB, tripID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		alert = &domain.Alert{
			ID:          uuid.NewString(),
			TripID:      &tripID,
			OwnerID:     t.OwnerID,
			Type:        domain.AlertTimeout,
			Status:      domain.AlertTriggered,
			TriggeredAt: now,
		}
		if sample, lerr := s.Locations.LatestLocationSample(ctx, s.DB, tripID); lerr == nil {
			alert.Lat = &sample.Lat
			alert.Lng = &sample.Lng
			alert.BatteryLevel = sample.BatteryLevel
		} else if !errors.Is(lerr, gorm.ErrRecordNotFound) {
			s.Log.Warn().Err(lerr).Str("trip_id", tripID).Msg("location lookup failed during escalation")
		}
		if err := s.Alerts.CreateAlert(ctx, s.DB, alert); err != nil {
			// The trip stays active, so the next sweep retries.
			s.Log.Error().Err(err).Str("trip_id", tripID).Msg("timeout alert insert failed")
			return nil, err
		}
		minted = true
	}

	won, err := s.Repo.UpdateTripStatus(ctx, s.DB, tripID, domain.TripActive, domain.TripTimeout, nil)
	if err != nil {
		// The alert row stays put; the retry finds and reuses it.
		s.Log.Error().Err(err).Str("trip_id", tripID).Str("alert_id", alert.ID).Msg("timeout status write failed after alert insert")
		return nil, err
	}
	if !won {
		if minted {
			if derr := s.Alerts.DeleteAlert(ctx, s.DB, alert.ID); derr != nil {
				s.Log.Warn().Err(derr).Str("alert_id", alert.ID).Msg("orphan timeout alert cleanup failed")
			}
		}
		if fresh, gerr := s.Repo.GetTrip(ctx, s.DB, tripID); gerr == nil {
			t = fresh
		} else {
			t.Status = domain.TripTimeout
		}
		return s.timeoutNoop(ctx, t), nil
	}

	observability.AlertCreated(domain.AlertTimeout)
	s.dispatchAsync(alert.ID)

	return &TimeoutResult{Triggered: true, Status: domain.TripTimeout, AlertID: alert.ID}, nil
}

// timeoutNoop builds the redundant-invocation result, attaching the existing
// timeout alert's ID when one was already minted for this trip.
func (s *TripService) timeoutNoop(ctx context.Context, t *domain.Trip) *TimeoutResult {
	res := &TimeoutResult{Triggered: false, Status: t.Status}
	if t.Status == domain.TripTimeout || t.Status == domain.TripAlerted {
		if a, err := s.Alerts.FindTimeoutAlertForTrip(ctx, s.DB, t.ID); err == nil {
			res.AlertID = a.ID
		}
	}
	return res
}

// dispatchAsync hands the alert to the notifier on a fresh context so a slow
// SMS provider cannot block or cancel the escalation response.
func (s *TripService) dispatchAsync(alertID string) {
	if s.Notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), s.DispatchTimeout)
		defer cancel()
		res, err := s.Notifier.Notify(nctx, alertID)
		if err != nil {
			s.Log.Warn().Err(err).Str("alert_id", alertID).Msg("timeout alert dispatch failed")
			return
		}
		s.Log.Info().
			Str("alert_id", alertID).
			Int("notified", res.NotifiedCount).
			Int("failures", len(res.Failures)).
			Msg("timeout alert dispatched")
	}()
}
