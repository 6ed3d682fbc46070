// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Trip model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a trip is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The conditional status update is the durable idempotency guard for the
// escalation pipeline: concurrent sweep and client retries race through
// UpdateTripStatus, and only one of them observes RowsAffected == 1.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTrip inserts a new Trip row. The caller supplies a fully-populated
// model (ID, owner, status, deadline fields); CreatedAt is set to UTC here.
func CreateTrip(ctx context.Context, db *gorm.DB, t *domain.Trip) error {
	t.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(t).Error
}

// GetTrip fetches a single trip by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetTrip(ctx context.Context, db *gorm.DB, id string) (*domain.Trip, error) {
	var t domain.Trip
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetOwnedTrip fetches a trip by ID ensuring it belongs to ownerID.
// Returns ErrNotFound when missing or owned by someone else.
func GetOwnedTrip(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Trip, error) {
	var t domain.Trip
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTripsInStatuses returns how many trips ownerID has in any of the given
// statuses. Used to enforce "at most one trip in {active, alerted} per owner".
func CountTripsInStatuses(ctx context.Context, db *gorm.DB, ownerID string, statuses []string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("owner_id = ? AND status IN ?", ownerID, statuses).
		Count(&n).Error
	return n, err
}

// UpdateTripStatus moves a trip from one status to another with a conditional
// write (UPDATE ... WHERE id = ? AND status = ?). It reports whether the row
// was actually transitioned: false means another caller won the race or the
// trip already left the source status, which callers treat as a benign no-op.
//
// extra carries additional columns written atomically with the transition
// (e.g. completed_at, cancelled_at). It may be nil.
func UpdateTripStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ExtendTripArrival replaces the estimated arrival with newArrival, only
// while the trip is still active and the deadline still matches prevArrival
// (compare-and-swap against concurrent extends). Returns ErrNotFound when the
// trip is missing, not owned, not active, or lost the CAS.
func ExtendTripArrival(ctx context.Context, db *gorm.DB, id, ownerID string, prevArrival, newArrival time.Time, addMinutes int) error {
	res := db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("id = ? AND owner_id = ? AND status = ? AND estimated_arrival_at = ?",
			id, ownerID, domain.TripActive, prevArrival).
		Updates(map[string]any{
			"estimated_arrival_at":   newArrival,
			"estimated_duration_min": gorm.Expr("estimated_duration_min + ?", addMinutes),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListOverdueActive returns the IDs of active trips whose estimated arrival
// (plus the grace buffer) lies in the past. The sweep iterates this list and
// runs the idempotent timeout check per trip.
func ListOverdueActive(ctx context.Context, db *gorm.DB, now time.Time, buffer time.Duration, limit int) ([]string, error) {
	cutoff := now.Add(-buffer)
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("status = ? AND estimated_arrival_at IS NOT NULL AND estimated_arrival_at < ?", domain.TripActive, cutoff).
		Order("estimated_arrival_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// ListTripsPage returns a page of an owner's trips, most recent first.
// Use CountTrips to obtain the total for pagination metadata.
func ListTripsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Trip, error) {
	var out []domain.Trip
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountTrips returns the total number of trips owned by ownerID.
func CountTrips(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Trip{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}
