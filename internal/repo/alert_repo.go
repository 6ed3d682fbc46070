// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Alert model.
//
// The status transition helpers mirror the trip repo: conditional updates
// re-check the source status so concurrent acknowledgers converge without a
// lock. CountAlertsSince backs the per-owner burst cap (sliding count window).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// CreateAlert inserts a new Alert row. The caller supplies a fully-populated
// model; CreatedAt is set to UTC here.
func CreateAlert(ctx context.Context, db *gorm.DB, a *domain.Alert) error {
	a.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(a).Error
}

// GetAlert fetches a single alert by ID, or ErrNotFound if missing.
func GetAlert(ctx context.Context, db *gorm.DB, id string) (*domain.Alert, error) {
	var a domain.Alert
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// CountAlertsSince returns how many alerts ownerID has triggered at or after
// the cutoff instant. Backs the "10 alerts per trailing 60s" burst cap.
func CountAlertsSince(ctx context.Context, db *gorm.DB, ownerID string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("owner_id = ? AND triggered_at >= ?", ownerID, since).
		Count(&n).Error
	return n, err
}

// FindTimeoutAlertForTrip returns the existing timeout alert for a trip, or
// ErrNotFound when none was created yet. Used by the sweep so a redundant
// invocation can report the previously-created alert instead of minting one.
func FindTimeoutAlertForTrip(ctx context.Context, db *gorm.DB, tripID string) (*domain.Alert, error) {
	var a domain.Alert
	err := db.WithContext(ctx).
		Where("trip_id = ? AND type = ?", tripID, domain.AlertTimeout).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAlert removes an alert row by ID. Used by the timeout check to
// discard an alert it minted but lost the escalation race for.
func DeleteAlert(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Alert{}).Error
}

// UpdateAlertStatus moves an alert from one status to another with a
// conditional write. It reports whether the row was actually transitioned;
// false means the alert already left the source status.
//
// extra carries timestamp columns written atomically with the transition
// (acknowledged_at, resolved_at). It may be nil.
func UpdateAlertStatus(ctx context.Context, db *gorm.DB, id, from, to string, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListAlertsPage returns a page of an owner's alerts, newest trigger first.
func ListAlertsPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.Alert, error) {
	var out []domain.Alert
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("triggered_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountAlerts returns the total number of alerts owned by ownerID.
func CountAlerts(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Alert{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}
