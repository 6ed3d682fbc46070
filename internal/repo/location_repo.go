// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for raw location
// samples ingested during an active trip.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// CreateLocationSample inserts one position report for a trip.
func CreateLocationSample(ctx context.Context, db *gorm.DB, s *domain.LocationSample) error {
	s.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(s).Error
}

// LatestLocationSample returns the newest sample for a trip, or ErrNotFound
// when the trip never reported a position. The timeout sweep attaches this to
// the alert as last-known context.
func LatestLocationSample(ctx context.Context, db *gorm.DB, tripID string) (*domain.LocationSample, error) {
	var s domain.LocationSample
	err := db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("recorded_at desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// PruneLocationSamples deletes samples recorded before the cutoff. Samples
// are context for escalation, not a movement history product; old rows are
// garbage.
func PruneLocationSamples(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("recorded_at < ?", before).
		Delete(&domain.LocationSample{})
	return res.RowsAffected, res.Error
}
