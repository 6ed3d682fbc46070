// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// VerificationCode (OTP) model.
//
// The attempt counter is incremented with its own UPDATE before the digest is
// compared, so a crash mid-verification still burns the attempt.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// CreateVerificationCode inserts a new code record. Only called after the
// plaintext was successfully handed to the SMS gateway. A caller-supplied
// CreatedAt is respected; the issuance window is computed from it.
func CreateVerificationCode(ctx context.Context, db *gorm.DB, vc *domain.VerificationCode) error {
	if vc.CreatedAt.IsZero() {
		vc.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(vc).Error
}

// LatestUsableCode returns the most recent unverified, unexpired code for
// (ownerID, phone), or ErrNotFound when none exists. The attempts cap is NOT
// filtered here; the service checks it to return a distinct error.
func LatestUsableCode(ctx context.Context, db *gorm.DB, ownerID, phone string, now time.Time) (*domain.VerificationCode, error) {
	var vc domain.VerificationCode
	err := db.WithContext(ctx).
		Where("owner_id = ? AND phone = ? AND verified_at IS NULL AND expires_at >= ?", ownerID, phone, now).
		Order("created_at desc").
		First(&vc).Error
	if err != nil {
		return nil, err
	}
	return &vc, nil
}

// CountCodesIssuedSince returns how many codes were issued for (ownerID,
// phone) at or after the cutoff. Backs the 3-per-10-minutes issuance cap.
func CountCodesIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("owner_id = ? AND phone = ? AND created_at >= ?", ownerID, phone, since).
		Count(&n).Error
	return n, err
}

// OldestCodeIssuedSince returns the creation time of the oldest code issued
// for (ownerID, phone) at or after the cutoff, or ErrNotFound when the window
// is empty. The issuance cap derives its retry hint from this instant.
func OldestCodeIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (time.Time, error) {
	var vc domain.VerificationCode
	err := db.WithContext(ctx).
		Where("owner_id = ? AND phone = ? AND created_at >= ?", ownerID, phone, since).
		Order("created_at asc").
		First(&vc).Error
	if err != nil {
		return time.Time{}, err
	}
	return vc.CreatedAt, nil
}

// IncrementCodeAttempts bumps the attempt counter by one and returns the new
// value. The increment is unconditional so that a wrong guess is counted even
// if the process dies before the comparison result is returned.
func IncrementCodeAttempts(ctx context.Context, db *gorm.DB, id string) (int, error) {
	res := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var vc domain.VerificationCode
	if err := db.WithContext(ctx).Select("attempts").Where("id = ?", id).First(&vc).Error; err != nil {
		return 0, err
	}
	return vc.Attempts, nil
}

// MarkCodeVerified stamps verified_at, conditional on the record still being
// unverified (no double-use).
func MarkCodeVerified(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.VerificationCode{}).
		Where("id = ? AND verified_at IS NULL", id).
		Update("verified_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
