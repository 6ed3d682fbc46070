// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TrustedContact model, including invitation bookkeeping.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// CreateContact inserts a new TrustedContact row.
func CreateContact(ctx context.Context, db *gorm.DB, c *domain.TrustedContact) error {
	c.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(c).Error
}

// GetContact fetches a contact by ID, or ErrNotFound if missing. Ownership is
// deliberately not filtered here: the invitation service needs the record to
// distinguish "missing" (404) from "not yours" (403).
func GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.TrustedContact, error) {
	var c domain.TrustedContact
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetContactByToken resolves an invitation token back to its contact, or
// ErrNotFound when the token is unknown.
func GetContactByToken(ctx context.Context, db *gorm.DB, token string) (*domain.TrustedContact, error) {
	var c domain.TrustedContact
	err := db.WithContext(ctx).
		Where("invitation_token = ?", token).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns all contacts registered for ownerID, primary first,
// then oldest first (stable fan-out ordering for the dispatcher).
func ListContacts(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.TrustedContact, error) {
	var out []domain.TrustedContact
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("is_primary desc, created_at asc").
		Find(&out).Error
	return out, err
}

// RecordInvitationSend persists the post-send invitation state: token (reused
// or newly minted by the service), incremented count, and send timestamp.
// Written only after the SMS gateway accepted the message.
func RecordInvitationSend(ctx context.Context, db *gorm.DB, id, token string, count int, sentAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.TrustedContact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"invitation_token":   token,
			"invitation_count":   count,
			"invitation_sent_at": sentAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkInvitationAccepted flags the contact as accepted and clears the token
// so the link cannot be replayed. Conditional on the token still matching.
func MarkInvitationAccepted(ctx context.Context, db *gorm.DB, id, token string) error {
	res := db.WithContext(ctx).
		Model(&domain.TrustedContact{}).
		Where("id = ? AND invitation_token = ?", id, token).
		Updates(map[string]any{
			"invitation_accepted": true,
			"invitation_token":    nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
