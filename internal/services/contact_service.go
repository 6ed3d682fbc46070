// Package services – ContactService
//
// Trusted-contact registration and listing. Kept separate from the
// invitation flow so the dispatcher and the handlers share one place for
// contact validation rules.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
)

// CreateContactInput carries the caller-supplied parameters for Create.
type CreateContactInput struct {
	Name         string
	Phone        string
	NotifyBySMS  bool
	NotifyByPush bool
	IsPrimary    bool
}

// ContactService manages an owner's trusted contacts.
type ContactService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contact repository used by this service.
	Repo ContactRepo

	// NameMaxLen caps stored contact names by byte length.
	NameMaxLen int
}

// NewContactService constructs a ContactService.
func NewContactService(db *gorm.DB, r ContactRepo) *ContactService {
	return &ContactService{DB: db, Repo: r, NameMaxLen: 120}
}

// Create registers a contact for ownerID. The phone must be E.164; the name
// must be non-blank.
func (s *ContactService) Create(ctx context.Context, ownerID string, in CreateContactInput) (*domain.TrustedContact, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrMissingName
	}
	if s.NameMaxLen > 0 && len(name) > s.NameMaxLen {
		name = name[:s.NameMaxLen]
	}
	if !ValidPhone(in.Phone) {
		return nil, ErrInvalidPhone
	}

	c := &domain.TrustedContact{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		Phone:        in.Phone,
		NotifyBySMS:  in.NotifyBySMS,
		NotifyByPush: in.NotifyByPush,
		IsPrimary:    in.IsPrimary,
	}
	if err := s.Repo.CreateContact(ctx, s.DB, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all contacts of ownerID, primary first.
func (s *ContactService) List(ctx context.Context, ownerID string) ([]domain.TrustedContact, error) {
	return s.Repo.ListContacts(ctx, s.DB, ownerID)
}

// Get returns one contact owned by ownerID.
func (s *ContactService) Get(ctx context.Context, ownerID, contactID string) (*domain.TrustedContact, error) {
	c, err := s.Repo.GetContact(ctx, s.DB, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return c, nil
}
