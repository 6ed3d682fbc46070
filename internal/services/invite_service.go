// Package services – InviteService
//
// This file implements the invitation token issuer: sending a trusted
// contact an SMS link they can use to accept the relationship, with a hard
// send limit and escalating cooldowns between resends.
//
// The token is reused across resends, so a previously shared link stays
// valid, and the counters are persisted only after a successful send. This
// ordering mirrors the OTP issuer and is applied at every call site.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/sms"
)

// invitationCooldowns[i] is the minimum delay before send number i+1.
// First send is immediate, the second waits 2 minutes, the third an hour.
var invitationCooldowns = []time.Duration{0, 2 * time.Minute, time.Hour}

// InviteService sends and resolves trusted-contact invitations.
type InviteService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contact repository used by this service.
	Repo ContactRepo
	// Gateway delivers the invitation SMS.
	Gateway sms.Gateway
	// Names resolves the inviter's display name for the message.
	Names NameResolver

	// Log receives invitation events.
	Log zerolog.Logger

	// AcceptBaseURL prefixes the invitation token in the SMS link.
	AcceptBaseURL string

	now func() time.Time // test seam
}

// NewInviteService constructs an InviteService.
func NewInviteService(db *gorm.DB, r ContactRepo, gw sms.Gateway, acceptBaseURL string) *InviteService {
	return &InviteService{
		DB:            db,
		Repo:          r,
		Gateway:       gw,
		Log:           zerolog.Nop(),
		AcceptBaseURL: acceptBaseURL,
		now:           time.Now,
	}
}

// Send texts an invitation to the contact. The caller must own the contact
// record; a violation is ErrForbidden, never a silent no-op. At most
// domain.MaxInvitationSends sends per contact, with the cooldown for the next
// send indexed by how many were already made; an early retry gets a
// TooSoonError carrying the remaining wait.
func (s *InviteService) Send(ctx context.Context, callerID, contactID string) (*domain.TrustedContact, error) {
	c, err := s.Repo.GetContact(ctx, s.DB, contactID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	if c.OwnerID != callerID {
		return nil, ErrForbidden
	}
	if c.InvitationAccepted {
		return c, nil
	}
	if c.InvitationCount >= domain.MaxInvitationSends {
		return nil, ErrLimitReached
	}

	now := s.now().UTC()
	if c.InvitationCount > 0 && c.InvitationSentAt != nil {
		required := invitationCooldowns[c.InvitationCount]
		if elapsed := now.Sub(*c.InvitationSentAt); elapsed < required {
			return nil, &TooSoonError{Wait: required - elapsed}
		}
	}

	// Reuse the existing token so links shared from earlier sends keep
	// working; a resend must not rotate the invitation.
	token := uuid.NewString()
	if c.InvitationToken != nil && *c.InvitationToken != "" {
		token = *c.InvitationToken
	}

	body := s.renderInvitation(ctx, c, token)
	if _, err := s.Gateway.Send(ctx, c.Phone, body); err != nil {
		return nil, err
	}

	count := c.InvitationCount + 1
	if err := s.Repo.RecordInvitationSend(ctx, s.DB, c.ID, token, count, now); err != nil {
		return nil, err
	}
	c.InvitationToken = &token
	c.InvitationCount = count
	c.InvitationSentAt = &now
	s.Log.Info().Str("contact_id", c.ID).Int("send", count).Msg("invitation sent")
	return c, nil
}

// Accept resolves a token back to its contact and marks the relationship
// accepted, burning the token so the link cannot be replayed.
func (s *InviteService) Accept(ctx context.Context, token string) (*domain.TrustedContact, error) {
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	c, err := s.Repo.GetContactByToken(ctx, s.DB, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}

	if err := s.Repo.MarkInvitationAccepted(ctx, s.DB, c.ID, token); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Token was burned between the read and the write.
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	c.InvitationAccepted = true
	c.InvitationToken = nil
	return c, nil
}

// renderInvitation builds the fixed-template invitation SMS.
func (s *InviteService) renderInvitation(ctx context.Context, c *domain.TrustedContact, token string) string {
	inviter := "Someone"
	if s.Names != nil {
		if name, err := s.Names.DisplayName(ctx, c.OwnerID); err == nil && name != "" {
			inviter = name
		}
	}
	return inviter + " wants to add you as a trusted contact on Prudency, so you are alerted if they are in danger. Accept here: " +
		s.AcceptBaseURL + token
}
