// Package services – CodeService
//
// This file implements the OTP issuer/verifier for phone ownership. The
// plaintext code leaves the process exactly once, inside the SMS; only its
// SHA-256 digest is stored. Issuance sends first and persists only on a
// successful send, so a gateway outage never leaves orphaned unusable codes.
//
// Verification burns the attempt before comparing, and compares digests in
// constant time. A wrong code is an expected outcome, reported as a boolean,
// not as an error.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/sms"
)

// CodeRepo defines the repository contract required by CodeService.
type CodeRepo interface {
	// CreateVerificationCode inserts a code record (digest only).
	CreateVerificationCode(ctx context.Context, db *gorm.DB, vc *domain.VerificationCode) error

	// LatestUsableCode returns the newest unverified, unexpired record.
	LatestUsableCode(ctx context.Context, db *gorm.DB, ownerID, phone string, now time.Time) (*domain.VerificationCode, error)

	// CountCodesIssuedSince counts issuances in the trailing window.
	CountCodesIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (int64, error)

	// OldestCodeIssuedSince gives the instant the window frees a slot.
	OldestCodeIssuedSince(ctx context.Context, db *gorm.DB, ownerID, phone string, since time.Time) (time.Time, error)

	// IncrementCodeAttempts burns one attempt and returns the new count.
	IncrementCodeAttempts(ctx context.Context, db *gorm.DB, id string) (int, error)

	// MarkCodeVerified stamps verified_at, once.
	MarkCodeVerified(ctx context.Context, db *gorm.DB, id string, at time.Time) error
}

// PhoneVerifiedSink receives the "phone verified" fact so the owner's profile
// can be updated outside this service. A nil sink drops the propagation.
type PhoneVerifiedSink interface {
	MarkPhoneVerified(ctx context.Context, ownerID, phone string) error
}

// CodeService issues and verifies one-time phone verification codes.
type CodeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the verification-code repository used by this service.
	Repo CodeRepo
	// Gateway delivers the plaintext code.
	Gateway sms.Gateway
	// Verified receives the verified flag for profile propagation.
	Verified PhoneVerifiedSink

	// Log receives issuance and verification events (never code material).
	Log zerolog.Logger

	// IssueWindow / IssueMax bound issuance per (owner, phone).
	IssueWindow time.Duration
	IssueMax    int
	// Expiry is the code lifetime.
	Expiry time.Duration

	now func() time.Time // test seam
}

// OTP defaults: 3 issuances per 10 minutes, codes valid for 600 seconds.
const (
	DefaultCodeIssueWindow = 10 * time.Minute
	DefaultCodeIssueMax    = 3
	DefaultCodeExpiry      = 600 * time.Second
)

// phoneRE accepts E.164: a plus sign, then 7 to 15 digits, no leading zero.
var phoneRE = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidPhone reports whether phone is in E.164 form.
func ValidPhone(phone string) bool { return phoneRE.MatchString(phone) }

// NewCodeService constructs a CodeService with default limits.
func NewCodeService(db *gorm.DB, r CodeRepo, gw sms.Gateway) *CodeService {
	return &CodeService{
		DB:          db,
		Repo:        r,
		Gateway:     gw,
		Log:         zerolog.Nop(),
		IssueWindow: DefaultCodeIssueWindow,
		IssueMax:    DefaultCodeIssueMax,
		Expiry:      DefaultCodeExpiry,
		now:         time.Now,
	}
}

// Issue generates a fresh 6-digit code for (ownerID, phone), texts it, and
// persists its digest with the configured expiry. Capped at IssueMax codes
// per IssueWindow; the cap's retry hint is the wait until the oldest issuance
// slides out of the window.
//
// The SMS send happens before the insert. A send failure is surfaced to the
// caller and nothing is persisted.
func (s *CodeService) Issue(ctx context.Context, ownerID, phone string) (*domain.VerificationCode, error) {
	if !ValidPhone(phone) {
		return nil, ErrInvalidPhone
	}

	now := s.now().UTC()
	since := now.Add(-s.IssueWindow)
	n, err := s.Repo.CountCodesIssuedSince(ctx, s.DB, ownerID, phone, since)
	if err != nil {
		return nil, err
	}
	if n >= int64(s.IssueMax) {
		wait := s.IssueWindow
		if oldest, err := s.Repo.OldestCodeIssuedSince(ctx, s.DB, ownerID, phone, since); err == nil {
			if remaining := oldest.Add(s.IssueWindow).Sub(now); remaining > 0 {
				wait = remaining
			}
		}
		return nil, &RateLimitedError{RetryAfter: wait}
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	body := fmt.Sprintf("Your Prudency verification code is %s. It expires in %d minutes. Never share it.",
		code, int(s.Expiry.Minutes()))
	if _, err := s.Gateway.Send(ctx, phone, body); err != nil {
		return nil, err
	}

	vc := &domain.VerificationCode{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Phone:     phone,
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(s.Expiry),
		CreatedAt: now,
	}
	if err := s.Repo.CreateVerificationCode(ctx, s.DB, vc); err != nil {
		return nil, err
	}
	s.Log.Info().Str("owner_id", ownerID).Str("code_id", vc.ID).Msg("verification code issued")
	return vc, nil
}

// Verify checks submitted against the latest usable code for (ownerID,
// phone). It returns (true, nil) on a match, (false, nil) on a wrong code,
// ErrCodeExpired when no usable record exists, and ErrTooManyAttempts when
// the attempt budget is spent.
func (s *CodeService) Verify(ctx context.Context, ownerID, phone, submitted string) (bool, error) {
	now := s.now().UTC()
	vc, err := s.Repo.LatestUsableCode(ctx, s.DB, ownerID, phone, now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrCodeExpired
		}
		return false, err
	}
	if vc.Attempts >= domain.MaxCodeAttempts {
		return false, ErrTooManyAttempts
	}

	// Burn the attempt first so a crash mid-comparison still counts it.
	if _, err := s.Repo.IncrementCodeAttempts(ctx, s.DB, vc.ID); err != nil {
		return false, err
	}

	if !digestsEqual(hashCode(submitted), vc.CodeHash) {
		return false, nil
	}

	if err := s.Repo.MarkCodeVerified(ctx, s.DB, vc.ID, now); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost a race against a concurrent verification of the same code.
			return false, ErrCodeExpired
		}
		return false, err
	}
	if s.Verified != nil {
		if err := s.Verified.MarkPhoneVerified(ctx, ownerID, phone); err != nil {
			s.Log.Warn().Err(err).Str("owner_id", ownerID).Msg("phone verified flag propagation failed")
		}
	}
	return true, nil
}

// generateCode draws a uniform 6-digit code from crypto/rand, left-padded
// with zeros. rand.Int is uniform over [0, 1000000), so no numeric range is
// favored.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// hashCode returns the hex SHA-256 digest of a plaintext code.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// digestsEqual compares two hex digests in constant time. Unequal lengths
// short-circuit to false; only the code length leaks, never its content.
func digestsEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
