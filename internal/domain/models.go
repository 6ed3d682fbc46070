// Package domain defines the persistence models for trips, alerts, trusted
// contacts, verification codes, and location samples. These types are mapped
// with GORM and form the core data layer of the safety-escort backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Trip statuses. A trip is created in draft, becomes active when the user
// departs, and terminates in exactly one of completed, cancelled, or timeout.
// Terminal states are final.
const (
	TripDraft     = "draft"
	TripActive    = "active"
	TripCompleted = "completed"
	TripCancelled = "cancelled"
	TripTimeout   = "timeout"
	TripAlerted   = "alerted"
)

// Alert types. Timeout alerts are produced by the server-side sweep; manual
// alerts come from the long-press trigger; automatic covers client-detected
// conditions outside a trip deadline.
const (
	AlertManual    = "manual"
	AlertAutomatic = "automatic"
	AlertTimeout   = "timeout"
)

// Alert statuses. Transitions are monotonic:
// triggered → acknowledged → resolved, or triggered → false_alarm.
const (
	AlertTriggered    = "triggered"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
	AlertFalseAlarm   = "false_alarm"
)

// Trip represents one escorted journey with an estimated arrival deadline.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID: identifier of the traveling user; indexed with status so the
//     "one active trip per owner" check stays cheap.
//   - Status: lifecycle state (see Trip* constants).
//   - DepartureLat/Lng/Address, ArrivalLat/Lng/Address: optional endpoints.
//   - EstimatedDurationMin: journey length in minutes, bounded [5,480].
//   - StartedAt / EstimatedArrivalAt: set on start; the arrival estimate only
//     moves through an explicit extend operation (additive).
//   - CompletedAt / CancelledAt: terminal timestamps.
type Trip struct {
	ID      string `json:"id"       gorm:"type:char(36);primaryKey"`
	OwnerID string `json:"owner_id" gorm:"type:varchar(64);not null;index:idx_owner_status,priority:1"`
	Status  string `json:"status"   gorm:"type:varchar(16);not null;default:'draft';index:idx_owner_status,priority:2;check:status IN ('draft','active','completed','cancelled','timeout','alerted')"`

	DepartureLat     *float64 `json:"departure_lat,omitempty"`
	DepartureLng     *float64 `json:"departure_lng,omitempty"`
	DepartureAddress string   `json:"departure_address,omitempty" gorm:"type:varchar(255)"`
	ArrivalLat       *float64 `json:"arrival_lat,omitempty"`
	ArrivalLng       *float64 `json:"arrival_lng,omitempty"`
	ArrivalAddress   string   `json:"arrival_address,omitempty"   gorm:"type:varchar(255)"`

	EstimatedDurationMin int        `json:"estimated_duration_min" gorm:"not null"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	EstimatedArrivalAt   *time.Time `json:"estimated_arrival_at,omitempty" gorm:"index"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CancelledAt          *time.Time `json:"cancelled_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Trip.
func (Trip) TableName() string { return "trips" }

// Alert represents one escalation event notifying trusted contacts.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - TripID: optional link to the escorted trip; manual alerts outside a trip
//     carry a nil TripID.
//   - OwnerID: the at-risk user; indexed for the per-owner burst cap.
//   - Type / Status: see Alert* constants.
//   - Reason: optional free text entered by the user.
//   - Lat/Lng, BatteryLevel: context captured at trigger time.
//   - TriggeredAt / AcknowledgedAt / ResolvedAt: lifecycle timestamps.
type Alert struct {
	ID      string  `json:"id"       gorm:"type:char(36);primaryKey"`
	TripID  *string `json:"trip_id,omitempty" gorm:"type:char(36);index"`
	OwnerID string  `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Type    string  `json:"type"     gorm:"type:varchar(16);not null;check:type IN ('manual','automatic','timeout')"`
	Status  string  `json:"status"   gorm:"type:varchar(16);not null;default:'triggered';check:status IN ('triggered','acknowledged','resolved','false_alarm')"`
	Reason  string  `json:"reason,omitempty" gorm:"type:varchar(500)"`

	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	BatteryLevel *int     `json:"battery_level,omitempty"`

	TriggeredAt    time.Time  `json:"triggered_at" gorm:"not null;index"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Alert.
func (Alert) TableName() string { return "alerts" }

// TrustedContact is a person registered to receive alerts for one owner.
//
// InvitationCount never exceeds MaxInvitationSends; resends reuse the existing
// token so previously shared links stay valid.
type TrustedContact struct {
	ID      string `json:"id"       gorm:"type:char(36);primaryKey"`
	OwnerID string `json:"owner_id" gorm:"type:varchar(64);not null;index"`
	Name    string `json:"name"     gorm:"type:varchar(120);not null"`
	Phone   string `json:"phone"    gorm:"type:varchar(20);not null"` // E.164

	NotifyBySMS  bool `json:"notify_by_sms"  gorm:"not null;default:true"`
	NotifyByPush bool `json:"notify_by_push" gorm:"not null;default:false"`
	IsPrimary    bool `json:"is_primary"     gorm:"not null;default:false"`

	InvitationToken    *string    `json:"-" gorm:"type:char(36);uniqueIndex"`
	InvitationSentAt   *time.Time `json:"invitation_sent_at,omitempty"`
	InvitationCount    int        `json:"invitation_count" gorm:"not null;default:0"`
	InvitationAccepted bool       `json:"invitation_accepted" gorm:"not null;default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for TrustedContact.
func (TrustedContact) TableName() string { return "trusted_contacts" }

// MaxInvitationSends caps how many times an invitation SMS may be sent to the
// same contact.
const MaxInvitationSends = 3

// VerificationCode is a short-lived secret bound to (owner, phone). Only the
// SHA-256 digest of the code is stored; the plaintext leaves the process in
// exactly one SMS.
//
// A record is usable only while VerifiedAt is nil, Attempts < MaxCodeAttempts,
// and the expiry has not passed.
type VerificationCode struct {
	ID         string     `json:"id"        gorm:"type:char(36);primaryKey"`
	OwnerID    string     `json:"owner_id"  gorm:"type:varchar(64);not null;index:idx_owner_phone,priority:1"`
	Phone      string     `json:"phone"     gorm:"type:varchar(20);not null;index:idx_owner_phone,priority:2"`
	CodeHash   string     `json:"-"         gorm:"type:char(64);not null"`
	ExpiresAt  time.Time  `json:"expires_at" gorm:"not null"`
	Attempts   int        `json:"attempts"   gorm:"not null;default:0"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for VerificationCode.
func (VerificationCode) TableName() string { return "verification_codes" }

// MaxCodeAttempts is the verification attempt budget per issued code.
const MaxCodeAttempts = 5

// LocationSample is a raw position report ingested while a trip is active.
// The newest sample for a trip gives the timeout alert its location context.
type LocationSample struct {
	ID           string    `json:"id"      gorm:"type:char(36);primaryKey"`
	TripID       string    `json:"trip_id" gorm:"type:char(36);not null;index:idx_trip_recorded,priority:1"`
	Lat          float64   `json:"lat"     gorm:"not null"`
	Lng          float64   `json:"lng"     gorm:"not null"`
	BatteryLevel *int      `json:"battery_level,omitempty"`
	RecordedAt   time.Time `json:"recorded_at" gorm:"not null;index:idx_trip_recorded,priority:2"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for LocationSample.
func (LocationSample) TableName() string { return "location_samples" }
