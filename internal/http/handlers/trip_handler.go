// Trip HTTP handlers.
//
// This file exposes REST endpoints for trip resources:
//   - POST   /trips                  (start)
//   - GET    /trips                  (list, paginated)
//   - GET    /trips/{id}            (fetch)
//   - POST   /trips/{id}/extend     (push the arrival estimate)
//   - POST   /trips/{id}/complete   (identity-gated safe arrival)
//   - POST   /trips/{id}/cancel     (abort with contact notice)
//   - POST   /trips/{id}/locations  (raw position ingestion)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. All state-machine decisions stay
// in the services.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/services"
	"github.com/monjodav/prudency-backend/internal/sweep"
	"github.com/monjodav/prudency-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// TripService defines trip lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type TripService interface {
	// Start creates an active trip with a computed arrival estimate.
	Start(ctx context.Context, ownerID string, in services.StartTripInput) (*domain.Trip, error)
	// Get returns a trip owned by ownerID.
	Get(ctx context.Context, ownerID, tripID string) (*domain.Trip, error)
	// ListPage returns a page of the owner's trips and the total count.
	ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Trip, int64, error)
	// Extend pushes the arrival estimate forward by whole minutes.
	Extend(ctx context.Context, ownerID, tripID string, minutes int) (*domain.Trip, error)
	// Complete marks safe arrival after identity confirmation.
	Complete(ctx context.Context, ownerID, tripID, proof string) (*domain.Trip, error)
	// Cancel aborts the trip and notifies contacts best-effort.
	Cancel(ctx context.Context, ownerID, tripID string) (*domain.Trip, error)
	// RecordLocation ingests one raw position sample, rate gated per trip.
	RecordLocation(ctx context.Context, ownerID, tripID string, lat, lng float64, battery *int, recordedAt time.Time) error
}

// AlertService defines alert lifecycle operations consumed by HTTP handlers.
type AlertService interface {
	// Create persists a manual or automatic alert and dispatches async.
	Create(ctx context.Context, ownerID string, in services.CreateAlertInput) (*domain.Alert, error)
	// Get returns an alert owned by ownerID.
	Get(ctx context.Context, ownerID, alertID string) (*domain.Alert, error)
	// ListPage returns a page of the owner's alerts and the total count.
	ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.Alert, int64, error)
	// Acknowledge moves triggered → acknowledged.
	Acknowledge(ctx context.Context, alertID string) (*domain.Alert, error)
	// Resolve closes the alert as resolved or false_alarm.
	Resolve(ctx context.Context, alertID, outcome string) (*domain.Alert, error)
}

// VerificationService defines OTP issuance and verification operations.
type VerificationService interface {
	// Issue texts a fresh code to phone and persists its digest.
	Issue(ctx context.Context, ownerID, phone string) (*domain.VerificationCode, error)
	// Verify burns one attempt and reports whether the code matched.
	Verify(ctx context.Context, ownerID, phone, code string) (bool, error)
}

// ContactService defines trusted-contact management operations.
type ContactService interface {
	// Create registers a trusted contact for ownerID.
	Create(ctx context.Context, ownerID string, in services.CreateContactInput) (*domain.TrustedContact, error)
	// List returns all of the owner's contacts, primary first.
	List(ctx context.Context, ownerID string) ([]domain.TrustedContact, error)
	// Get returns a contact owned by ownerID.
	Get(ctx context.Context, ownerID, contactID string) (*domain.TrustedContact, error)
}

// InviteService defines invitation send/accept operations.
type InviteService interface {
	// Send texts (or re-texts) the invitation link to the contact.
	Send(ctx context.Context, callerID, contactID string) (*domain.TrustedContact, error)
	// Accept resolves a token to its contact and burns it.
	Accept(ctx context.Context, token string) (*domain.TrustedContact, error)
}

// SweepRunner triggers one timeout sweep on demand (internal endpoint).
type SweepRunner interface {
	RunOnce(ctx context.Context) (*sweep.Result, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for trips, alerts, verification codes,
// contacts, and invitations. It depends on abstract service interfaces to
// keep transport concerns separate from business logic.
type Handlers struct {
	tripSvc    TripService
	alertSvc   AlertService
	codeSvc    VerificationService
	contactSvc ContactService
	inviteSvc  InviteService
	sweeper    SweepRunner
}

// New constructs a Handlers instance bound to the given services.
func New(trips TripService, alerts AlertService, codes VerificationService, contacts ContactService, invites InviteService, sweeper SweepRunner) *Handlers {
	return &Handlers{
		tripSvc:    trips,
		alertSvc:   alerts,
		codeSvc:    codes,
		contactSvc: contacts,
		inviteSvc:  invites,
		sweeper:    sweeper,
	}
}

// userID extracts the authenticated user id from the Gin context (set by the
// auth middleware). Tests may fall back to the "X-User-ID" header. An empty
// result means the auth middleware was not installed on the route; handlers
// treat that as unauthorized rather than inventing an identity.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := c.GetHeader("X-User-ID"); h != "" {
			return h
		}
	}
	return ""
}

// requireUser returns the caller identity or writes a 401 and reports false.
func requireUser(c *gin.Context) (string, bool) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return "", false
	}
	return uid, true
}

//
// DTOs
//

// StartTripRequest is the JSON payload for starting a trip.
type StartTripRequest struct {
	DepartureLat     *float64 `json:"departure_lat,omitempty" example:"48.8566"`
	DepartureLng     *float64 `json:"departure_lng,omitempty" example:"2.3522"`
	DepartureAddress string   `json:"departure_address,omitempty" example:"12 Rue de Rivoli, Paris"`
	ArrivalLat       *float64 `json:"arrival_lat,omitempty" example:"48.8606"`
	ArrivalLng       *float64 `json:"arrival_lng,omitempty" example:"2.3376"`
	ArrivalAddress   string   `json:"arrival_address,omitempty" example:"Rue de Louvre, Paris"`
	// EstimatedDurationMin is the journey length in minutes (5–480).
	EstimatedDurationMin int `json:"estimated_duration_min" binding:"required" example:"30"`
}

// ExtendTripRequest is the JSON payload for pushing the arrival estimate.
type ExtendTripRequest struct {
	// AdditionalMinutes is added to the current arrival estimate.
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1,max=480" example:"15"`
}

// CompleteTripRequest carries the identity proof for safe-arrival completion.
type CompleteTripRequest struct {
	// Proof is the password or biometric assertion forwarded to the
	// identity confirmer; it is never persisted.
	Proof string `json:"proof" binding:"required"`
}

// RecordLocationRequest is the JSON payload for one raw position sample.
type RecordLocationRequest struct {
	// Zero is a legal coordinate, so presence is not enforced via binding.
	Lat float64 `json:"lat" binding:"min=-90,max=90"   example:"48.8566"`
	Lng float64 `json:"lng" binding:"min=-180,max=180" example:"2.3522"`

	BatteryLevel *int       `json:"battery_level,omitempty" example:"76"`
	RecordedAt   *time.Time `json:"recorded_at,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListTripsResponse wraps a page of trips and pagination information.
type ListTripsResponse struct {
	Trips      []domain.Trip `json:"trips"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginate assembles the Pagination block for a page of total items.
func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// pathUUID validates that the :id path param is a UUID and returns it.
func pathUUID(c *gin.Context, name, what string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// StartTrip godoc
// @ID          startTrip
// @Summary     Start a trip
// @Description Creates an active trip with an arrival estimate of now plus the estimated duration. At most one trip per user may be in flight.
// @Tags        Trips
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.StartTripRequest  true  "Trip parameters"
//
// @Success     201  {object}  domain.Trip
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid duration or endpoints"
// @Failure     409  {object}  handlers.ErrorResponse  "Another trip is in progress"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /trips [post]
func (h *Handlers) StartTrip(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	trip, err := h.tripSvc.Start(c.Request.Context(), uid, services.StartTripInput{
		DepartureLat:     req.DepartureLat,
		DepartureLng:     req.DepartureLng,
		DepartureAddress: req.DepartureAddress,
		ArrivalLat:       req.ArrivalLat,
		ArrivalLng:       req.ArrivalLng,
		ArrivalAddress:   req.ArrivalAddress,
		DurationMinutes:  req.EstimatedDurationMin,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, trip)
}

// ListTrips godoc
// @ID          listTrips
// @Summary     List trips (paginated)
// @Description Returns a page of the user's trips, newest first.
// @Tags        Trips
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListTripsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /trips [get]
func (h *Handlers) ListTrips(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.tripSvc.ListPage(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListTripsResponse{Trips: items, Pagination: paginate(page, pageSize, total)})
}

// GetTrip godoc
// @ID          getTrip
// @Summary     Fetch a trip
// @Tags        Trips
// @Produce     json
//
// @Param       id  path  string  true  "Trip ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Trip
// @Failure     404  {object}  handlers.ErrorResponse  "Trip not found"
// @Router      /trips/{id} [get]
func (h *Handlers) GetTrip(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "trip")
	if !okID {
		return
	}

	trip, err := h.tripSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// ExtendTrip godoc
// @ID          extendTrip
// @Summary     Extend a trip
// @Description Pushes the arrival estimate forward by additional_minutes. Only active trips may be extended.
// @Tags        Trips
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Trip ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ExtendTripRequest  true  "Extension"
//
// @Success     200  {object}  domain.Trip
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse  "Trip not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Trip is not active"
// @Router      /trips/{id}/extend [post]
func (h *Handlers) ExtendTrip(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "trip")
	if !okID {
		return
	}
	var req ExtendTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "additional_minutes required (1–480)")
		return
	}

	trip, err := h.tripSvc.Extend(c.Request.Context(), uid, id, req.AdditionalMinutes)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// CompleteTrip godoc
// @ID          completeTrip
// @Summary     Complete a trip (safe arrival)
// @Description Marks the trip completed after the identity proof is confirmed. An alerted trip may still be completed.
// @Tags        Trips
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Trip ID (UUID)"  format(uuid)
// @Param       body  body  handlers.CompleteTripRequest  true  "Identity proof"
//
// @Success     200  {object}  domain.Trip
// @Failure     403  {object}  handlers.ErrorResponse  "Identity confirmation failed"
// @Failure     404  {object}  handlers.ErrorResponse  "Trip not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Trip already terminal"
// @Router      /trips/{id}/complete [post]
func (h *Handlers) CompleteTrip(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "trip")
	if !okID {
		return
	}
	var req CompleteTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "proof required")
		return
	}

	trip, err := h.tripSvc.Complete(c.Request.Context(), uid, id, req.Proof)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// CancelTrip godoc
// @ID          cancelTrip
// @Summary     Cancel a trip
// @Description Cancels an active or alerted trip and notifies contacts best-effort.
// @Tags        Trips
// @Produce     json
//
// @Param       id  path  string  true  "Trip ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Trip
// @Failure     404  {object}  handlers.ErrorResponse  "Trip not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Trip already terminal"
// @Router      /trips/{id}/cancel [post]
func (h *Handlers) CancelTrip(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "trip")
	if !okID {
		return
	}

	trip, err := h.tripSvc.Cancel(c.Request.Context(), uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, trip)
}

// RecordLocation godoc
// @ID          recordLocation
// @Summary     Ingest a raw location sample
// @Description Stores one position report for an in-flight trip. Accepted at most once per 5s window per trip.
// @Tags        Trips
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Trip ID (UUID)"  format(uuid)
// @Param       body  body  handlers.RecordLocationRequest  true  "Position sample"
//
// @Success     202  {string}  string  "Accepted"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid coordinates"
// @Failure     404  {object}  handlers.ErrorResponse  "Trip not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Trip not in flight"
// @Failure     429  {object}  handlers.ErrorResponse  "Sample window not elapsed"
// @Router      /trips/{id}/locations [post]
func (h *Handlers) RecordLocation(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "trip")
	if !okID {
		return
	}
	var req RecordLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "lat and lng required")
		return
	}
	if req.BatteryLevel != nil && (*req.BatteryLevel < 0 || *req.BatteryLevel > 100) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "battery_level must be 0–100")
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = req.RecordedAt.UTC()
	}
	if err := h.tripSvc.RecordLocation(c.Request.Context(), uid, id, req.Lat, req.Lng, req.BatteryLevel, recordedAt); err != nil {
		failFromService(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
