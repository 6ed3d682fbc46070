// Alert HTTP handlers.
//
// This file exposes REST endpoints for alert resources:
//   - POST  /alerts                    (create manual/automatic)
//   - GET   /alerts                    (list, paginated)
//   - GET   /alerts/{id}              (fetch)
//   - POST  /alerts/{id}/acknowledge  (guardian took over)
//   - POST  /alerts/{id}/resolve      (close as resolved or false_alarm)
//
// Timeout alerts never enter through this surface; the sweep mints them.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/observability"
	"github.com/monjodav/prudency-backend/internal/services"
)

// CreateAlertRequest is the JSON payload for creating an alert.
type CreateAlertRequest struct {
	// Type is "manual" (long-press trigger) or "automatic".
	Type string `json:"type" binding:"required,oneof=manual automatic" example:"manual"`
	// TripID optionally binds the alert to an in-flight trip.
	TripID *string `json:"trip_id,omitempty" format:"uuid"`
	// Reason is optional free text, truncated to 500 characters.
	Reason string `json:"reason,omitempty" example:"followed since the metro exit"`

	Lat          *float64 `json:"lat,omitempty" example:"48.8566"`
	Lng          *float64 `json:"lng,omitempty" example:"2.3522"`
	BatteryLevel *int     `json:"battery_level,omitempty" example:"34"`
}

// ResolveAlertRequest selects the terminal outcome for an alert.
type ResolveAlertRequest struct {
	// Outcome is "resolved" or "false_alarm".
	Outcome string `json:"outcome" binding:"required,oneof=resolved false_alarm" example:"resolved"`
}

// ListAlertsResponse wraps a page of alerts and pagination information.
type ListAlertsResponse struct {
	Alerts     []domain.Alert `json:"alerts"`
	Pagination Pagination     `json:"pagination"`
}

// CreateAlert godoc
// @ID          createAlert
// @Summary     Trigger an alert
// @Description Creates a manual or automatic alert and fans out notifications asynchronously. Capped at 10 alerts per user per minute.
// @Tags        Alerts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateAlertRequest  true  "Alert payload"
//
// @Success     201  {object}  domain.Alert
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid type"
// @Failure     404  {object}  handlers.ErrorResponse  "Referenced trip not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Burst cap reached"
// @Router      /alerts [post]
func (h *Handlers) CreateAlert(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be manual or automatic")
		return
	}
	if req.BatteryLevel != nil && (*req.BatteryLevel < 0 || *req.BatteryLevel > 100) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "battery_level must be 0–100")
		return
	}

	alert, err := h.alertSvc.Create(c.Request.Context(), uid, services.CreateAlertInput{
		Type:         req.Type,
		TripID:       req.TripID,
		Reason:       req.Reason,
		Lat:          req.Lat,
		Lng:          req.Lng,
		BatteryLevel: req.BatteryLevel,
	})
	if err != nil {
		failFromService(c, err)
		return
	}
	observability.AlertCreated(alert.Type)
	ok(c, http.StatusCreated, alert)
}

// ListAlerts godoc
// @ID          listAlerts
// @Summary     List alerts (paginated)
// @Description Returns a page of the user's alerts, newest first.
// @Tags        Alerts
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListAlertsResponse
// @Router      /alerts [get]
func (h *Handlers) ListAlerts(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)

	items, total, err := h.alertSvc.ListPage(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListAlertsResponse{Alerts: items, Pagination: paginate(page, pageSize, total)})
}

// GetAlert godoc
// @ID          getAlert
// @Summary     Fetch an alert
// @Tags        Alerts
// @Produce     json
//
// @Param       id  path  string  true  "Alert ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Alert
// @Failure     403  {object}  handlers.ErrorResponse  "Not the alert owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Alert not found"
// @Router      /alerts/{id} [get]
func (h *Handlers) GetAlert(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "alert")
	if !okID {
		return
	}

	alert, err := h.alertSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, alert)
}

// AcknowledgeAlert godoc
// @ID          acknowledgeAlert
// @Summary     Acknowledge an alert
// @Description Records that a guardian has taken over. Valid only from the triggered state.
// @Tags        Alerts
// @Produce     json
//
// @Param       id  path  string  true  "Alert ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.Alert
// @Failure     404  {object}  handlers.ErrorResponse  "Alert not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Alert not in triggered state"
// @Router      /alerts/{id}/acknowledge [post]
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	if _, okUser := requireUser(c); !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "alert")
	if !okID {
		return
	}

	alert, err := h.alertSvc.Acknowledge(c.Request.Context(), id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, alert)
}

// ResolveAlert godoc
// @ID          resolveAlert
// @Summary     Resolve an alert
// @Description Closes the alert. "resolved" requires a prior acknowledgment; "false_alarm" may close a triggered alert directly.
// @Tags        Alerts
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Alert ID (UUID)"  format(uuid)
// @Param       body  body  handlers.ResolveAlertRequest  true  "Outcome"
//
// @Success     200  {object}  domain.Alert
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid outcome"
// @Failure     404  {object}  handlers.ErrorResponse  "Alert not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Transition not allowed"
// @Router      /alerts/{id}/resolve [post]
func (h *Handlers) ResolveAlert(c *gin.Context) {
	if _, okUser := requireUser(c); !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "alert")
	if !okID {
		return
	}
	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "outcome must be resolved or false_alarm")
		return
	}

	alert, err := h.alertSvc.Resolve(c.Request.Context(), id, req.Outcome)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, alert)
}
