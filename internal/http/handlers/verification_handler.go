// Phone verification HTTP handlers.
//
// This file exposes the OTP endpoints:
//   - POST /verification/codes   (issue: text a 6-digit code)
//   - POST /verification/verify  (burn one attempt, report the boolean)
//
// A wrong code is a normal outcome ({"verified": false}), not an error; only
// structural failures (expired record, exhausted attempts, provider outage)
// surface as error envelopes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// IssueCodeRequest is the JSON payload for requesting a verification code.
type IssueCodeRequest struct {
	// Phone is the destination in E.164 form.
	Phone string `json:"phone" binding:"required" example:"+33612345678"`
}

// IssueCodeResponse acknowledges an issued code. The code itself travels only
// in the SMS.
type IssueCodeResponse struct {
	ID        string `json:"id"`
	ExpiresAt string `json:"expires_at"`
}

// VerifyCodeRequest is the JSON payload for checking a submitted code.
type VerifyCodeRequest struct {
	Phone string `json:"phone" binding:"required" example:"+33612345678"`
	// Code is the 6-digit string from the SMS.
	Code string `json:"code" binding:"required,len=6" example:"042517"`
}

// VerifyCodeResponse reports the verification outcome.
type VerifyCodeResponse struct {
	Verified bool `json:"verified"`
}

// IssueCode godoc
// @ID          issueCode
// @Summary     Send a phone verification code
// @Description Texts a fresh 6-digit code to the phone and stores its digest. Capped at 3 codes per 10 minutes per phone.
// @Tags        Verification
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IssueCodeRequest  true  "Destination phone"
//
// @Success     201  {object}  handlers.IssueCodeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Phone not E.164"
// @Failure     429  {object}  handlers.ErrorResponse  "Issuance cap reached"
// @Failure     502  {object}  handlers.ErrorResponse  "SMS provider failure"
// @Router      /verification/codes [post]
func (h *Handlers) IssueCode(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req IssueCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone required")
		return
	}

	vc, err := h.codeSvc.Issue(c.Request.Context(), uid, req.Phone)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, IssueCodeResponse{
		ID:        vc.ID,
		ExpiresAt: vc.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
}

// VerifyCode godoc
// @ID          verifyCode
// @Summary     Verify a phone verification code
// @Description Burns one attempt against the latest usable code. A mismatch answers verified=false with status 200.
// @Tags        Verification
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.VerifyCodeRequest  true  "Phone and code"
//
// @Success     200  {object}  handlers.VerifyCodeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid payload"
// @Failure     404  {object}  handlers.ErrorResponse  "No usable code"
// @Failure     429  {object}  handlers.ErrorResponse  "Attempt budget exhausted"
// @Router      /verification/verify [post]
func (h *Handlers) VerifyCode(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phone and 6-digit code required")
		return
	}

	verified, err := h.codeSvc.Verify(c.Request.Context(), uid, req.Phone, req.Code)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, VerifyCodeResponse{Verified: verified})
}
