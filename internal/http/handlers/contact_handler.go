// Trusted-contact HTTP handlers.
//
// This file exposes REST endpoints for trusted contacts and their
// invitations:
//   - POST /contacts                      (register)
//   - GET  /contacts                      (list, primary first)
//   - GET  /contacts/{id}                (fetch)
//   - POST /contacts/{id}/invitations    (send or resend the invite SMS)
//   - POST /invitations/{token}/accept   (public: recipient accepts)
//
// The accept endpoint is mounted outside the authenticated group because the
// recipient is not (yet) a user; the single-use token is the credential.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monjodav/prudency-backend/internal/domain"
	"github.com/monjodav/prudency-backend/internal/services"
)

// CreateContactRequest is the JSON payload for registering a trusted contact.
type CreateContactRequest struct {
	// Name is the display name (1–120 chars after trimming).
	Name string `json:"name" binding:"required" example:"Maria Lopez"`
	// Phone is the contact's number in E.164 form.
	Phone string `json:"phone" binding:"required" example:"+34699111222"`

	NotifyBySMS  *bool `json:"notify_by_sms,omitempty"`
	NotifyByPush *bool `json:"notify_by_push,omitempty"`
	IsPrimary    bool  `json:"is_primary,omitempty"`
}

// ListContactsResponse wraps the owner's contacts.
type ListContactsResponse struct {
	Contacts []domain.TrustedContact `json:"contacts"`
}

// CreateContact godoc
// @ID          createContact
// @Summary     Register a trusted contact
// @Tags        Contacts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateContactRequest  true  "Contact payload"
//
// @Success     201  {object}  domain.TrustedContact
// @Failure     400  {object}  handlers.ErrorResponse  "Missing name or invalid phone"
// @Router      /contacts [post]
func (h *Handlers) CreateContact(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name and phone required")
		return
	}

	in := services.CreateContactInput{
		Name:      req.Name,
		Phone:     req.Phone,
		IsPrimary: req.IsPrimary,
		// SMS on, push off unless the payload says otherwise.
		NotifyBySMS:  true,
		NotifyByPush: false,
	}
	if req.NotifyBySMS != nil {
		in.NotifyBySMS = *req.NotifyBySMS
	}
	if req.NotifyByPush != nil {
		in.NotifyByPush = *req.NotifyByPush
	}

	contact, err := h.contactSvc.Create(c.Request.Context(), uid, in)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusCreated, contact)
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List trusted contacts
// @Tags        Contacts
// @Produce     json
//
// @Success     200  {object}  handlers.ListContactsResponse
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}

	contacts, err := h.contactSvc.List(c.Request.Context(), uid)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, ListContactsResponse{Contacts: contacts})
}

// GetContact godoc
// @ID          getContact
// @Summary     Fetch a trusted contact
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  string  true  "Contact ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.TrustedContact
// @Failure     403  {object}  handlers.ErrorResponse  "Not the contact owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Contact not found"
// @Router      /contacts/{id} [get]
func (h *Handlers) GetContact(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "contact")
	if !okID {
		return
	}

	contact, err := h.contactSvc.Get(c.Request.Context(), uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, contact)
}

// SendInvitation godoc
// @ID          sendInvitation
// @Summary     Send (or resend) a contact invitation
// @Description Texts the invitation link. At most 3 sends per contact with cooldowns of 0s, 2m, then 1h; resends reuse the original token.
// @Tags        Contacts
// @Produce     json
//
// @Param       id  path  string  true  "Contact ID (UUID)"  format(uuid)
//
// @Success     200  {object}  domain.TrustedContact
// @Failure     403  {object}  handlers.ErrorResponse  "Not the contact owner"
// @Failure     404  {object}  handlers.ErrorResponse  "Contact not found"
// @Failure     429  {object}  handlers.ErrorResponse  "Cooldown running or send limit reached"
// @Failure     502  {object}  handlers.ErrorResponse  "SMS provider failure"
// @Router      /contacts/{id}/invitations [post]
func (h *Handlers) SendInvitation(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := pathUUID(c, "id", "contact")
	if !okID {
		return
	}

	contact, err := h.inviteSvc.Send(c.Request.Context(), uid, id)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, contact)
}

// AcceptInvitation godoc
// @ID          acceptInvitation
// @Summary     Accept a contact invitation
// @Description Resolves the invitation token, marks the contact accepted, and burns the token. Unauthenticated: the token is the credential.
// @Tags        Contacts
// @Produce     json
//
// @Param       token  path  string  true  "Invitation token"
//
// @Success     200  {object}  domain.TrustedContact
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown or already used token"
// @Router      /invitations/{token}/accept [post]
func (h *Handlers) AcceptInvitation(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "token required")
		return
	}

	contact, err := h.inviteSvc.Accept(c.Request.Context(), token)
	if err != nil {
		failFromService(c, err)
		return
	}
	ok(c, http.StatusOK, contact)
}
