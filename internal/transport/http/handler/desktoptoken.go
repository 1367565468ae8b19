package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lab-access-api/internal/application/desktoptoken"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/transport/http/middleware"
)

// DesktopTokenHandler issues and validates the long-lived tokens the desktop
// agent stores on the machine.
type DesktopTokenHandler struct {
	svc desktoptoken.Service
}

func NewDesktopTokenHandler(svc desktoptoken.Service) *DesktopTokenHandler {
	return &DesktopTokenHandler{svc: svc}
}

type issuedDesktopTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue is session-bound: the subject comes from the cookie, never the body,
// so a client cannot mint tokens for someone else.
func (h *DesktopTokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	issued, err := h.svc.Issue(r.Context(), sess.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedDesktopTokenResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}

type validatedDesktopTokenResponse struct {
	Valid   bool        `json:"valid"`
	Subject string      `json:"subject"`
	Role    domain.Role `json:"role"`
}

func (h *DesktopTokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	payload, err := h.svc.Validate(r.Context(), req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validatedDesktopTokenResponse{
		Valid:   true,
		Subject: payload.SubjectID,
		Role:    payload.Role,
	})
}
