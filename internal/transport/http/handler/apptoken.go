package handler

import (
	"encoding/json"
	"net/http"

	"github.com/lab-access-api/internal/application/apptoken"
)

// AppTokenHandler issues and validates the short-lived tokens the lab
// application exchanges its session for.
type AppTokenHandler struct {
	svc apptoken.Service
}

func NewAppTokenHandler(svc apptoken.Service) *AppTokenHandler {
	return &AppTokenHandler{svc: svc}
}

type issueAppTokenRequest struct {
	SessionID string `json:"session_id"`
}

type issuedTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (h *AppTokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueAppTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	issued, err := h.svc.Issue(r.Context(), req.SessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issuedTokenResponse{
		Token:     issued.Token,
		ExpiresIn: int(issued.ExpiresIn.Seconds()),
	})
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validatedAppTokenResponse struct {
	Valid         bool   `json:"valid"`
	SubjectEmail  string `json:"subject_email"`
	ActivityID    string `json:"activity_id"`
	TimeRemaining int    `json:"time_remaining"`
}

func (h *AppTokenHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	res, err := h.svc.Validate(r.Context(), req.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validatedAppTokenResponse{
		Valid:         true,
		SubjectEmail:  res.Payload.SubjectEmail,
		ActivityID:    res.Payload.ActivityID,
		TimeRemaining: int(res.TimeRemaining.Seconds()),
	})
}
