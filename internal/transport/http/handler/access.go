package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lab-access-api/internal/application/session"
	"github.com/lab-access-api/internal/application/verification"
	"github.com/lab-access-api/internal/domain"
	"github.com/lab-access-api/internal/transport/http/middleware"
)

// AccessHandler bridges an anonymous visitor through email verification into
// an authenticated student session.
type AccessHandler struct {
	codes    verification.Service
	sessions session.Service
}

func NewAccessHandler(codes verification.Service, sessions session.Service) *AccessHandler {
	return &AccessHandler{codes: codes, sessions: sessions}
}

type requestCodeResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

type verifyCodeResponse struct {
	SessionID         string `json:"session_id,omitempty"`
	Error             string `json:"error,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

func (h *AccessHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req verification.RequestCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	expiresIn, err := h.codes.Request(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestCodeResponse{
		Message:   "code sent",
		ExpiresIn: int(expiresIn.Seconds()),
	})
}

func (h *AccessHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verification.VerifyCodeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload, err := h.codes.Verify(r.Context(), req)
	if err != nil {
		var wrong *verification.WrongCodeError
		if errors.As(err, &wrong) {
			writeJSON(w, http.StatusUnauthorized, verifyCodeResponse{
				Error:             "wrong code",
				RemainingAttempts: &wrong.Remaining,
			})
			return
		}
		if errors.Is(err, domain.ErrAttemptsExhausted) {
			zero := 0
			writeJSON(w, http.StatusUnauthorized, verifyCodeResponse{
				Error:             "attempts exhausted, request a new code",
				RemainingAttempts: &zero,
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	// The subject id for a verified visitor is the email until the roster
	// links a rut; the platform does that on first submission.
	sess, err := h.sessions.CreateStudent(r.Context(), payload.Email, payload.Email, payload.ActivityID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    sess.SessionID,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, verifyCodeResponse{SessionID: sess.SessionID})
}
