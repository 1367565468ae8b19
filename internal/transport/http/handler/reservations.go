package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lab-access-api/internal/application/reservation"
	"github.com/lab-access-api/internal/pkg/validate"
)

// ReservationHandler pre-allocates upload ids for professor-managed activities.
type ReservationHandler struct {
	svc reservation.Service
}

func NewReservationHandler(svc reservation.Service) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

type createReservationRequest struct {
	ActivityID string `json:"activity_id" validate:"required"`
	StudentRut string `json:"student_rut" validate:"required"`
}

type reservationResponse struct {
	UploadID  string    `json:"upload_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	issued, err := h.svc.Issue(r.Context(), req.ActivityID, req.StudentRut)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reservationResponse{
		UploadID:  issued.UploadID,
		ExpiresAt: issued.ExpiresAt,
	})
}
