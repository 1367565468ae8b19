package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lab-access-api/internal/application/reservation"
)

const maxUploadMemory = 32 << 20 // 32 MiB before multipart spills to disk

// UploadHandler redeems a reserved upload id with the submitted files.
type UploadHandler struct {
	svc reservation.Service
}

func NewUploadHandler(svc reservation.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

type uploadResponse struct {
	UploadID   string `json:"upload_id"`
	ActivityID string `json:"activity_id"`
	Files      int    `json:"files"`
}

func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")
	if uploadID == "" {
		writeError(w, http.StatusBadRequest, "upload id is required")
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	files := make([]reservation.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		defer f.Close()
		files = append(files, reservation.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	res, err := h.svc.Consume(r.Context(), uploadID, files)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		UploadID:   res.UploadID,
		ActivityID: res.ActivityID,
		Files:      len(files),
	})
}
