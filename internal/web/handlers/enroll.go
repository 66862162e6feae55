package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

// EnrollResponse confirms a stored enrollment.
type EnrollResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Templates int       `json:"templates"`
	Persisted bool      `json:"persisted"`
}

// Enroll handles POST /api/enroll?user_id=<id> with a multipart "file" field.
func (h *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	maxSize := h.svc.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+constants.MultipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Image size must be less than %d bytes", maxSize))
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", "failed to parse multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "file is required")
		return
	}
	defer file.Close()

	// Read one byte past the limit so oversized files are detected without
	// trusting the part's declared size.
	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "failed to read file")
		return
	}

	userID := r.URL.Query().Get("user_id")
	out, err := h.svc.Enroll(r.Context(), verifier.EnrollRequest{
		Identity:    userID,
		ContentType: header.Header.Get("Content-Type"),
		Image:       data,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "Internal server error during face enrollment")
		return
	}

	respondJSON(w, http.StatusOK, EnrollResponse{
		Success:   true,
		Message:   "Face enrolled successfully",
		UserID:    out.Identity,
		Timestamp: now(),
		Templates: out.Templates,
		Persisted: out.Persisted,
	})
}
