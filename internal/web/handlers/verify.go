package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/verifier"
)

// VerifyRequest is the body of POST /api/verify.
type VerifyRequest struct {
	Event      string `json:"event"`
	Token      string `json:"token"`
	FacialData string `json:"facial_data"`
}

// VerifyResponse reports the verification decision. Success is false on a
// non-match; the request itself still succeeded.
type VerifyResponse struct {
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	UserID         string    `json:"user_id"`
	Event          string    `json:"event"`
	Confidence     float64   `json:"confidence"`
	Timestamp      time.Time `json:"timestamp"`
	VerificationID string    `json:"verification_id"`
}

// Verify handles POST /api/verify.
func (h *FaceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	maxSize := h.svc.MaxFileSize()
	// Transport cap only. base64 inflates by 4/3 and JSON escaping of '/' or
	// line wrapping can double that again; the exact limit is enforced on the
	// decoded image.
	r.Body = http.MaxBytesReader(w, r.Body, verifyBodyLimit(maxSize))

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isTooLarge(err) {
			respondError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Image size must be less than %d bytes", maxSize))
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", errInvalidRequestBody)
		return
	}

	out, err := h.svc.VerifyEvent(r.Context(), verifier.VerifyRequest(req))
	if err != nil {
		h.respondServiceError(w, r, err, "Internal server error during face verification")
		return
	}

	msg := "Face verification failed"
	if out.IsMatch {
		msg = "Face verification successful"
	}
	respondJSON(w, http.StatusOK, VerifyResponse{
		Success:        out.IsMatch,
		Message:        msg,
		UserID:         out.Identity,
		Event:          out.Event,
		Confidence:     facematch.ClampConfidence(out.Confidence),
		Timestamp:      now(),
		VerificationID: out.VerificationID,
	})
}

func verifyBodyLimit(maxSize int64) int64 {
	return 3*maxSize + constants.MultipartOverhead
}
