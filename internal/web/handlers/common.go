// Package handlers implements the face authentication HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/verifier"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// FaceService is the verifier API the handlers depend on.
type FaceService interface {
	Enroll(ctx context.Context, req verifier.EnrollRequest) (*verifier.EnrollmentOutcome, error)
	VerifyEvent(ctx context.Context, req verifier.VerifyRequest) (*verifier.VerificationOutcome, error)
	Delete(ctx context.Context, identity string) error
	Users() []string
	Count() int
	MaxFileSize() int64
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// FaceHandler serves enrollment, verification and administration endpoints.
type FaceHandler struct {
	svc    FaceService
	logger *slog.Logger
}

// NewFaceHandler creates a new face handler.
func NewFaceHandler(svc FaceService, logger *slog.Logger) *FaceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FaceHandler{svc: svc, logger: logger}
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

func now() time.Time {
	return time.Now().UTC()
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: now(),
	})
}

// statusForKind maps verifier error kinds to HTTP status codes and error codes.
func statusForKind(kind verifier.Kind) (int, string) {
	switch kind {
	case verifier.KindValidation:
		return http.StatusBadRequest, "validation_error"
	case verifier.KindTooLarge:
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case verifier.KindAuth:
		return http.StatusUnauthorized, "authentication_error"
	case verifier.KindNoFace:
		return http.StatusBadRequest, "face_not_detected"
	case verifier.KindNotFound:
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// respondServiceError translates a verifier error. Internal errors are logged
// with full detail and answered with internalMsg only.
func (h *FaceHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	kind := verifier.KindOf(err)
	status, code := statusForKind(kind)

	if kind == verifier.KindInternal {
		h.logger.ErrorContext(r.Context(), internalMsg, "path", sanitizeForLog(r.URL.Path), "error", err)
		respondError(w, status, code, internalMsg)
		return
	}
	respondError(w, status, code, verifier.Message(err))
}

// isTooLarge reports whether err came from an http.MaxBytesReader limit.
func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return true
	}
	// Some multipart paths flatten the error to its message.
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
