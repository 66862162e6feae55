package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// UsersResponse lists enrolled identities.
type UsersResponse struct {
	EnrolledUsers []string  `json:"enrolled_users"`
	Count         int       `json:"count"`
	Timestamp     time.Time `json:"timestamp"`
}

// DeleteResponse confirms removal of an identity's templates.
type DeleteResponse struct {
	Message   string    `json:"message"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ListUsers returns every enrolled identity.
func (h *FaceHandler) ListUsers(w http.ResponseWriter, _ *http.Request) {
	users := h.svc.Users()
	if users == nil {
		users = []string{}
	}
	respondJSON(w, http.StatusOK, UsersResponse{
		EnrolledUsers: users,
		Count:         len(users),
		Timestamp:     now(),
	})
}

// DeleteUser removes all templates stored for the user_id path parameter.
func (h *FaceHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	if err := h.svc.Delete(r.Context(), userID); err != nil {
		h.respondServiceError(w, r, err, "Internal server error during deletion")
		return
	}

	respondJSON(w, http.StatusOK, DeleteResponse{
		Message:   fmt.Sprintf("Face encodings deleted for user %s", userID),
		UserID:    userID,
		Timestamp: now(),
	})
}
