package handlers

import (
	"net/http"
	"time"
)

// HealthResponse reports liveness and the number of enrolled users.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	EnrolledUsers int       `json:"enrolled_users"`
}

// Health handles the health check endpoint.
func (h *FaceHandler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Timestamp:     now(),
		EnrolledUsers: h.svc.Count(),
	})
}
