package web

import (
	"github.com/go-chi/chi/v5"
)

func (s *Server) setupRoutes() {
	h := s.faceHandler

	s.router.Route("/api", func(r chi.Router) {
		// Image-carrying endpoints are rate limited per client.
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/enroll", h.Enroll)
			r.Post("/verify", h.Verify)
		})

		r.Delete("/enroll/{user_id}", h.DeleteUser)
		r.Get("/users", h.ListUsers)
		r.Get("/health", h.Health)
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
}
