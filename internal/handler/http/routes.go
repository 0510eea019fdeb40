package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Post("/api/auth/magic-link", h.requestMagicLink)
		r.Post("/api/auth/verify", h.verify)
	})

	// routes behind a session token
	router.Group(func(r chi.Router) {
		r.Use(h.withAuth)

		r.Get("/api/auth/validate", h.validate)
		r.Post("/api/auth/logout", h.logout)

		r.Post("/api/sync/pull", h.pull)
		r.Post("/api/sync/push", h.push)

		r.Post("/api/images/presign-upload", h.presignUpload)
		r.Put("/api/images/upload/{hash}", h.uploadImage)
		r.Get("/api/images/check/{hash}", h.checkImage)
		r.Get("/api/images/{hash}", h.downloadImage)
	})

	return router
}
