package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/YashMayekar/Resizer/internal/transport/handler"
)

func NewRouter(h *handler.Handler, log zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/", h.Root)

	r.Route("/api", func(r chi.Router) {
		r.Post("/resize", h.Resize)
		r.Route("/resize/{task_id}", func(r chi.Router) {
			r.Get("/progress", h.Progress)
			r.Get("/result", h.Result)
			r.Delete("/", h.Cancel)
		})
	})

	return r
}
