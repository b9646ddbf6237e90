package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter builds the full HTTP surface. Files under staticDir are served
// at /static/ and / redirects there; the file server answers a directory
// with its index.html.
func NewRouter(h *ActivityHandler, staticDir string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(logger))
	r.Use(CORS)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/static/", http.StatusTemporaryRedirect)
	})
	r.Get("/health", h.HealthCheck)

	r.Route("/activities", func(r chi.Router) {
		r.Get("/", h.ListActivities)
		r.Get("/{name}", h.GetActivity)
		r.Post("/{name}/signup", h.SignUp)
		r.Delete("/{name}/unregister", h.Unregister)
	})
	r.Get("/participants/{email}", h.GetParticipant)
	r.Put("/participants/{email}", h.RegisterParticipant)

	if staticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	return r
}
