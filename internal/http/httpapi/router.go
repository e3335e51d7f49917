package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"promptsmith/internal/http/handlers"
	"promptsmith/internal/middleware"
)

func NewRouter(app *handlers.App, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	var origins []string
	rateLimit := 0
	if app.Config != nil {
		origins = app.Config.CORSAllowedOrigins
		rateLimit = app.Config.RateLimitPerMin
	}

	r.Use(
		middleware.RequestID(logger),
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(origins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Route("/credential", func(r chi.Router) {
			r.Get("/", app.CredentialGet)
			r.Put("/", app.CredentialPut)
		})

		r.Route("/images", func(r chi.Router) {
			r.Post("/", app.ImageUpload)
			r.Delete("/", app.ImageClear)
			r.Get("/preview/{ref}", app.ImagePreview)
		})

		r.With(middleware.RateLimit(rateLimit, time.Minute)).Post("/generate", app.Generate)
		r.Get("/generation", app.GenerationGet)
		r.Get("/generation/export", app.GenerationExport)
	})

	return r
}
