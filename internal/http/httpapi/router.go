package httpapi

import (
	"net/http"
	"time"

	"schemagen/internal/http/handlers"
	"schemagen/internal/infra"
	"schemagen/internal/infra/geoip"
	appmw "schemagen/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options carries the cross-cutting pieces the router needs besides the
// handlers themselves.
type Options struct {
	Logger          *infra.Logger
	Countries       geoip.CountryResolver
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		middleware.Recoverer,
		appmw.Logger(opts.Logger, opts.Countries),
		appmw.CORS(opts.CORSOrigins),
	)

	r.Get("/healthz", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		// Each generation call starts a paid assistant run.
		r.Use(appmw.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/generate", app.Generate)
		r.Post("/regenerate", app.Regenerate)
		r.Post("/jobs/resume", app.ResumeJob)
	})

	r.Route("/results", func(r chi.Router) {
		r.Get("/", app.ListResults)
		r.Get("/export", app.ExportResults)
	})

	return r
}
