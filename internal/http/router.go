package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"visor/internal/http/handlers"
	"visor/internal/infra"
	"visor/internal/middleware"
)

// Options carries the router's cross-cutting wiring. CountryLookup may be
// nil; language detection then relies on headers alone.
type Options struct {
	Cfg           *infra.Config
	Logger        infra.Logger
	CountryLookup middleware.CountryLookup
}

// NewRouter assembles the HTTP surface. Analysis accepts anonymous callers;
// quota and history need a user; the gemini admin surface sits behind the
// operator token.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.Cfg.CORSAllowedOrigins),
		middleware.Language(opts.Cfg.DefaultLanguage, opts.CountryLookup),
	)
	if opts.Cfg.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.Cfg.RateLimitPerMin, time.Minute))
	}

	r.Get("/healthz", app.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthJWT(opts.Cfg.JWTSecret))
			r.Post("/analyses", app.AnalyzeImage)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.Cfg.JWTSecret))
			r.Get("/quota", app.Quota)
			r.Get("/analyses", app.ListAnalyses)
			r.Get("/analyses/{id}", app.GetAnalysis)
		})

		r.Route("/gemini", func(r chi.Router) {
			r.Use(middleware.AdminToken(opts.Cfg.AdminToken))
			r.Get("/status", app.GeminiStatus)
			r.Post("/cooldown/reset", app.CooldownReset)
			r.Get("/models", app.GeminiModels)
		})
	})

	return r
}
