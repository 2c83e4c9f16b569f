package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"companion/internal/http/handlers"
	"companion/internal/infra"
	"companion/internal/middleware"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	Logger            *infra.Logger
	RateLimitPerMin   int
	CORSOrigins       []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(
		chimw.Recoverer,
		middleware.Logger(infra.LoggerOrNop(opts.Logger)),
		middleware.CORS(opts.CORSOrigins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Get("/v1/metrics", app.Metrics)

		r.Route("/v1/prompts", func(r chi.Router) {
			r.Post("/compose", app.PromptCompose)
			r.Post("/validate", app.PromptValidate)
		})

		r.Route("/v1/images", func(r chi.Router) {
			r.Post("/generate", app.ImagesGenerate)
			r.Get("/{id}", app.ImageGet)
			r.Get("/{id}/content", app.ImageContent)
			r.Delete("/{id}", app.ImageDelete)
		})

		r.Get("/v1/characters/{character_id}/images", app.CharacterImages)
		r.Get("/v1/characters/{character_id}/images/archive", app.CharacterArchive)
	})

	return r
}
