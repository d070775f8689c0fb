// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/zipmatch/internal/query"
)

// Querier is the part of *query.Service the handlers use.
type Querier interface {
	Query(ctx context.Context, req query.Request) (*query.Result, error)
	Stats() query.Stats
}

// Options configures the router.
type Options struct {
	// AllowedOrigins lists CORS origins. Default: all.
	AllowedOrigins []string
	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables limiting.
	RateLimit float64
	// RateBurst is the limiter burst size.
	RateBurst int
	// Timeout bounds each query. Default: 30s.
	Timeout time.Duration
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 8 << 20

// NewRouter builds the HTTP handler.
func NewRouter(q Querier, opts Options) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	h := &handlers{querier: q, timeout: opts.Timeout}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "X-Cache"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(newIPLimiter(opts.RateLimit, opts.RateBurst).middleware)
		}
		r.Post("/zipcodes", h.zipcodes)
		r.Get("/stats", h.stats)
	})
	return r
}
