package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sitelens/metrics"
	"github.com/hazyhaar/sitelens/shield"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Service *Service

	// AllowedOrigins is the CORS allow-list.
	AllowedOrigins []string

	// RateLimitPerMinute caps POST requests per client IP. 0 disables.
	RateLimitPerMinute int

	// AdminTokenHash is a bcrypt hash. Empty leaves admin routes unmounted.
	AdminTokenHash string

	// Retention is the default age for POST /admin/sweep.
	Retention time.Duration

	// MCP mounts the Model Context Protocol endpoint at /mcp.
	MCP     bool
	Version string
}

// NewRouter builds the sitelens HTTP handler.
func NewRouter(opts RouterOptions) http.Handler {
	h := &handlers{svc: opts.Service, retention: opts.Retention}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Trace-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Trace-ID"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	r.Get("/test", h.test)
	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/models", h.models)
	r.Get("/download/{filename}", h.download)
	r.Get("/screenshots", h.screenshots)
	r.Get("/history", h.history)

	r.Group(func(r chi.Router) {
		r.Use(shield.MaxBody(MaxBodyBytes))
		if opts.RateLimitPerMinute > 0 {
			r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				}),
			))
		}
		r.Post("/process", h.process)
		r.Post("/analyze", h.analyze)
		r.Post("/generate-code", h.generateCode)
	})

	if opts.AdminTokenHash != "" {
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin([]byte(opts.AdminTokenHash)))
			r.Delete("/screenshots/{filename}", h.removeScreenshot)
			r.Post("/admin/sweep", h.sweep)
		})
	}

	if opts.MCP {
		srv := mcp.NewServer(&mcp.Implementation{Name: "sitelens", Version: opts.Version}, nil)
		opts.Service.RegisterMCP(srv)
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil))
	}

	return r
}
