package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chatbotyard/chatbotyard/internal/assistant"
	"github.com/chatbotyard/chatbotyard/internal/identity"
	"github.com/chatbotyard/chatbotyard/internal/middleware"
	"github.com/chatbotyard/chatbotyard/internal/store"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Repo            store.Repository
	Replier         assistant.Replier
	AssistantHealth HealthChecker // optional
	CSRF            *identity.CSRF
	Limiter         *RateLimiter // optional
	AllowedOrigins  []string
	IsDevelopment   bool
	ReplyTimeout    time.Duration
	Static          http.Handler // served under /static/, optional
}

// NewRouter builds the chi router with the global middleware chain and all
// API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment))
	r.Use(cfg.CSRF.Protect)

	base := NewHandler(cfg.Repo, cfg.Replier, cfg.Limiter, cfg.ReplyTimeout)

	r.Get("/csrf-token", cfg.CSRF.TokenHandler)
	NewHealthHandler(cfg.Repo, cfg.AssistantHealth).RegisterHealth(r)
	NewProjectHandler(base).RegisterRoutes(r)
	NewSessionHandler(base).RegisterRoutes(r)

	if cfg.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", cfg.Static))
	}

	return r
}
