// Package server assembles the HTTP routes of the API.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amiaygpt/chat-platform/internal/auth"
	"github.com/amiaygpt/chat-platform/internal/config"
	"github.com/amiaygpt/chat-platform/internal/handler"
	"github.com/amiaygpt/chat-platform/internal/llm"
	"github.com/amiaygpt/chat-platform/internal/middleware"
	natsclient "github.com/amiaygpt/chat-platform/internal/nats"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// Options are the dependencies of the router. NATS may be nil.
type Options struct {
	Config *config.Config
	Logger *logger.Logger
	Store  *store.Store
	LLM    llm.Client
	Events service.EventPublisher
	NATS   *natsclient.Client
}

// NewRouter builds the services and handlers and wires the routes.
func NewRouter(opts Options) http.Handler {
	cfg := opts.Config
	log := opts.Logger
	dev := cfg.IsDevelopment()

	completions := opts.LLM
	if completions == nil {
		completions = llm.Unconfigured{}
	}

	events := opts.Events
	if events == nil {
		events = service.NopPublisher{}
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	userSvc := service.NewUserService(opts.Store, tokens, cfg.BcryptCost, log)
	conversationSvc := service.NewConversationService(opts.Store, events, cfg.DefaultModel, log)
	messageSvc := service.NewMessageService(opts.Store, completions, service.CompletionSettings{
		DefaultModel: cfg.DefaultModel,
		MaxTokens:    cfg.CompletionMaxTokens,
		Temperature:  cfg.CompletionTemperature,
		Timeout:      cfg.CompletionTimeout,
	}, events, log)
	usageSvc := service.NewUsageService(opts.Store)

	healthHandler := handler.NewHealthHandler(opts.Store, opts.NATS)
	authHandler := handler.NewAuthHandler(userSvc, log, dev)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log, dev)
	messageHandler := handler.NewMessageHandler(messageSvc, log, dev)
	usageHandler := handler.NewUsageHandler(usageSvc, log, dev)

	requireUser := middleware.Auth(tokens, userSvc, log)
	userLimit := middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recover(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.NotFound)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.AuthRateLimitRequests, cfg.RateLimitWindow))
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireUser, userLimit)
				r.Get("/profile", authHandler.Profile)
				r.Put("/profile", authHandler.UpdateProfile)
				r.Put("/change-password", authHandler.ChangePassword)
				r.Get("/preferences", authHandler.Preferences)
				r.Put("/preferences", authHandler.UpdatePreferences)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser, userLimit)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", conversationHandler.Create)
				r.Get("/", conversationHandler.List)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Delete("/", conversationHandler.Delete)
					r.Put("/title", conversationHandler.Rename)
					r.Put("/archive", conversationHandler.Archive)
					r.Post("/messages", messageHandler.Send)
				})
			})

			r.Get("/usage", usageHandler.Get)
		})
	})

	return r
}
