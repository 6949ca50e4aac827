// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/config"
	"github.com/amiaygpt/chat-platform/internal/llm"
	natsclient "github.com/amiaygpt/chat-platform/internal/nats"
	"github.com/amiaygpt/chat-platform/internal/server"
	"github.com/amiaygpt/chat-platform/internal/service"
	"github.com/amiaygpt/chat-platform/internal/store"
	"github.com/amiaygpt/chat-platform/pkg/logger"
	"github.com/amiaygpt/chat-platform/pkg/tracing"
)

func main() {
	cfg := config.Load()

	var (
		log *logger.Logger
		err error
	)
	if cfg.IsDevelopment() {
		log, err = logger.NewDevelopment()
	} else {
		log, err = logger.New(cfg.LogLevel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("env", cfg.Env))

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "amiaygpt-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	st, err := store.Open(ctx, store.Config{
		Driver: cfg.DatabaseDriver,
		DSN:    cfg.DatabaseURL,
		Debug:  cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatal("failed to open database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer st.Close()

	// The event log is optional.
	var (
		events     service.EventPublisher = service.NopPublisher{}
		natsClient *natsclient.Client
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		eventLog := natsclient.NewEventLog(natsClient)
		if err := eventLog.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		events = eventLog
	} else {
		log.Info("NATS_URL not set, conversation events disabled")
	}

	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llm.Options{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	})
	if err != nil {
		log.Warn("completion provider unavailable, messages will fail", zap.String("provider", cfg.LLMProvider), zap.Error(err))
		llmClient = llm.Unconfigured{}
	}

	router := server.NewRouter(server.Options{
		Config: cfg,
		Logger: log,
		Store:  st,
		LLM:    llmClient,
		Events: events,
		NATS:   natsClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort), zap.String("provider", llmClient.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
