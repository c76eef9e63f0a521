package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/mesh/internal/api"
	"github.com/eldtechnologies/mesh/internal/cache"
	"github.com/eldtechnologies/mesh/internal/config"
	"github.com/eldtechnologies/mesh/internal/creds"
	"github.com/eldtechnologies/mesh/internal/handlers"
	"github.com/eldtechnologies/mesh/internal/mesh"
	"github.com/eldtechnologies/mesh/internal/models"
	"github.com/eldtechnologies/mesh/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	// Instance identity, for log correlation across replicas.
	instanceID := uuid.NewString()[:8]
	logger = logger.With().Str("instance", instanceID).Logger()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Optional credential issuer; without it the dialer uses NATS_URL
	// directly (development only).
	var issuer *creds.Issuer
	if cfg.CredIssuerURL != "" {
		issuer = creds.NewIssuer(cfg.CredIssuerURL)
	}

	dialer := store.NewNATSDialer(store.DialConfig{
		URL:              cfg.NATSURL,
		Name:             "mesh-gateway-" + instanceID,
		Stream:           cfg.StreamName,
		MembershipBucket: cfg.MembershipBucket,
		PresenceBucket:   cfg.PresenceBucket,
		TelemetryBucket:  cfg.TelemetryBucket,
	}, issuer, logger)

	// Request-path connection: readers and the publish gate share it. The
	// live session dials its own connection and owns its lifecycle.
	conn, err := dialer.Dial(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("store connection failed")
	}
	defer conn.Drain()
	logger.Info().Str("stream", cfg.StreamName).Msg("connected to message log")

	// Optional state cache
	var stateCache *cache.RedisCache
	var reconcileCache mesh.StateCache
	if cfg.RedisURL != "" {
		stateCache, err = cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer stateCache.Close()
		reconcileCache = stateCache
		logger.Info().Msg("connected to state cache")
	}

	presence := mesh.NewPresenceReconciler(reconcileCache, logger)
	telemetry := mesh.NewTelemetryReconciler(reconcileCache, logger)

	session := mesh.NewLiveSyncSession(dialer, mesh.SessionConfig{
		Self:    models.AgentRef{Agent: cfg.AgentName, Type: models.SenderSystem},
		Channel: cfg.Channel,
	}, presence, telemetry, logger)
	session.OnMessage = func(env models.Envelope) {
		logger.Debug().
			Str("id", env.ID).
			Str("from", env.From.Agent).
			Msg("live message")
	}
	go session.Run(ctx)

	limiter := mesh.NewRateLimiter(mesh.DefaultRateLimit, mesh.DefaultRateWindow)

	h := handlers.NewHandler(handlers.Deps{
		History:   mesh.NewHistoryReader(conn.Log(), logger),
		Search:    mesh.NewSearchScanner(conn.Log(), logger),
		Members:   mesh.NewMembershipStore(conn.Membership(), conn.Log(), logger),
		Publisher: mesh.NewPublisher(conn.Log(), limiter, logger),
		Bridge:    mesh.NewSessionBridge(conn.Log(), logger),
		Presence:  presence,
		Telemetry: telemetry,
		Session:   session,
		Conn:      conn,
		Cache:     stateCache,
		Logger:    logger,
	})

	router := api.NewRouter(logger, h)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second, // session sends block up to 120s
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting mesh gateway")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	stop() // ends the live session; its teardown drains the connection

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
