package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/kairosvoice/kairos-agent/pkg/config"
	"github.com/kairosvoice/kairos-agent/pkg/database"
	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
	mw "github.com/kairosvoice/kairos-agent/pkg/middleware"
	"github.com/kairosvoice/kairos-agent/services/agent/repository"
	"github.com/kairosvoice/kairos-agent/services/gateway/handlers"
)

func main() {
	cfg := config.Load()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Database is optional for the gateway; without it the admin API is off.
	var (
		appointmentRepo repository.AppointmentRepository
		logRepo         repository.ConversationLogRepository
	)
	if cfg.Database.URL != "" {
		pool, err := database.Connect(context.Background(), cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		appointmentRepo = repository.NewAppointmentRepository(pool)
		logRepo = repository.NewConversationLogRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set; admin endpoints disabled")
	}

	// Redis-backed rate limiting on token minting
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	tokenLimiter := mw.NewRateLimiter(redisClient, mw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})

	h := handlers.New(cfg, eventBus, appointmentRepo, logRepo)

	// Setup router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("gateway"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)

	r.Route("/v1", func(r chi.Router) {
		r.With(tokenLimiter.Middleware()).Post("/session/token", h.CreateSessionToken)

		r.With(h.RequireJWT("")).Get("/rooms/{room}/events", h.RoomEvents)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT("admin"))
			r.Get("/appointments", h.ListAppointments)
			r.Get("/calls", h.ListCalls)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gateway...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Gateway shutdown error", "error", err)
		}
	}()

	logger.Info("Starting gateway", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Gateway error", "error", err)
		os.Exit(1)
	}
}
