package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kairosvoice/kairos-agent/pkg/config"
	"github.com/kairosvoice/kairos-agent/pkg/database"
	"github.com/kairosvoice/kairos-agent/pkg/events"
	"github.com/kairosvoice/kairos-agent/pkg/logger"
	"github.com/kairosvoice/kairos-agent/pkg/voice"
	"github.com/kairosvoice/kairos-agent/services/agent/receptionist"
	"github.com/kairosvoice/kairos-agent/services/agent/repository"
	"github.com/kairosvoice/kairos-agent/services/agent/ui"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()

	// Database is optional; without it the receptionist still converses,
	// it just can't look anything up or persist bookings.
	var store *receptionist.Store
	if cfg.Database.URL != "" {
		pool, err := database.Connect(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.Migrate(pool); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}

		store = &receptionist.Store{
			Users:        repository.NewUserRepository(pool),
			Appointments: repository.NewAppointmentRepository(pool),
			Logs:         repository.NewConversationLogRepository(pool),
		}
	} else {
		logger.Warn("DATABASE_URL not set; running without persistence")
	}

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	room := cfg.Agent.Room
	uiPub := ui.NewPublisher(eventBus, room)
	rec := receptionist.New(store, uiPub, eventBus)

	// Voice pipeline
	voiceCfg := voice.DefaultConfig()
	voiceCfg.APIKey = cfg.Voice.GeminiAPIKey
	voiceCfg.SystemPrompt = receptionist.Instructions
	voiceCfg.ToolTimeout = cfg.Agent.ToolTimeout
	if cfg.Voice.Model != "" {
		voiceCfg.Model = cfg.Voice.Model
	}
	if cfg.Voice.VoiceName != "" {
		voiceCfg.VoiceName = cfg.Voice.VoiceName
	}

	pipeline, err := voice.NewGemini(voiceCfg)
	if err != nil {
		logger.Error("Failed to build voice pipeline", "error", err)
		os.Exit(1)
	}

	for _, tool := range rec.Tools() {
		pipeline.RegisterTool(tool)
	}

	pipeline.OnTranscript(func(text string, isFinal bool) {
		if isFinal {
			logger.Debug("Caller said", "room", room, "text", text)
		}
	})
	pipeline.OnResponse(func(text string, isFinal bool) {
		if isFinal {
			logger.Debug("Assistant said", "room", room, "text", text)
		}
	})
	pipeline.OnError(func(err error) {
		logger.Error("Voice pipeline error", "room", room, "error", err)
	})

	if err := pipeline.Start(ctx); err != nil {
		logger.Error("Failed to start voice pipeline", "error", err)
		os.Exit(1)
	}

	if err := pipeline.Say(cfg.Voice.Greeting); err != nil {
		logger.Error("Failed to send greeting", "error", err)
	}

	if err := eventBus.Publish(ctx, events.CallStarted, events.CallStartedEvent{
		Room:      room,
		StartedAt: time.Now(),
	}); err != nil {
		logger.Warn("Failed to publish call started", "error", err)
	}

	logger.Info("Agent ready", "room", room)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down agent...")
	case <-pipeline.Done():
		logger.Info("Voice session closed")
	}

	if err := pipeline.Stop(); err != nil {
		logger.Error("Pipeline stop error", "error", err)
	}
}
