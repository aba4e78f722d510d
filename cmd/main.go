package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/adapters/llm"
	"github.com/aiandbotsgalore/aicohost/adapters/memory"
	mongoadapter "github.com/aiandbotsgalore/aicohost/adapters/mongo"
	"github.com/aiandbotsgalore/aicohost/adapters/stt"
	"github.com/aiandbotsgalore/aicohost/adapters/tts"
	"github.com/aiandbotsgalore/aicohost/config"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
	"github.com/aiandbotsgalore/aicohost/internal/api"
	"github.com/aiandbotsgalore/aicohost/internal/auth"
	"github.com/aiandbotsgalore/aicohost/internal/metrics"
	"github.com/aiandbotsgalore/aicohost/internal/websocket"
	"github.com/aiandbotsgalore/aicohost/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	auth.Secret = []byte(cfg.JWTSecret)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Storage: in-memory unless MongoDB is configured
	var storage repositories.Storage
	if cfg.MongoURI != "" {
		client, err := mongoadapter.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Warn("MongoDB disconnect failed", zap.Error(err))
			}
		}()
		storage = mongoadapter.NewStorage(client)
	} else {
		store := memory.New(logger)
		store.StartSweep(2 * time.Hour)
		defer store.StopSweep()
		storage = store
	}

	// AI collaborators: real providers when credentials are present, mocks otherwise
	var generator repositories.ResponseGenerator
	if cfg.GeminiAPIKey != "" {
		g, err := llm.NewGeminiGenerator(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini client", zap.Error(err))
		}
		generator = g
	} else {
		generator = llm.NewMockGenerator(logger)
	}

	var synthesizer repositories.SpeechSynthesizer
	if cfg.ElevenLabsAPIKey != "" {
		s, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			VoiceID: cfg.ElevenLabsVoice,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize ElevenLabs client", zap.Error(err))
		}
		synthesizer = s
	} else {
		synthesizer = tts.NewMockTTS(logger)
	}

	var transcriber repositories.Transcriber
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		transcriber = stt.NewGoogleTranscriber(repositories.AudioConfig{
			SampleRate: cfg.AudioSampleRate,
			Encoding:   cfg.AudioEncoding,
			Language:   cfg.AudioLanguage,
		}, logger)
	} else {
		transcriber = stt.NewMockTranscriber(logger)
	}

	// Initialize metrics, orchestrator, and hub
	m := metrics.New()
	orchestrator := usecase.NewOrchestrator(storage, generator, synthesizer, m, logger)
	hub := websocket.NewHub(storage, transcriber, orchestrator, m, logger)

	// Initialize API routes
	api.InitRoutes(e, hub, storage, m, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Session hub started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
