package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"astra-chat/internal/config"
	"astra-chat/internal/database"
	"astra-chat/internal/handlers"
	"astra-chat/internal/middleware"
	"astra-chat/internal/render"
	"astra-chat/internal/router"
	"astra-chat/internal/services"
	"astra-chat/internal/session"
	"astra-chat/internal/telemetry"
	"astra-chat/internal/websocket"
)

func main() {
	log.Println("🐙 Starting Astra Chat...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	logFile, err := telemetry.InitLogger(cfg.LogFile)
	if err != nil {
		log.Fatalf("✗ Log file setup failed: %v", err)
	}
	defer logFile.Close()

	// ──── Step 2: Telemetry ────
	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.TelemetryDir)
	if err != nil {
		log.Fatalf("✗ Telemetry setup failed: %v", err)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		log.Fatalf("✗ Telemetry setup failed: %v", err)
	}
	log.Println("✓ Telemetry initialized")

	// ──── Step 3: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiModel,
		cfg.GeminiTemperature,
		cfg.GeminiConcurrentReqs,
		metrics,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (%s)", cfg.GeminiModel)

	// ──── Step 4: Initialize Redis Client (optional) ────
	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Println("✓ Redis connected")
	} else {
		log.Println("✓ Redis not configured, live updates stay in-process")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatalf("✗ Template setup failed: %v", err)
	}

	// ──── Step 5: Start WebSocket Hub & Session Store ────
	wsHub := websocket.NewHub(redisClient, renderer)
	store := session.NewStore(geminiService, wsHub, cfg.SessionIdleTimeout)
	store.Start()
	log.Println("✓ Session store started")

	// ──── Initialize Handlers ────
	sessions := middleware.NewSessions(cfg.SessionSecret, cfg.Env == "production")
	chatLimiter := middleware.NewRateLimiter(cfg.ChatRequestsPerMin, time.Minute)
	chatHandler := handlers.NewChatHandler(store, renderer, cfg.AppTitle, cfg.InputPlaceholder)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(sessions, chatLimiter, chatHandler, wsHub, renderer.Static())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		store.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
		if err := shutdownTelemetry(ctx); err != nil {
			log.Printf("Telemetry shutdown: %v", err)
		}
	}()

	log.Printf("✓ Astra Chat ready on http://localhost:%s", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
