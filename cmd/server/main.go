package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"linkedin-optimizer/internal/auth"
	"linkedin-optimizer/internal/config"
	"linkedin-optimizer/internal/llm"
	"linkedin-optimizer/internal/report"
	"linkedin-optimizer/internal/scheduler"
	"linkedin-optimizer/internal/session"
	"linkedin-optimizer/internal/speech"
	"linkedin-optimizer/internal/storage"
	"linkedin-optimizer/internal/web"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	store := newStore(cfg)
	defer store.Close()

	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	llmClient, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	orch := session.NewOrchestrator(store, llmClient, newSpeechBridge(cfg))
	authSvc := auth.New(store)

	sched := scheduler.New()
	sched.SetReportFunction(report.New(store, func(s string) { log.Println(s) }).Run)
	if err := sched.Start(); err != nil {
		log.Printf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	srv := web.NewServer(authSvc, orch, cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("web server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")
	if err := srv.Stop(); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func newStore(cfg *config.Config) storage.Store {
	if cfg.MockDB {
		log.Println("MOCK_DB set, using in-memory store; history resets on restart")
		return storage.NewMemory()
	}
	store, err := storage.OpenPostgres(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBTLS)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return store
}

func newSpeechBridge(cfg *config.Config) speech.Bridge {
	if !cfg.SpeechEnabled {
		return nil
	}
	key := cfg.SpeechAPIKey
	if key == "" {
		key = cfg.OpenAIAPIKey
	}
	baseURL := cfg.SpeechBaseURL
	if baseURL == "" {
		baseURL = cfg.OpenAIBaseURL
	}
	return speech.NewOpenAIBridge(key, baseURL, cfg.TranscribeModel, cfg.TTSModel, cfg.TTSVoice)
}
