package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"linkedin-optimizer/internal/auth"
	"linkedin-optimizer/internal/config"
	"linkedin-optimizer/internal/llm"
	"linkedin-optimizer/internal/session"
	"linkedin-optimizer/internal/speech"
	"linkedin-optimizer/internal/storage"
	"linkedin-optimizer/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required for the bot entry point")
	}

	var store storage.Store
	if cfg.MockDB {
		log.Println("MOCK_DB set, using in-memory store; history resets on restart")
		store = storage.NewMemory()
	} else {
		pg, err := storage.OpenPostgres(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBTLS)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		store = pg
	}
	defer store.Close()

	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	llmClient, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to create llm client: %v", err)
	}

	var bridge speech.Bridge
	if cfg.SpeechEnabled {
		key := cfg.SpeechAPIKey
		if key == "" {
			key = cfg.OpenAIAPIKey
		}
		baseURL := cfg.SpeechBaseURL
		if baseURL == "" {
			baseURL = cfg.OpenAIBaseURL
		}
		bridge = speech.NewOpenAIBridge(key, baseURL, cfg.TranscribeModel, cfg.TTSModel, cfg.TTSVoice)
	}

	orch := session.NewOrchestrator(store, llmClient, bridge)

	bot, err := telegram.New(cfg.TelegramBotToken, auth.New(store), orch)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot.Start(ctx)
}
