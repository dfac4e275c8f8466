package config

import (
	"log"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	// Database settings. MockDB switches to the in-memory store, useful for
	// demos where no PostgreSQL instance is reachable.
	MockDB     bool   `env:"MOCK_DB" envDefault:"false"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"linkedin_optimizer"`
	DBTLS      bool   `env:"DB_TLS" envDefault:"false"`

	// LLM settings. The default base URL points at Groq's OpenAI-compatible
	// endpoint; any compatible gateway (OpenAI, OpenRouter) works too.
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"llama3-70b-8192"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Speech settings. SpeechAPIKey falls back to OpenAIAPIKey when empty.
	SpeechEnabled   bool   `env:"SPEECH_ENABLED" envDefault:"false"`
	SpeechAPIKey    string `env:"SPEECH_API_KEY"`
	SpeechBaseURL   string `env:"SPEECH_BASE_URL"`
	TranscribeModel string `env:"TRANSCRIBE_MODEL" envDefault:"whisper-large-v3"`
	TTSModel        string `env:"TTS_MODEL" envDefault:"tts-1"`
	TTSVoice        string `env:"TTS_VOICE" envDefault:"alloy"`

	// Telegram (cmd/bot only)
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
