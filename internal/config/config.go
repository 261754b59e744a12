package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8000"`

	// LLM settings
	LLMProvider   LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey  string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string      `env:"OPENAI_BASE_URL"`
	OpenAIModel   string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	YandexOAuthToken string `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Retrieval index
	ChromaURL        string `env:"CHROMA_URL" envDefault:"http://localhost:8001"`
	ChromaCollection string `env:"CHROMA_COLLECTION" envDefault:"retail-docs"`

	// Prompts (configuration data, not orchestration logic)
	SchemaPromptPath string `env:"SCHEMA_PROMPT_PATH" envDefault:"prompts/schema_preamble.txt"`
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Orchestration
	ConversationWindow int           `env:"CONVERSATION_WINDOW" envDefault:"20"`
	ContextTurns       int           `env:"CONTEXT_TURNS" envDefault:"10"`
	DefaultTopK        int           `env:"DEFAULT_TOP_K" envDefault:"4"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"2m"`

	// Storage
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`

	// Optional Telegram channel
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ConversationWindow <= 0 {
		return fmt.Errorf("CONVERSATION_WINDOW must be > 0")
	}
	if c.ContextTurns <= 0 {
		return fmt.Errorf("CONTEXT_TURNS must be > 0")
	}
	if c.DefaultTopK <= 0 {
		return fmt.Errorf("DEFAULT_TOP_K must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLMProvider)
	}
	return nil
}
