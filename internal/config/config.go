package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Provider names accepted by PROVIDER.
const (
	ProviderRapidAPI       = "rapidapi"
	ProviderRapidAPIBearer = "rapidapi-bearer"
	ProviderDomain         = "domain"
	ProviderOpenAI         = "openai"
	ProviderGemini         = "gemini"
)

// Credential store backends accepted by CREDENTIAL_STORE.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

type Config struct {
	// Server
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Provider
	Provider       string `env:"PROVIDER" envDefault:"rapidapi"`
	ProviderURL    string `env:"PROVIDER_URL"`
	ProviderHost   string `env:"PROVIDER_HOST"`
	ProviderModel  string `env:"PROVIDER_MODEL" envDefault:"gpt-4o-2024-05-13"`
	ProviderAPIKey string `env:"PROVIDER_API_KEY"`
	SystemPrompt   string `env:"SYSTEM_PROMPT"`
	Language       string `env:"LANGUAGE" envDefault:"en"`
	Greeting       string `env:"GREETING" envDefault:"Hello! How can I help you today?"`

	// Credentials
	CredentialStore   string `env:"CREDENTIAL_STORE" envDefault:"memory"`
	CredentialFile    string `env:"CREDENTIAL_FILE"`
	CredentialSealKey string `env:"CREDENTIAL_SEAL_KEY"`

	// Redis
	RedisURL string `env:"REDIS_URL"`

	// Sessions
	SessionSecret  string        `env:"SESSION_SECRET"`
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"2h"`

	// Limits
	SubmitRateLimit int `env:"SUBMIT_RATE_LIMIT" envDefault:"30"`
	WorkerCount     int `env:"WORKER_COUNT" envDefault:"4"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"*"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.applyProviderDefaults()
	if cfg.CredentialFile == "" {
		cfg.CredentialFile = defaultCredentialFile()
	}
	return &cfg, nil
}

func (c *Config) applyProviderDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	switch c.Provider {
	case ProviderRapidAPI, ProviderRapidAPIBearer:
		if c.ProviderURL == "" {
			c.ProviderURL = "https://unlimited-gpt-4.p.rapidapi.com/chat/completions"
		}
		if c.ProviderHost == "" {
			c.ProviderHost = "unlimited-gpt-4.p.rapidapi.com"
		}
	case ProviderOpenAI:
		if c.ProviderModel == "gpt-4o-2024-05-13" {
			c.ProviderModel = "gpt-4o"
		}
	case ProviderGemini:
		if c.ProviderModel == "gpt-4o-2024-05-13" {
			c.ProviderModel = "gemini-1.5-flash"
		}
	}
}

// Validate checks the settings needed to serve the widget.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderRapidAPI, ProviderRapidAPIBearer, ProviderOpenAI, ProviderGemini:
	case ProviderDomain:
		if c.ProviderURL == "" || c.ProviderHost == "" {
			return fmt.Errorf("provider %q requires PROVIDER_URL and PROVIDER_HOST", c.Provider)
		}
	default:
		return fmt.Errorf("unsupported PROVIDER %q", c.Provider)
	}

	switch c.CredentialStore {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("CREDENTIAL_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unsupported CREDENTIAL_STORE %q", c.CredentialStore)
	}

	if c.CredentialSealKey != "" {
		if _, err := c.SealKey(); err != nil {
			return err
		}
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	return nil
}

// SealKey decodes CREDENTIAL_SEAL_KEY. It returns nil when sealing is off.
func (c *Config) SealKey() (*[32]byte, error) {
	if c.CredentialSealKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(c.CredentialSealKey)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("CREDENTIAL_SEAL_KEY must be 64 hex characters")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "chatwidget", "credential.json")
}
