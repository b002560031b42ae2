package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageBackendSupabase = "supabase"
	StorageBackendS3       = "s3"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is read from an optional YAML file (CONFIG_PATH) and then from the
// environment, which always wins. Secrets are env-only.
type Config struct {
	// Supabase
	SupabaseURL            string `yaml:"supabase_url" env:"SUPABASE_URL"`
	SupabasePublishableKey string `yaml:"-" env:"SUPABASE_PUBLISHABLE_KEY"`
	SupabaseJWTSecret      string `yaml:"-" env:"SUPABASE_JWT_SECRET"`
	SupabaseStorageBucket  string `yaml:"supabase_storage_bucket" env:"SUPABASE_STORAGE_BUCKET" env-default:"project-images"`

	// Object storage
	StorageBackend string   `yaml:"storage_backend" env:"STORAGE_BACKEND" env-default:"supabase"`
	S3             S3Config `yaml:"s3"`

	// Database
	DatabaseURL string `yaml:"-" env:"DATABASE_URL"`

	// Generation
	GenerationProvider string       `yaml:"generation_provider" env:"GENERATION_PROVIDER" env-default:"gemini"`
	Gemini             GeminiConfig `yaml:"gemini"`
	OpenAI             OpenAIConfig `yaml:"openai"`

	// Server
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL" env-default:"http://localhost:8080"`
}

type S3Config struct {
	Endpoint      string `yaml:"endpoint" env:"S3_ENDPOINT"`
	Region        string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Bucket        string `yaml:"bucket" env:"S3_BUCKET" env-default:"project-images"`
	AccessKey     string `yaml:"-" env:"S3_ACCESS_KEY"`
	SecretKey     string `yaml:"-" env:"S3_SECRET_KEY"`
	PublicBaseURL string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

type GeminiConfig struct {
	APIKey     string `yaml:"-" env:"GEMINI_API_KEY"`
	BaseURL    string `yaml:"base_url" env:"GEMINI_BASE_URL" env-default:"https://generativelanguage.googleapis.com/v1beta/"`
	ImageModel string `yaml:"image_model" env:"GEMINI_IMAGE_MODEL" env-default:"gemini-2.5-flash-image"`
	ChatModel  string `yaml:"chat_model" env:"GEMINI_CHAT_MODEL" env-default:"gemini-2.5-flash"`
}

type OpenAIConfig struct {
	APIKey     string `yaml:"-" env:"OPENAI_API_KEY"`
	BaseURL    string `yaml:"base_url" env:"OPENAI_BASE_URL"`
	ImageModel string `yaml:"image_model" env:"OPENAI_IMAGE_MODEL" env-default:"gpt-image-1"`
	ChatModel  string `yaml:"chat_model" env:"OPENAI_CHAT_MODEL" env-default:"gpt-4o"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	switch c.StorageBackend {
	case StorageBackendSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required")
		}
		if c.SupabasePublishableKey == "" {
			return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
		}
	case StorageBackendS3:
		if c.S3.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when STORAGE_BACKEND=s3")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.GenerationProvider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown GENERATION_PROVIDER %q", c.GenerationProvider)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
