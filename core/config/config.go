package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"devpulse.app/pulse/common/llm"
)

type Config struct {
	Env    string
	Port   string
	OTel   OTelConfig
	Jira   JiraConfig
	GitHub GitHubConfig
	OpenAI llm.Config
	Redis  RedisConfig
	Source SourceConfig
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
}

type GitHubConfig struct {
	Token string
}

type RedisConfig struct {
	URL string
}

// SourceConfig tunes the shared source-client behavior.
type SourceConfig struct {
	CacheTTLSeconds  int
	RetryMaxAttempts int
}

// Load loads configuration from environment variables.
// In development it also loads from a .env file if one exists.
func Load() (Config, error) {
	if getEnv("PULSE_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("PULSE_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "pulse"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Jira: JiraConfig{
			BaseURL:  getEnv("JIRA_BASE_URL", ""),
			Email:    getEnv("JIRA_EMAIL", ""),
			APIToken: getEnv("JIRA_API_TOKEN", ""),
		},
		GitHub: GitHubConfig{
			Token: getEnv("GITHUB_TOKEN", ""),
		},
		OpenAI: llm.Config{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Source: SourceConfig{
			CacheTTLSeconds:  getEnvInt("SOURCE_CACHE_TTL_SECONDS", 300),
			RetryMaxAttempts: getEnvInt("SOURCE_RETRY_MAX_ATTEMPTS", 3),
		},
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c JiraConfig) Enabled() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

// Enabled is true even without a token: the code host works
// unauthenticated, just with tighter rate limits.
func (c GitHubConfig) Enabled() bool {
	return true
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
