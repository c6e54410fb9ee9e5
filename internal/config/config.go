package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	Port        string
	DatabaseURL string

	LLMProvider   string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	CORSOrigins []string

	ProgressEvery     int
	StaleAfter        time.Duration
	AnalyzeRatePerMin int
	MaxUploadMB       int64

	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) and the process environment. Every invalid or
// missing setting is reported in one error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, which keeps tests off the
// real environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	var errs *multierror.Error

	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	getInt := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must be a positive integer, got %q", key, raw))
			return def
		}
		return n
	}

	cfg := &Config{
		Port:              get("PORT", "8080"),
		DatabaseURL:       get("DATABASE_URL", ""),
		LLMProvider:       strings.ToLower(get("LLM_PROVIDER", ProviderGemini)),
		GeminiAPIKey:      get("GEMINI_API_KEY", ""),
		GeminiModel:       get("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIBaseURL:     strings.TrimRight(get("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIAPIKey:      get("OPENAI_API_KEY", ""),
		OpenAIModel:       get("OPENAI_MODEL", "gpt-4o-mini"),
		CORSOrigins:       splitList(get("CORS_ORIGINS", "*")),
		ProgressEvery:     getInt("ANALYSIS_PROGRESS_EVERY", 8),
		AnalyzeRatePerMin: getInt("ANALYZE_RATE_PER_MIN", 20),
		MaxUploadMB:       int64(getInt("MAX_UPLOAD_MB", 10)),
		LogLevel:          strings.ToLower(get("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(get("LOG_FORMAT", "json")),
	}

	stale, err := time.ParseDuration(get("ANALYSIS_STALE_AFTER", "10m"))
	if err != nil || stale <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("ANALYSIS_STALE_AFTER must be a positive duration"))
		stale = 10 * time.Minute
	}
	cfg.StaleAfter = stale

	if cfg.DatabaseURL == "" {
		errs = multierror.Append(errs, errors.New("DATABASE_URL is required"))
	}
	switch cfg.LLMProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			errs = multierror.Append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			errs = multierror.Append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, cfg.LLMProvider))
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		errs = multierror.Append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AllowAllOrigins reports whether CORS should accept any origin.
func (c *Config) AllowAllOrigins() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
