package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	TransportREST = "rest"
	TransportSDK  = "sdk"

	CredentialBackendFile     = "file"
	CredentialBackendPostgres = "postgres"
	CredentialBackendMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	PromptProvider      string
	GenerationTransport string
	GeminiModel         string
	GeminiBaseURL       string
	GeminiSDKBaseURL    string
	OpenAIModel         string
	OpenAIBaseURL       string
	CredentialBackend   string
	CredentialDir       string
	DatabaseURL         string
	MaxPromptCount      int
	MaxUploadBytes      int64
	CORSAllowedOrigins  []string
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
	GenerationTimeout   time.Duration
	RateLimitPerMin     int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		PromptProvider:      strings.ToLower(getEnv("PROMPT_PROVIDER", ProviderGemini)),
		GenerationTransport: strings.ToLower(getEnv("GENERATION_TRANSPORT", TransportREST)),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiSDKBaseURL:    os.Getenv("GEMINI_SDK_BASE_URL"),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		CredentialBackend:   strings.ToLower(getEnv("CREDENTIAL_BACKEND", CredentialBackendFile)),
		CredentialDir:       getEnv("CREDENTIAL_DIR", defaultCredentialDir()),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MaxPromptCount:      getEnvInt("MAX_PROMPT_COUNT", 1000),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		GenerationTimeout:   time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 150)),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	switch cfg.PromptProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return nil, fmt.Errorf("unsupported PROMPT_PROVIDER %q", cfg.PromptProvider)
	}

	switch cfg.GenerationTransport {
	case TransportREST, TransportSDK:
	default:
		return nil, fmt.Errorf("unsupported GENERATION_TRANSPORT %q", cfg.GenerationTransport)
	}

	switch cfg.CredentialBackend {
	case CredentialBackendFile, CredentialBackendMemory:
	case CredentialBackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres credential backend")
		}
	default:
		return nil, fmt.Errorf("unsupported CREDENTIAL_BACKEND %q", cfg.CredentialBackend)
	}

	if cfg.MaxPromptCount < 1 || cfg.MaxPromptCount > 1000 {
		return nil, fmt.Errorf("MAX_PROMPT_COUNT must be between 1 and 1000")
	}

	return cfg, nil
}

func defaultCredentialDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir + string(os.PathSeparator) + "promptsmith"
	}
	return ".promptsmith"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	items := lo.Map(strings.Split(raw, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Uniq(lo.Compact(items))
}
