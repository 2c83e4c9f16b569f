package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	CORSOrigins      []string
	TrustProxy       bool

	StoreDriver string
	DatabaseURL string
	SQLitePath  string
	StoragePath string

	DiversityWindow    int
	ValidatorMode      string
	ValidatorThreshold float64
	PromptMinWords     int
	PromptMaxWords     int
	ComposeMaxAttempts int

	IntentProvider string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	IntentTimeout  time.Duration
	IntentCacheTTL time.Duration

	ImageProvider       string
	PollinationsBaseURL string
	PollinationsModel   string
	QwenAPIKey          string
	QwenBaseURL         string
	QwenModel           string
	RenderTimeout       time.Duration
	RenderMaxRetries    int
	RenderInterval      time.Duration
	RenderRetryMaxWait  time.Duration
	BatchMaxCount       int
	BatchMaxConcurrency int
}

const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	IntentProviderRules  = "rules"
	IntentProviderOpenAI = "openai"

	ImageProviderPollinations = "pollinations"
	ImageProviderQwen         = "qwen"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
		TrustProxy:       getEnvBool("TRUST_PROXY_HEADERS", false),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverSQLite)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "companion.db"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),

		DiversityWindow:    getEnvInt("DIVERSITY_WINDOW_SIZE", 50),
		ValidatorMode:      strings.ToLower(getEnv("VALIDATOR_MODE", "production")),
		ValidatorThreshold: getEnvFloat("VALIDATOR_THRESHOLD", 0),
		PromptMinWords:     getEnvInt("PROMPT_MIN_WORDS", 85),
		PromptMaxWords:     getEnvInt("PROMPT_MAX_WORDS", 95),
		ComposeMaxAttempts: getEnvInt("COMPOSE_MAX_ATTEMPTS", 3),

		IntentProvider: strings.ToLower(getEnv("INTENT_PROVIDER", IntentProviderRules)),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		IntentTimeout:  time.Second * time.Duration(getEnvInt("INTENT_TIMEOUT_SECONDS", 15)),
		IntentCacheTTL: time.Second * time.Duration(getEnvInt("INTENT_CACHE_TTL_SECONDS", 600)),

		ImageProvider:       strings.ToLower(getEnv("IMAGE_PROVIDER", ImageProviderPollinations)),
		PollinationsBaseURL: getEnv("POLLINATIONS_BASE_URL", "https://image.pollinations.ai/prompt"),
		PollinationsModel:   getEnv("POLLINATIONS_MODEL", "flux"),
		QwenAPIKey:          os.Getenv("QWEN_API_KEY"),
		QwenBaseURL:         getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenModel:           getEnv("QWEN_MODEL", "qwen-image-plus"),
		RenderTimeout:       time.Second * time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 30)),
		RenderMaxRetries:    getEnvInt("RENDER_MAX_RETRIES", 2),
		RenderInterval:      time.Millisecond * time.Duration(getEnvInt("RENDER_INTERVAL_MS", 3000)),
		RenderRetryMaxWait:  time.Millisecond * time.Duration(getEnvInt("RENDER_RETRY_MAX_WAIT_MS", 5000)),
		BatchMaxCount:       getEnvInt("BATCH_MAX_COUNT", 4),
		BatchMaxConcurrency: getEnvInt("BATCH_MAX_CONCURRENCY", 2),
	}

	switch cfg.StoreDriver {
	case StoreDriverSQLite:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q is not supported", cfg.StoreDriver)
	}

	switch cfg.IntentProvider {
	case IntentProviderRules:
	case IntentProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when INTENT_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("INTENT_PROVIDER %q is not supported", cfg.IntentProvider)
	}

	switch cfg.ImageProvider {
	case ImageProviderPollinations, ImageProviderQwen:
	default:
		return nil, fmt.Errorf("IMAGE_PROVIDER %q is not supported", cfg.ImageProvider)
	}

	switch cfg.ValidatorMode {
	case "production", "lenient":
	default:
		return nil, fmt.Errorf("VALIDATOR_MODE %q is not supported", cfg.ValidatorMode)
	}

	if cfg.PromptMinWords <= 0 || cfg.PromptMaxWords < cfg.PromptMinWords {
		return nil, fmt.Errorf("PROMPT_MIN_WORDS/PROMPT_MAX_WORDS window %d-%d is invalid", cfg.PromptMinWords, cfg.PromptMaxWords)
	}
	if cfg.ComposeMaxAttempts <= 0 {
		cfg.ComposeMaxAttempts = 1
	}
	if cfg.RenderMaxRetries < 0 {
		cfg.RenderMaxRetries = 0
	}

	return cfg, nil
}

// RequestBudget is the longest a generate request may legitimately run:
// intent extraction plus every batch wave, each wave being a full retry chain
// with backoff waits and render spacing.
func (c *Config) RequestBudget() time.Duration {
	count := max(c.BatchMaxCount, 1)
	conc := max(min(c.BatchMaxConcurrency, count), 1)
	waves := time.Duration((count + conc - 1) / conc)
	retries := time.Duration(max(c.RenderMaxRetries, 0))
	attempts := retries + 1
	chain := attempts*c.RenderTimeout + retries*c.RenderRetryMaxWait + attempts*time.Duration(conc)*c.RenderInterval
	return c.IntentTimeout + waves*chain
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

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
