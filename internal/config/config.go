package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Backing store (PostgREST-style) for sessions, products and coupons.
	StoreBaseURL string
	StoreAPIKey  string
	StoreTimeout time.Duration

	// Workflow webhook endpoints the worker forwards submissions to.
	RegistrationWebhookURL string
	PaymentProofWebhookURL string
	WebhookTimeout         time.Duration

	CatalogCacheTTL  time.Duration
	MaxBodyBytes     int64
	RateLimitPerMin  int
	RateLimitBurst   int
	FormConfigPath   string
	MetricsNamespace string
}

// Load reads configuration from environment variables and an optional .env
// file in the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             stringOr(k.String("APP_ENV"), "development"),
		Port:               stringOr(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: csvList(k.String("CORS_ALLOWED_ORIGINS")),

		StoreBaseURL: strings.TrimRight(strings.TrimSpace(k.String("STORE_BASE_URL")), "/"),
		StoreAPIKey:  k.String("STORE_API_KEY"),
		StoreTimeout: durationOr(k.String("STORE_TIMEOUT"), 10*time.Second),

		RegistrationWebhookURL: strings.TrimSpace(k.String("REGISTRATION_WEBHOOK_URL")),
		PaymentProofWebhookURL: strings.TrimSpace(k.String("PAYMENT_PROOF_WEBHOOK_URL")),
		WebhookTimeout:         durationOr(k.String("WEBHOOK_TIMEOUT"), 30*time.Second),

		CatalogCacheTTL:  durationOr(k.String("CATALOG_CACHE_TTL"), 5*time.Minute),
		MaxBodyBytes:     int64Or(k.String("MAX_BODY_BYTES"), 10<<20),
		RateLimitPerMin:  intOr(k.String("RATE_LIMIT_PER_MIN"), 120),
		RateLimitBurst:   intOr(k.String("RATE_LIMIT_BURST"), 30),
		FormConfigPath:   strings.TrimSpace(k.String("FORM_CONFIG_PATH")),
		MetricsNamespace: stringOr(k.String("METRICS_NAMESPACE"), "registration"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"REDIS_URL", c.RedisURL},
		{"STORE_BASE_URL", c.StoreBaseURL},
		{"STORE_API_KEY", c.StoreAPIKey},
	}
	for _, f := range required {
		if f.value == "" {
			return errors.New(f.name + " is required")
		}
	}
	return nil
}

// HTTPAddr returns the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	switch {
	case port == "":
		return ":8080"
	case strings.HasPrefix(port, ":"):
		return port
	}
	return ":" + port
}

// MustLoad is Load for entrypoints where a bad environment is fatal anyway.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests runs Load under the given environment overrides and restores
// the previous values afterwards.
func LoadForTests(overrides map[string]string) (*Config, error) {
	restore := map[string]string{}
	for key, value := range overrides {
		restore[key] = os.Getenv(key)
		if err := applyEnv(key, value); err != nil {
			return nil, err
		}
	}
	defer func() {
		for key, value := range restore {
			_ = applyEnv(key, value)
		}
	}()
	return Load()
}

func applyEnv(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func csvList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func durationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func intOr(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func int64Or(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
