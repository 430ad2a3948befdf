package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osd-exam/backend-registration/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":   "postgres://localhost:5432/registration",
		"REDIS_URL":      "redis://localhost:6379/0",
		"STORE_BASE_URL": "https://store.example.com/rest/v1/",
		"STORE_API_KEY":  "service-key",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	require.Equal(t, int64(10<<20), cfg.MaxBodyBytes)
	require.Equal(t, 120, cfg.RateLimitPerMin)
	require.Equal(t, "registration", cfg.MetricsNamespace)
	require.Equal(t, "https://store.example.com/rest/v1", cfg.StoreBaseURL,
		"trailing slash should be trimmed")
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9000"
	env["CATALOG_CACHE_TTL"] = "90s"
	env["CORS_ALLOWED_ORIGINS"] = "https://exam.example.com, https://admin.example.com"
	env["WEBHOOK_TIMEOUT"] = "not-a-duration"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, 90*time.Second, cfg.CatalogCacheTTL)
	require.Equal(t, []string{"https://exam.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
	require.Equal(t, 30*time.Second, cfg.WebhookTimeout, "malformed durations fall back to the default")
}

func TestLoadMissingStoreKey(t *testing.T) {
	env := baseEnv()
	env["STORE_API_KEY"] = ""

	_, err := config.LoadForTests(env)
	require.ErrorContains(t, err, "STORE_API_KEY")
}
