package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cordexkit/evaltools/internal/catalog"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, catalog.DefaultCatalogURL, cfg.CatalogURL)
	assert.Empty(t, cfg.CatalogPath)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.Equal(t, 6*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Empty(t, cfg.FixRulesPath)
	assert.Equal(t, 64, cfg.DatasetCacheSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "dataset-audit", cfg.KafkaAuditTopic)
	assert.False(t, cfg.AuditEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("CATALOG_URL", "https://example.org/catalog.json")
	t.Setenv("CATALOG_PATH", "/data/catalog.json")
	t.Setenv("CACHE_DIR", "/var/cache/evaltools")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("FIX_RULES", "/etc/evaltools/fixes.toml")
	t.Setenv("DATASET_CACHE_SIZE", "16")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_AUDIT_TOPIC", "custom-audit")
	t.Setenv("KAFKA_AUDIT_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/catalog.json", cfg.CatalogURL)
	assert.Equal(t, "/data/catalog.json", cfg.CatalogPath)
	assert.Equal(t, "/var/cache/evaltools", cfg.CacheDir)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "/etc/evaltools/fixes.toml", cfg.FixRulesPath)
	assert.Equal(t, 16, cfg.DatasetCacheSize)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-audit", cfg.KafkaAuditTopic)
	assert.True(t, cfg.AuditEnabled)
}

func TestLoad_InvalidCacheTTL(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
	// The underlying parse failure stays visible in the chain.
	assert.Contains(t, err.Error(), "not-a-duration")
}

func TestLoad_NegativeCacheTTLRejected(t *testing.T) {
	t.Setenv("CACHE_TTL", "-1h")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_TTL")
}

func TestLoad_ZeroCacheTTLDisablesReuse(t *testing.T) {
	t.Setenv("CACHE_TTL", "0s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.CacheTTL)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDatasetCacheSize(t *testing.T) {
	t.Setenv("DATASET_CACHE_SIZE", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATASET_CACHE_SIZE")
}

func TestLoad_ZeroDatasetCacheSizeDisablesCache(t *testing.T) {
	t.Setenv("DATASET_CACHE_SIZE", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.DatasetCacheSize)
}

func TestLoad_AuditEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_AUDIT_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
