// Package config loads tool settings from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cordexkit/evaltools/internal/catalog"
)

// Config holds all tool settings, populated from environment variables.
type Config struct {
	CatalogURL  string
	CatalogPath string
	CacheDir    string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration

	FixRulesPath     string
	DatasetCacheSize int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka audit configuration.
	KafkaBrokers    []string
	KafkaAuditTopic string
	AuditEnabled    bool
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cacheTTL, err := parseDuration("CACHE_TTL", "6h", 0)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "30s", time.Millisecond)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s", time.Millisecond)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseDatasetCacheSize()
	if err != nil {
		return nil, err
	}

	auditEnabled := false
	if v := os.Getenv("KAFKA_AUDIT_ENABLED"); v != "" {
		auditEnabled = v == "true"
	}

	cfg := &Config{
		CatalogURL:  envOrDefault("CATALOG_URL", catalog.DefaultCatalogURL),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		CacheDir:    envOrDefault("CACHE_DIR", filepath.Join(os.TempDir(), "evaltools-catalog")),
		CacheTTL:    cacheTTL,
		HTTPTimeout: httpTimeout,

		FixRulesPath:     os.Getenv("FIX_RULES"),
		DatasetCacheSize: cacheSize,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAuditTopic: envOrDefault("KAFKA_AUDIT_TOPIC", "dataset-audit"),
		AuditEnabled:    auditEnabled,
	}

	if cfg.CatalogURL == "" && cfg.CatalogPath == "" {
		return nil, errors.New("one of CATALOG_URL or CATALOG_PATH is required")
	}
	if cfg.AuditEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_AUDIT_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.AuditEnabled && cfg.KafkaAuditTopic == "" {
		return nil, errors.New("KAFKA_AUDIT_ENABLED is true but KAFKA_AUDIT_TOPIC is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, fallback string, minimum time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < minimum {
		return 0, fmt.Errorf("invalid %s: %s is below the minimum %s", key, d, minimum)
	}
	return d, nil
}

func parseDatasetCacheSize() (int, error) {
	s := os.Getenv("DATASET_CACHE_SIZE")
	if s == "" {
		return 64, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid DATASET_CACHE_SIZE")
	}
	return n, nil
}
