package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TalWayn72/EduSphere-sub001/internal/platform/envutil"
	"github.com/TalWayn72/EduSphere-sub001/internal/platform/logger"
)

// Config is env-first; an optional YAML file (CONFIG_FILE) supplies
// defaults that the environment overrides.
type Config struct {
	Port         string        `yaml:"port"`
	LogMode      string        `yaml:"log_mode"`
	QueryTimeout time.Duration `yaml:"-"`

	QueryTimeoutSeconds int `yaml:"query_timeout_seconds"`
	EmbedCacheTTL       int `yaml:"embedding_cache_ttl_seconds"`
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:                "8080",
		LogMode:             "development",
		QueryTimeoutSeconds: 10,
		EmbedCacheTTL:       86400,
	}

	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("could not read config file", "path", path, "error", err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Warn("could not parse config file", "path", path, "error", err)
		}
	}

	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.QueryTimeoutSeconds = envutil.Int("QUERY_TIMEOUT_SECONDS", cfg.QueryTimeoutSeconds)
	cfg.EmbedCacheTTL = envutil.Int("EMBEDDING_CACHE_TTL_SECONDS", cfg.EmbedCacheTTL)
	cfg.QueryTimeout = time.Duration(cfg.QueryTimeoutSeconds) * time.Second

	// Downstream constructors read these through envutil, so file values
	// must land in the environment when not already set there.
	if os.Getenv("QUERY_TIMEOUT_SECONDS") == "" {
		_ = os.Setenv("QUERY_TIMEOUT_SECONDS", fmt.Sprint(cfg.QueryTimeoutSeconds))
	}
	if os.Getenv("EMBEDDING_CACHE_TTL_SECONDS") == "" {
		_ = os.Setenv("EMBEDDING_CACHE_TTL_SECONDS", fmt.Sprint(cfg.EmbedCacheTTL))
	}
	return cfg
}
