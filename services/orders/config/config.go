// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the order desk service configuration from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/lapaisee/orderdesk/services/orders/catalog"
	"github.com/lapaisee/orderdesk/services/orders/providers"
)

// Catalog backends.
const (
	BackendFile     = "file"
	BackendWeaviate = "weaviate"
	BackendPostgres = "postgres"
)

// EnvProduction disables .env loading.
const EnvProduction = "production"

// DefaultResponderModel is the Ollama model used to phrase replies.
const DefaultResponderModel = "deepseek-r1:7b"

// ServiceConfig holds every runtime knob of the order desk.
//
// # Description
//
// Built by LoadServiceConfig from environment variables, falling back to
// DefaultServiceConfig. Validate enforces the cross-field rules.
type ServiceConfig struct {
	Env             string        `validate:"omitempty,oneof=development production test"`
	HTTPAddr        string        `validate:"required"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	LogFormat       string        `validate:"oneof=json text"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Locale selects the reply phrasebook.
	Locale string `validate:"required"`

	// AllowedUsers restricts access. Empty means open access.
	AllowedUsers []string

	Catalog   CatalogConfig
	Responder ResponderConfig
	Replies   ReplyConfig
	Sync      SyncConfig
}

// CatalogConfig selects and configures the catalog store.
type CatalogConfig struct {
	Backend string `validate:"oneof=file weaviate postgres"`

	// File is the JSON snapshot path. Used by the file backend and written
	// by sync.
	File  string `validate:"required_if=Backend file"`
	Watch bool

	WeaviateHost   string `validate:"required_if=Backend weaviate"`
	WeaviateScheme string `validate:"omitempty,oneof=http https"`
	WeaviateAPIKey string
	WeaviateClass  string

	PostgresDSN string `validate:"required_if=Backend postgres"`

	// Semantic enables embedding-based ranking on top of BM25.
	Semantic       bool
	EmbeddingURL   string
	EmbeddingModel string

	// CacheDir holds the embedding cache. Empty means in-memory.
	CacheDir string

	MatchLimit   int           `validate:"gt=0"`
	MatchTimeout time.Duration `validate:"gt=0"`
}

// ResponderConfig configures the generative responder.
type ResponderConfig struct {
	Provider    providers.ProviderConfig
	Timeout     time.Duration `validate:"gt=0"`
	Temperature float64       `validate:"gte=-1,lte=2"`
	MaxTokens   int           `validate:"gte=0"`
}

// ReplyConfig configures duplicate-message suppression.
type ReplyConfig struct {
	// RedisURL enables the shared reply cache. Empty uses process memory.
	RedisURL string        `validate:"omitempty,url"`
	TTL      time.Duration `validate:"gt=0"`
}

// SyncConfig configures the shop catalog import.
type SyncConfig struct {
	WooURL    string `validate:"omitempty,url"`
	WooKey    string
	WooSecret string
	RateLimit float64       `validate:"gte=0"`
	Timeout   time.Duration `validate:"gt=0"`
}

// DefaultServiceConfig returns the configuration used when no variable is set.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Env:             "development",
		HTTPAddr:        ":8088",
		LogLevel:        "info",
		LogFormat:       "json",
		ShutdownTimeout: 15 * time.Second,
		Locale:          "fr",
		Catalog: CatalogConfig{
			Backend:        BackendFile,
			File:           "data/catalog.json",
			Watch:          true,
			WeaviateScheme: "http",
			WeaviateClass:  catalog.DefaultWeaviateClass,
			Semantic:       true,
			EmbeddingURL:   catalog.DefaultEmbeddingURL,
			EmbeddingModel: catalog.DefaultEmbeddingModel,
			MatchLimit:     5,
			MatchTimeout:   5 * time.Second,
		},
		Responder: ResponderConfig{
			Provider: providers.ProviderConfig{
				Provider: providers.ProviderOllama,
				Model:    DefaultResponderModel,
				BaseURL:  providers.DefaultOllamaURL,
			},
			Timeout:     30 * time.Second,
			Temperature: 0.7,
		},
		Replies: ReplyConfig{TTL: 24 * time.Hour},
		Sync: SyncConfig{
			RateLimit: 2,
			Timeout:   30 * time.Second,
		},
	}
}

// LoadDotEnv loads a .env file outside production. A missing file is not
// an error. Values in the file override the process environment.
func LoadDotEnv(path string) error {
	if os.Getenv("ORDERS_ENV") == EnvProduction {
		return nil
	}
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	slog.Debug("environment loaded from file", slog.String("path", path))
	return nil
}

// LoadServiceConfig reads the configuration from environment variables.
//
// # Outputs
//
//   - ServiceConfig: Defaults overridden by every variable that is set.
//   - error: Non-nil if a variable does not parse or validation fails.
func LoadServiceConfig() (ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	var errs []error

	cfg.Env = getenv("ORDERS_ENV", cfg.Env)
	cfg.HTTPAddr = getenv("ORDERS_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = strings.ToLower(getenv("ORDERS_LOG_LEVEL", cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(getenv("ORDERS_LOG_FORMAT", cfg.LogFormat))
	cfg.ShutdownTimeout = durationEnv("ORDERS_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, &errs)
	cfg.Locale = strings.ToLower(getenv("ORDERS_LOCALE", cfg.Locale))
	cfg.AllowedUsers = listEnv("ORDERS_ALLOWED_USERS")

	c := &cfg.Catalog
	c.Backend = strings.ToLower(getenv("ORDERS_CATALOG_BACKEND", c.Backend))
	c.File = getenv("ORDERS_CATALOG_FILE", c.File)
	c.Watch = boolEnv("ORDERS_CATALOG_WATCH", c.Watch, &errs)
	c.WeaviateHost = getenv("WEAVIATE_HOST", c.WeaviateHost)
	c.WeaviateScheme = getenv("WEAVIATE_SCHEME", c.WeaviateScheme)
	c.WeaviateAPIKey = getenv("WEAVIATE_API_KEY", c.WeaviateAPIKey)
	c.WeaviateClass = getenv("WEAVIATE_CLASS", c.WeaviateClass)
	c.PostgresDSN = getenv("ORDERS_POSTGRES_DSN", c.PostgresDSN)
	c.Semantic = boolEnv("ORDERS_SEMANTIC_SEARCH", c.Semantic, &errs)
	c.EmbeddingURL = getenv("EMBEDDING_SERVICE_URL", c.EmbeddingURL)
	c.EmbeddingModel = getenv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.CacheDir = getenv("ORDERS_CACHE_DIR", c.CacheDir)
	c.MatchLimit = intEnv("ORDERS_MATCH_LIMIT", c.MatchLimit, &errs)
	c.MatchTimeout = durationEnv("ORDERS_MATCH_TIMEOUT", c.MatchTimeout, &errs)

	fallbackModel := getenv("OLLAMA_MODEL", DefaultResponderModel)
	provider, err := providers.LoadProviderConfig(providers.RoleResponder, fallbackModel)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.Responder.Provider = provider
	}
	cfg.Responder.Timeout = durationEnv("ORDERS_RESPONDER_TIMEOUT", cfg.Responder.Timeout, &errs)
	cfg.Responder.Temperature = floatEnv("ORDERS_RESPONDER_TEMPERATURE", cfg.Responder.Temperature, &errs)
	cfg.Responder.MaxTokens = intEnv("ORDERS_RESPONDER_MAX_TOKENS", cfg.Responder.MaxTokens, &errs)

	cfg.Replies.RedisURL = getenv("ORDERS_REDIS_URL", cfg.Replies.RedisURL)
	cfg.Replies.TTL = durationEnv("ORDERS_REPLY_TTL", cfg.Replies.TTL, &errs)

	cfg.Sync.WooURL = getenv("WOOCOMMERCE_URL", cfg.Sync.WooURL)
	cfg.Sync.WooKey = getenv("WOOCOMMERCE_KEY", cfg.Sync.WooKey)
	cfg.Sync.WooSecret = getenv("WOOCOMMERCE_SECRET", cfg.Sync.WooSecret)
	cfg.Sync.RateLimit = floatEnv("WOOCOMMERCE_RATE_LIMIT", cfg.Sync.RateLimit, &errs)
	cfg.Sync.Timeout = durationEnv("WOOCOMMERCE_TIMEOUT", cfg.Sync.Timeout, &errs)

	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c ServiceConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel maps LogLevel to a slog level.
func (c ServiceConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Environment helpers
// =============================================================================

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func listEnv(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intEnv(key string, def int, errs *[]error) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func floatEnv(key string, def float64, errs *[]error) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a number", key, v))
		return def
	}
	return f
}

func boolEnv(key string, def bool, errs *[]error) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

// durationEnv accepts Go durations ("5s") or a bare number of seconds.
func durationEnv(key string, def time.Duration, errs *[]error) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}
