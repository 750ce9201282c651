// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/providers"
)

var configEnvKeys = []string{
	"ORDERS_ENV", "ORDERS_HTTP_ADDR", "ORDERS_LOG_LEVEL", "ORDERS_LOG_FORMAT", "ORDERS_SHUTDOWN_TIMEOUT",
	"ORDERS_LOCALE", "ORDERS_ALLOWED_USERS", "ORDERS_CATALOG_BACKEND", "ORDERS_CATALOG_FILE",
	"ORDERS_CATALOG_WATCH", "WEAVIATE_HOST", "WEAVIATE_SCHEME", "WEAVIATE_API_KEY", "WEAVIATE_CLASS",
	"ORDERS_POSTGRES_DSN", "ORDERS_SEMANTIC_SEARCH", "EMBEDDING_SERVICE_URL", "EMBEDDING_MODEL",
	"ORDERS_CACHE_DIR", "ORDERS_MATCH_LIMIT", "ORDERS_MATCH_TIMEOUT", "OLLAMA_MODEL", "OLLAMA_BASE_URL",
	"OLLAMA_URL", "ORDERS_RESPONDER_PROVIDER", "ORDERS_RESPONDER_MODEL", "ORDERS_RESPONDER_RATE_LIMIT",
	"ORDERS_RESPONDER_TIMEOUT", "ORDERS_RESPONDER_TEMPERATURE", "ORDERS_RESPONDER_MAX_TOKENS",
	"OPENAI_API_KEY", "OPENAI_BASE_URL", "ORDERS_REDIS_URL", "ORDERS_REPLY_TTL", "WOOCOMMERCE_URL",
	"WOOCOMMERCE_KEY", "WOOCOMMERCE_SECRET", "WOOCOMMERCE_RATE_LIMIT", "WOOCOMMERCE_TIMEOUT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func TestDefaultServiceConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultServiceConfig().Validate())
}

func TestLoadServiceConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8088", cfg.HTTPAddr)
	assert.Equal(t, "fr", cfg.Locale)
	assert.Equal(t, BackendFile, cfg.Catalog.Backend)
	assert.Equal(t, 5, cfg.Catalog.MatchLimit)
	assert.Equal(t, 5*time.Second, cfg.Catalog.MatchTimeout)
	assert.Empty(t, cfg.AllowedUsers)
	assert.Equal(t, providers.ProviderOllama, cfg.Responder.Provider.Provider)
	assert.Equal(t, DefaultResponderModel, cfg.Responder.Provider.Model)
	assert.False(t, cfg.IsProduction())
}

func TestLoadServiceConfig_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORDERS_HTTP_ADDR", ":9090")
	t.Setenv("ORDERS_LOG_LEVEL", "DEBUG")
	t.Setenv("ORDERS_LOCALE", "en")
	t.Setenv("ORDERS_ALLOWED_USERS", " 42, 1001 ,,")
	t.Setenv("ORDERS_CATALOG_BACKEND", "weaviate")
	t.Setenv("WEAVIATE_HOST", "localhost:8080")
	t.Setenv("ORDERS_MATCH_TIMEOUT", "2")
	t.Setenv("ORDERS_REPLY_TTL", "1h")
	t.Setenv("ORDERS_RESPONDER_PROVIDER", "none")

	cfg, err := LoadServiceConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, []string{"42", "1001"}, cfg.AllowedUsers)
	assert.Equal(t, BackendWeaviate, cfg.Catalog.Backend)
	assert.Equal(t, 2*time.Second, cfg.Catalog.MatchTimeout)
	assert.Equal(t, time.Hour, cfg.Replies.TTL)
	assert.False(t, cfg.Responder.Provider.Enabled())
}

func TestLoadServiceConfig_ParseErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ORDERS_MATCH_LIMIT", "five"},
		{"ORDERS_CATALOG_WATCH", "sometimes"},
		{"ORDERS_MATCH_TIMEOUT", "soon"},
		{"ORDERS_RESPONDER_TEMPERATURE", "warm"},
		{"ORDERS_RESPONDER_PROVIDER", "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadServiceConfig()
			assert.Error(t, err)
		})
	}
}

func TestValidate_BackendRequirements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"weaviate without host", func(c *ServiceConfig) { c.Catalog.Backend = BackendWeaviate }},
		{"postgres without dsn", func(c *ServiceConfig) { c.Catalog.Backend = BackendPostgres }},
		{"unknown backend", func(c *ServiceConfig) { c.Catalog.Backend = "chroma" }},
		{"bad log level", func(c *ServiceConfig) { c.LogLevel = "loud" }},
		{"zero match limit", func(c *ServiceConfig) { c.Catalog.MatchLimit = 0 }},
		{"bad redis url", func(c *ServiceConfig) { c.Replies.RedisURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServiceConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERS_HTTP_ADDR=:7070\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, ":7070", os.Getenv("ORDERS_HTTP_ADDR"))
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	clearEnv(t)
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadDotEnv_SkippedInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORDERS_ENV", "production")
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERS_HTTP_ADDR=:7070\n"), 0o600))

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "", os.Getenv("ORDERS_HTTP_ADDR"))
}
