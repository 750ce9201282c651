// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package providers

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Provider constants for supported chat backends.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	// ProviderNone disables the role. The pipeline then always uses the
	// deterministic composer.
	ProviderNone = "none"
)

// RoleResponder is the only LLM role in the order desk.
const RoleResponder = "RESPONDER"

// DefaultOllamaURL is used when no Ollama URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// ProviderConfig holds the configuration for a single provider instance.
//
// Description:
//
//	Specifies which provider to use, which model, and any provider-specific
//	settings. Used by ProviderFactory to create the right adapter.
type ProviderConfig struct {
	// Provider is the backend to use: "ollama", "openai" or "none".
	Provider string

	// Model is the provider-specific model identifier.
	// Examples: "deepseek-r1:7b" (Ollama), "gpt-4o-mini" (OpenAI).
	Model string

	// BaseURL is an optional endpoint override.
	// For Ollama: defaults to OLLAMA_BASE_URL or http://localhost:11434.
	// For OpenAI: OPENAI_BASE_URL, for compatible gateways.
	BaseURL string

	// APIKey is the authentication key for cloud providers.
	APIKey string

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64
}

// Enabled reports whether the role has a backend.
func (c ProviderConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// ValidProviders contains the set of valid provider names.
var ValidProviders = []string{ProviderOllama, ProviderOpenAI, ProviderNone}

// isValidProvider checks if a provider name is valid.
func isValidProvider(provider string) bool {
	for _, p := range ValidProviders {
		if provider == p {
			return true
		}
	}
	return false
}

// ResolveOllamaURL resolves the Ollama server URL from environment variables.
//
// Description:
//
//	Resolution order:
//	  1. OLLAMA_BASE_URL (preferred)
//	  2. OLLAMA_URL (deprecated, emits warning)
//	  3. http://localhost:11434 (default)
func ResolveOllamaURL() string {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		return url
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		slog.Warn("OLLAMA_URL is deprecated, use OLLAMA_BASE_URL instead",
			slog.String("ollama_url", url))
		return url
	}
	return DefaultOllamaURL
}

// InferProvider infers the provider from a model name prefix.
//
// Description:
//
//	"gpt-*" and "o1-*"/"o3-*" map to "openai". Anything else returns "" and
//	the caller keeps its default.
func InferProvider(model string) string {
	for _, prefix := range []string{"gpt-", "o1-", "o3-"} {
		if strings.HasPrefix(model, prefix) {
			return ProviderOpenAI
		}
	}
	return ""
}

// LoadProviderConfig reads the provider configuration of one role from
// environment variables.
//
// Description:
//
//	Resolution order:
//	  1. ORDERS_<ROLE>_PROVIDER -> explicit provider
//	  2. Fallback: "ollama"
//	  3. ORDERS_<ROLE>_MODEL -> explicit model
//	  4. Fallback: modelFallback
//	  5. ORDERS_<ROLE>_RATE_LIMIT -> requests per second
//
// Inputs:
//   - role: Role name, e.g. RoleResponder.
//   - modelFallback: Model used when ORDERS_<ROLE>_MODEL is unset.
//
// Outputs:
//   - ProviderConfig: The resolved configuration.
//   - error: Non-nil if the provider is invalid, the rate limit does not
//     parse, or an explicit provider has no model.
//
// Example:
//
//	cfg, err := LoadProviderConfig(RoleResponder, "deepseek-r1:7b")
func LoadProviderConfig(role, modelFallback string) (ProviderConfig, error) {
	providerEnv := fmt.Sprintf("ORDERS_%s_PROVIDER", role)
	modelEnv := fmt.Sprintf("ORDERS_%s_MODEL", role)
	rateEnv := fmt.Sprintf("ORDERS_%s_RATE_LIMIT", role)

	explicitProvider := strings.ToLower(strings.TrimSpace(os.Getenv(providerEnv)))
	provider := explicitProvider
	if provider == "" {
		provider = ProviderOllama
	}
	if !isValidProvider(provider) {
		return ProviderConfig{}, fmt.Errorf("invalid provider %q for %s (valid: %v)", provider, providerEnv, ValidProviders)
	}
	if provider == ProviderNone {
		return ProviderConfig{Provider: ProviderNone}, nil
	}

	model := os.Getenv(modelEnv)
	if model == "" {
		model = modelFallback
	}

	cfg := ProviderConfig{
		Provider: provider,
		Model:    model,
	}

	switch provider {
	case ProviderOllama:
		cfg.BaseURL = ResolveOllamaURL()
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if raw := os.Getenv(rateEnv); raw != "" {
		rps, err := strconv.ParseFloat(raw, 64)
		if err != nil || rps < 0 {
			return ProviderConfig{}, fmt.Errorf("%s must be a non-negative number, got %q", rateEnv, raw)
		}
		cfg.RateLimit = rps
	}

	if explicitProvider != "" && cfg.Model == "" {
		return ProviderConfig{}, fmt.Errorf(
			"%s is %q but no model specified (set %s or pass fallback)",
			providerEnv, provider, modelEnv,
		)
	}

	return cfg, nil
}
