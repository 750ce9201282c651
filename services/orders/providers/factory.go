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
	"errors"
	"fmt"
	"log/slog"
)

// ErrDisabled is returned by CreateChatClient for the "none" provider.
var ErrDisabled = errors.New("provider disabled")

// ProviderFactory creates the right chat adapter for a provider config.
//
// Thread Safety: ProviderFactory is safe for concurrent use after construction.
type ProviderFactory struct {
	logger *slog.Logger
}

// NewProviderFactory creates a new ProviderFactory. A nil logger means
// slog.Default().
func NewProviderFactory(logger *slog.Logger) *ProviderFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderFactory{logger: logger}
}

// CreateChatClient creates a ChatClient adapter for the given provider config.
//
// Description:
//
//	Builds the adapter for cfg.Provider and wraps it in Limited when
//	cfg.RateLimit is positive.
//
// Inputs:
//   - cfg: Provider configuration specifying provider type and model.
//
// Outputs:
//   - ChatClient: The chat adapter for the specified provider.
//   - error: ErrDisabled for "none". Non-nil if the provider is unsupported
//     or construction fails.
//
// Example:
//
//	client, err := factory.CreateChatClient(ProviderConfig{
//	    Provider: "ollama",
//	    Model:    "deepseek-r1:7b",
//	    BaseURL:  "http://localhost:11434",
//	})
func (f *ProviderFactory) CreateChatClient(cfg ProviderConfig) (ChatClient, error) {
	var client ChatClient

	switch cfg.Provider {
	case ProviderNone, "":
		return nil, ErrDisabled

	case ProviderOllama:
		adapter, err := NewOllamaChatAdapter(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		client = adapter

	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY required for OpenAI provider")
		}
		client = NewOpenAIChatAdapter(cfg.APIKey, cfg.Model, cfg.BaseURL)

	default:
		return nil, fmt.Errorf("unsupported provider: %q (valid: %v)", cfg.Provider, ValidProviders)
	}

	if cfg.RateLimit > 0 {
		client = NewLimited(client, cfg.RateLimit, 1)
	}

	f.logger.Info("chat client created",
		slog.String("provider", cfg.Provider),
		slog.String("model", cfg.Model),
		slog.Float64("rate_limit", cfg.RateLimit),
	)
	return client, nil
}
