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
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// contentGenerator is the part of a langchaingo model the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// OllamaChatAdapter implements ChatClient over a local Ollama server.
//
// Description:
//
//	Delegates to the langchaingo Ollama model. The defaultModel is used
//	when ChatOptions.Model is empty.
//
// Thread Safety: OllamaChatAdapter is safe for concurrent use.
type OllamaChatAdapter struct {
	llm          contentGenerator
	defaultModel string
}

// NewOllamaChatAdapter creates an adapter for the Ollama server at baseURL.
//
// Inputs:
//   - baseURL: Ollama server URL. Empty means DefaultOllamaURL.
//   - defaultModel: Fallback model when ChatOptions.Model is empty.
//
// Outputs:
//   - *OllamaChatAdapter: The configured adapter.
//   - error: Non-nil if the langchaingo client cannot be built.
func NewOllamaChatAdapter(baseURL, defaultModel string) (*OllamaChatAdapter, error) {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	opts := []ollama.Option{ollama.WithServerURL(baseURL)}
	if defaultModel != "" {
		opts = append(opts, ollama.WithModel(defaultModel))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Ollama client: %w", err)
	}
	return &OllamaChatAdapter{llm: llm, defaultModel: defaultModel}, nil
}

// Chat implements ChatClient.
func (a *OllamaChatAdapter) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	if a.llm == nil {
		return "", fmt.Errorf("ollama: %w", errNilClient)
	}

	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}
	if model == "" {
		return "", fmt.Errorf("model must be specified in ChatOptions or at adapter construction")
	}

	ctx, span := otel.Tracer(chatTracerName).Start(ctx, "providers.OllamaChatAdapter.Chat",
		trace.WithAttributes(
			attribute.String("provider", ProviderOllama),
			attribute.String("model", model),
			attribute.Int("message_count", len(messages)),
			attribute.Float64("temperature", opts.Temperature),
		),
	)
	defer span.End()

	callOpts := []llms.CallOption{llms.WithModel(model)}
	if opts.Temperature >= 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	startTime := time.Now()
	text, err := a.generate(ctx, messages, callOpts)
	duration := time.Since(startTime)

	outcome := recordChatCall(ProviderOllama, model, duration, err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (a *OllamaChatAdapter) generate(ctx context.Context, messages []datatypes.Message, callOpts []llms.CallOption) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(langchainRole(m.Role), m.Content))
	}

	resp, err := a.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("ollama chat: %w", errEmptyResponse)
	}
	return resp.Choices[0].Content, nil
}

// langchainRole maps a message role to the langchaingo message type.
func langchainRole(role string) llms.ChatMessageType {
	switch role {
	case datatypes.RoleSystem:
		return llms.ChatMessageTypeSystem
	case datatypes.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
