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
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// DefaultOpenAIModel is used when no model is configured for OpenAI.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIChatAdapter implements ChatClient over the OpenAI chat completions API.
//
// Description:
//
//	Any OpenAI-compatible gateway works by setting the base URL.
//
// Thread Safety: OpenAIChatAdapter is safe for concurrent use.
type OpenAIChatAdapter struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIChatAdapter creates a new OpenAIChatAdapter.
//
// Inputs:
//   - apiKey: OpenAI API key.
//   - model: Default model. Empty means DefaultOpenAIModel.
//   - baseURL: Optional endpoint override, including the /v1 suffix.
func NewOpenAIChatAdapter(apiKey, model, baseURL string) *OpenAIChatAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIChatAdapter{
		client:       openai.NewClientWithConfig(cfg),
		defaultModel: model,
	}
}

// Chat implements ChatClient.
func (a *OpenAIChatAdapter) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("openai: %w", errNilClient)
	}

	model := opts.Model
	if model == "" {
		model = a.defaultModel
	}

	ctx, span := otel.Tracer(chatTracerName).Start(ctx, "providers.OpenAIChatAdapter.Chat",
		trace.WithAttributes(
			attribute.String("provider", ProviderOpenAI),
			attribute.String("model", model),
			attribute.Int("message_count", len(messages)),
			attribute.Float64("temperature", opts.Temperature),
		),
	)
	defer span.End()

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}
	if opts.Temperature >= 0 {
		req.Temperature = float32(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	startTime := time.Now()
	result, err := a.complete(ctx, req)
	duration := time.Since(startTime)

	outcome := recordChatCall(ProviderOpenAI, model, duration, err)
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return result, nil
}

func (a *OpenAIChatAdapter) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai returned %d: %w", apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", fmt.Errorf("openai returned %d: %w", reqErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat: %w", errEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(role string) string {
	switch role {
	case datatypes.RoleSystem:
		return openai.ChatMessageRoleSystem
	case datatypes.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}
