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
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// =============================================================================
// classifyChatError Tests
// =============================================================================

// dialTimeout is a net.Error reporting a timeout.
type dialTimeout struct{}

func (dialTimeout) Error() string   { return "dial tcp: i/o timeout" }
func (dialTimeout) Timeout() bool   { return true }
func (dialTimeout) Temporary() bool { return true }

func TestClassifyChatError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, outcomeOK},
		{"deadline", fmt.Errorf("ollama chat: %w", context.DeadlineExceeded), outcomeTimeout},
		{"canceled", fmt.Errorf("ollama chat: %w", context.Canceled), outcomeCanceled},
		{"nil client", fmt.Errorf("openai: %w", errNilClient), outcomeMisconfig},
		{"empty", fmt.Errorf("ollama chat: %w", errEmptyResponse), outcomeEmpty},
		{"openai auth", fmt.Errorf("openai returned 401: %w", &openai.APIError{HTTPStatusCode: 401}), outcomeAuth},
		{"openai unknown model", &openai.APIError{HTTPStatusCode: 404}, outcomeModelMissing},
		{"openai throttled", &openai.RequestError{HTTPStatusCode: 429, Err: errors.New("slow down")}, outcomeRateLimited},
		{"openai gateway", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, outcomeServer},
		{"openai bad request", &openai.APIError{HTTPStatusCode: 400}, outcomeUnknown},
		{"network timeout", fmt.Errorf("ollama chat: %w", dialTimeout{}), outcomeTimeout},
		{"ollama down", errors.New("ollama chat: dial tcp 127.0.0.1:11434: connect: connection refused"), outcomeUnreachable},
		{"ollama model not pulled", errors.New(`ollama chat: model "deepseek-r1:7b" not found, try pulling it first`), outcomeModelMissing},
		{"unknown", errors.New("something odd"), outcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyChatError(tt.err); got != tt.expected {
				t.Errorf("classifyChatError(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRecordChatCall_ReturnsOutcome(t *testing.T) {
	if got := recordChatCall(ProviderOllama, "deepseek-r1:7b", 10*time.Millisecond, nil); got != outcomeOK {
		t.Errorf("outcome = %q, want ok", got)
	}
	err := &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable}
	if got := recordChatCall(ProviderOpenAI, "gpt-4o-mini", 10*time.Millisecond, err); got != outcomeServer {
		t.Errorf("outcome = %q, want server", got)
	}
}

func TestChat_SpanCarriesOutcome(t *testing.T) {
	exporter := setupTestTracer(t)

	a := &OllamaChatAdapter{llm: &fakeGenerator{}, defaultModel: "m"}
	if _, err := a.Chat(context.Background(), userMessages("hi"), ChatOptions{}); err == nil {
		t.Fatal("expected empty response error")
	}

	for _, s := range exporter.GetSpans() {
		for _, attr := range s.Attributes {
			if string(attr.Key) == "outcome" {
				if attr.Value.AsString() != outcomeEmpty {
					t.Errorf("outcome = %q, want %q", attr.Value.AsString(), outcomeEmpty)
				}
				return
			}
		}
	}
	t.Error("outcome attribute not found")
}

// =============================================================================
// OTel Span Tests
// =============================================================================

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

func TestChat_SpanCreated_AllProviders(t *testing.T) {
	server, _ := chatMockServer(t, http.StatusOK, chatOpenAIMockResponse)
	defer server.Close()

	providers := []struct {
		name     string
		client   ChatClient
		spanName string
	}{
		{ProviderOllama, &OllamaChatAdapter{llm: &fakeGenerator{answer: "Hello from mock"}, defaultModel: "m"}, "providers.OllamaChatAdapter.Chat"},
		{ProviderOpenAI, NewOpenAIChatAdapter("test-key", "gpt-4o-mini", server.URL+"/v1"), "providers.OpenAIChatAdapter.Chat"},
	}

	for _, p := range providers {
		t.Run(p.name, func(t *testing.T) {
			exporter := setupTestTracer(t)

			result, err := p.client.Chat(context.Background(), userMessages("Hello"), ChatOptions{Temperature: 0.7})
			if err != nil {
				t.Fatalf("Chat() error: %v", err)
			}
			if result != "Hello from mock" {
				t.Errorf("result = %q", result)
			}

			found := false
			for _, s := range exporter.GetSpans() {
				if s.Name != p.spanName {
					continue
				}
				found = true
				for _, attr := range s.Attributes {
					if string(attr.Key) == "provider" && attr.Value.AsString() != p.name {
						t.Errorf("span provider = %q, want %q", attr.Value.AsString(), p.name)
					}
				}
			}
			if !found {
				t.Errorf("span %q not found", p.spanName)
			}
		})
	}
}

func TestChat_SpanRecordsError(t *testing.T) {
	exporter := setupTestTracer(t)

	server, _ := chatMockServer(t, http.StatusInternalServerError, chatOpenAIErrorResponse)
	defer server.Close()

	client := NewOpenAIChatAdapter("test-key", "gpt-4o-mini", server.URL+"/v1")
	if _, err := client.Chat(context.Background(), userMessages("Hello"), ChatOptions{}); err == nil {
		t.Fatal("expected error for 500 response")
	}

	found := false
	for _, s := range exporter.GetSpans() {
		if s.Name == "providers.OpenAIChatAdapter.Chat" {
			found = true
			if s.Status.Code != codes.Error {
				t.Errorf("span status = %v, want %v", s.Status.Code, codes.Error)
			}
		}
	}
	if !found {
		t.Error("error span not found")
	}
}
