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
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
)

// chatTracerName is the shared OTel tracer name for all ChatClient adapters.
const chatTracerName = "orderdesk.providers"

// Call outcomes used as metric labels. Every outcome except outcomeOK makes
// the pipeline fall back to the deterministic reply.
const (
	outcomeOK           = "ok"
	outcomeTimeout      = "timeout"
	outcomeCanceled     = "canceled"
	outcomeUnreachable  = "unreachable"
	outcomeAuth         = "auth"
	outcomeModelMissing = "model_missing"
	outcomeRateLimited  = "rate_limited"
	outcomeServer       = "server"
	outcomeEmpty        = "empty"
	outcomeMisconfig    = "misconfigured"
	outcomeUnknown      = "unknown"
)

var (
	// errNilClient is returned by an adapter built without a backend client.
	errNilClient = errors.New("chat client is nil")

	// errEmptyResponse is returned when the backend answered without choices.
	errEmptyResponse = errors.New("empty response")
)

var (
	// chatCalls counts responder chat calls.
	//
	// Labels:
	//   - provider: "ollama", "openai"
	//   - model: the configured model; bounded by deployment config
	//   - outcome: one of the outcome* constants
	chatCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "chat",
			Name:      "calls_total",
			Help:      "Responder chat calls by provider, model and outcome.",
		},
		[]string{"provider", "model", "outcome"},
	)

	// chatLatency covers the whole backend call. Local reasoning models are
	// slow, hence the long tail buckets.
	chatLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "orderdesk",
			Subsystem: "chat",
			Name:      "call_duration_seconds",
			Help:      "Responder chat call duration in seconds.",
			Buckets:   []float64{0.25, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "outcome"},
	)

	chatRateLimitWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "orderdesk",
			Subsystem: "chat",
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting for the chat rate limiter.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	chatRateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "orderdesk",
			Subsystem: "chat",
			Name:      "rate_limit_rejections_total",
			Help:      "Chat calls abandoned because the caller gave up waiting for the limiter.",
		},
	)
)

// classifyChatError maps an adapter error to a call outcome.
//
// # Description
//
// Typed errors are checked first: context errors, the adapter sentinels, and
// the HTTP status carried by go-openai errors. Ollama errors arrive from
// langchaingo as plain text, so the status and connection failures are
// recognised from the message as a last resort.
//
// # Outputs
//
//   - string: outcomeOK for a nil error, otherwise a failure outcome.
func classifyChatError(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	case errors.Is(err, context.Canceled):
		return outcomeCanceled
	case errors.Is(err, errNilClient):
		return outcomeMisconfig
	case errors.Is(err, errEmptyResponse):
		return outcomeEmpty
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return outcomeForStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return outcomeForStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return outcomeTimeout
		}
		return outcomeUnreachable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return outcomeUnreachable
	case strings.Contains(msg, "not found, try pulling"), strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return outcomeModelMissing
	default:
		return outcomeUnknown
	}
}

// outcomeForStatus maps a backend HTTP status to an outcome.
func outcomeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return outcomeAuth
	case status == http.StatusNotFound:
		return outcomeModelMissing
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status >= http.StatusInternalServerError:
		return outcomeServer
	default:
		return outcomeUnknown
	}
}

// recordChatCall records one finished adapter call and returns its outcome.
func recordChatCall(provider, model string, duration time.Duration, err error) string {
	outcome := classifyChatError(err)
	chatCalls.WithLabelValues(provider, model, outcome).Inc()
	chatLatency.WithLabelValues(provider, outcome).Observe(duration.Seconds())
	return outcome
}
