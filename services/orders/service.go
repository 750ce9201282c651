// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orders exposes the order desk over HTTP.
//
// It wires the message pipeline to callers: access control, duplicate
// message suppression, catalog reloads and readiness.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/lapaisee/orderdesk/services/orders/pipeline"
	"github.com/lapaisee/orderdesk/services/orders/redact"
)

// Reloader refreshes the catalog and returns the number of entries published.
type Reloader func(ctx context.Context) (int, error)

// ErrReloadUnsupported is returned by Reload when no reloader is configured.
var ErrReloadUnsupported = errors.New("catalog reload not configured")

// Service is the transport-independent order desk.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	pipeline *pipeline.Pipeline
	access   AccessPolicy
	replies  ReplyCache
	reloader Reloader
	ready    atomic.Bool
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAccessPolicy sets the access policy. The default is Open.
func WithAccessPolicy(p AccessPolicy) ServiceOption {
	return func(s *Service) { s.access = p }
}

// WithReplyCache sets the duplicate-suppression cache.
func WithReplyCache(c ReplyCache) ServiceOption {
	return func(s *Service) { s.replies = c }
}

// WithReloader sets the catalog reloader.
func WithReloader(r Reloader) ServiceOption {
	return func(s *Service) { s.reloader = r }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service over p. It starts not ready.
func NewService(p *pipeline.Pipeline, opts ...ServiceOption) *Service {
	s := &Service{
		pipeline: p,
		access:   OpenAccess(),
		replies:  NewMemoryReplyCache(0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.access.IsOpen() {
		s.logger.Warn("access policy is open: every caller is admitted")
	} else {
		s.logger.Info("access policy configured", slog.String("policy", s.access.String()))
	}
	return s
}

// Pipeline returns the message pipeline.
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Access returns the access policy.
func (s *Service) Access() AccessPolicy {
	return s.access
}

// SetReady marks the service ready or not.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports readiness.
func (s *Service) IsReady() bool {
	return s.ready.Load()
}

// ProcessMessage runs text through the pipeline at most once per messageID.
//
// # Description
//
// An empty messageID disables duplicate suppression. A stored reply is
// returned with replayed=true. A reply cache failure is logged and the
// message is processed anyway.
//
// # Outputs
//
//   - pipeline.Result: The reply and everything behind it.
//   - bool: True when the result was replayed from the cache.
//   - error: ErrDuplicateInFlight while another request holds messageID.
func (s *Service) ProcessMessage(ctx context.Context, messageID, text string) (pipeline.Result, bool, error) {
	if messageID == "" || s.replies == nil {
		return s.pipeline.Run(ctx, text), false, nil
	}

	stored, found, err := s.replies.Begin(ctx, messageID)
	switch {
	case errors.Is(err, ErrDuplicateInFlight):
		return pipeline.Result{}, false, err
	case err != nil:
		s.logger.Warn("reply cache unavailable, processing without duplicate check",
			slog.String("message_id", messageID),
			slog.String("error", redact.Error(err)),
		)
		return s.pipeline.Run(ctx, text), false, nil
	case found:
		return stored, true, nil
	}

	// The claim is released unless the reply was stored, including when the
	// pipeline panics, so a retry is not refused until the TTL runs out.
	completed := false
	defer func() {
		if !completed {
			_ = s.replies.Abandon(context.WithoutCancel(ctx), messageID)
		}
	}()

	res := s.pipeline.Run(ctx, text)
	if err := s.replies.Complete(ctx, messageID, res); err != nil {
		s.logger.Warn("failed to store reply",
			slog.String("message_id", messageID),
			slog.String("error", redact.Error(err)),
		)
		return res, false, nil
	}
	completed = true
	return res, false, nil
}

// Reload refreshes the catalog.
func (s *Service) Reload(ctx context.Context) (int, error) {
	if s.reloader == nil {
		return 0, ErrReloadUnsupported
	}
	n, err := s.reloader(ctx)
	if err != nil {
		return 0, fmt.Errorf("reload catalog: %w", err)
	}
	return n, nil
}
