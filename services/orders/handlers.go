// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lapaisee/orderdesk/services/orders/pipeline"
	"github.com/lapaisee/orderdesk/services/orders/redact"
)

// Header names used by the order desk.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUsername  = "X-Username"
)

const (
	ctxRequestID = "request_id"
	ctxUserID    = "user_id"
	ctxUsername  = "username"
)

// =============================================================================
// Request / response types
// =============================================================================

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	// MessageID identifies the inbound message for duplicate suppression.
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// MessageResponse is the reply to POST /messages.
type MessageResponse struct {
	MessageID string `json:"message_id,omitempty"`
	Replayed  bool   `json:"replayed"`
	pipeline.Result
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Text string `json:"text"`
}

// TextResponse carries a single human-readable text.
type TextResponse struct {
	Text string `json:"text"`
}

// WhoAmIResponse echoes the caller identity.
type WhoAmIResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Allowed  bool   `json:"allowed"`
	Text     string `json:"text"`
}

// ReloadResponse reports a catalog reload.
type ReloadResponse struct {
	Entries int `json:"entries"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers serves the order desk HTTP API.
//
// # Thread Safety
//
// Safe for concurrent use.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// getOrCreateRequestID returns the request ID set by RequestIDMiddleware.
func getOrCreateRequestID(c *gin.Context) string {
	if v, ok := c.Get(ctxRequestID); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	id := uuid.NewString()
	c.Set(ctxRequestID, id)
	return id
}

// AccessMiddleware identifies the caller from X-User-ID and applies the
// service's access policy.
//
// Denied callers get 403 with the phrasebook's denial text. Under an open
// policy every admitted request is logged as a warning.
func (h *Handlers) AccessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		username := strings.TrimSpace(c.GetHeader(HeaderUsername))
		c.Set(ctxUserID, userID)
		c.Set(ctxUsername, username)

		policy := h.svc.Access()
		logger := slog.With("request_id", getOrCreateRequestID(c), "user_id", userID)

		if !policy.Allows(userID) {
			logger.Warn("access denied", slog.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: h.svc.Pipeline().Composer().Phrases().Denied,
				Code:  "ACCESS_DENIED",
			})
			return
		}
		if policy.IsOpen() {
			logger.Warn("request admitted by open access policy", slog.String("path", c.FullPath()))
		}
		c.Next()
	}
}

// HandleMessage processes one customer message.
//
// # Description
//
// POST /v1/orders/messages with MessageRequest. Always answers 200 with a
// reply, except 400 for a malformed body and 409 while the same message_id
// is still being processed.
func (h *Handlers) HandleMessage(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleMessage")

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	res, replayed, err := h.svc.ProcessMessage(c.Request.Context(), req.MessageID, req.Text)
	if errors.Is(err, ErrDuplicateInFlight) {
		logger.Info("duplicate message while in flight", slog.String("message_id", req.MessageID))
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_IN_FLIGHT",
		})
		return
	}

	logger.Debug("message handled",
		slog.String("message_id", req.MessageID),
		slog.Bool("replayed", replayed),
		slog.Int("items", len(res.Order.Items)),
	)
	c.JSON(http.StatusOK, MessageResponse{MessageID: req.MessageID, Replayed: replayed, Result: res})
}

// HandleParse extracts the order from a text without checking stock.
func (h *Handlers) HandleParse(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	c.JSON(http.StatusOK, h.svc.Pipeline().Extract(req.Text))
}

// HandleStock lists catalog entries matching ?product=.
func (h *Handlers) HandleStock(c *gin.Context) {
	res := h.svc.Pipeline().Stock(c.Request.Context(), c.Query("product"))
	c.JSON(http.StatusOK, res)
}

// HandleHelp returns the welcome and usage texts.
func (h *Handlers) HandleHelp(c *gin.Context) {
	pb := h.svc.Pipeline().Composer().Phrases()
	if c.Query("topic") == "start" {
		c.JSON(http.StatusOK, TextResponse{Text: pb.Welcome})
		return
	}
	c.JSON(http.StatusOK, TextResponse{Text: pb.Help})
}

// HandleWhoAmI echoes the caller identity so it can be added to the allow-list.
func (h *Handlers) HandleWhoAmI(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	username := c.GetString(ctxUsername)
	pb := h.svc.Pipeline().Composer().Phrases()

	shown := username
	if shown == "" {
		shown = pb.Unnamed
	}
	c.JSON(http.StatusOK, WhoAmIResponse{
		UserID:   userID,
		Username: username,
		Allowed:  h.svc.Access().Allows(userID),
		Text:     fmt.Sprintf(pb.Whoami, userID, shown, userID),
	})
}

// HandleReload refreshes the catalog.
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleReload")

	n, err := h.svc.Reload(c.Request.Context())
	switch {
	case errors.Is(err, ErrReloadUnsupported):
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: err.Error(), Code: "RELOAD_UNSUPPORTED"})
		return
	case err != nil:
		logger.Error("catalog reload failed", slog.String("error", redact.Error(err)))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: redact.Error(err), Code: "RELOAD_FAILED"})
		return
	}
	logger.Info("catalog reloaded", slog.Int("entries", n))
	c.JSON(http.StatusOK, ReloadResponse{Entries: n})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady reports readiness: 503 until the catalog is loaded.
func (h *Handlers) HandleReady(c *gin.Context) {
	if !h.svc.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
