// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package respond

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/providers"
)

// DefaultGenerativeTimeout bounds one generative reply.
const DefaultGenerativeTimeout = 30 * time.Second

// ErrEmptyReply is returned when the model answered with nothing usable.
var ErrEmptyReply = errors.New("generative reply is empty")

// ErrNoItems is returned for orders without items. Those always get the
// deterministic "not understood" text.
var ErrNoItems = errors.New("order has no items")

// thinkBlock matches reasoning sections emitted by some local models.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Generative asks a chat model to phrase the reply.
//
// # Description
//
// The prompt carries the customer's original message and the verdict lines
// and asks for a friendly confirmation in the phrasebook's language. The
// model's reasoning blocks are removed. Any failure, including an empty
// answer, is returned as an error so the caller can fall back to the
// Composer.
//
// # Thread Safety
//
// Safe for concurrent use if the ChatClient is.
type Generative struct {
	client  providers.ChatClient
	phrases lexicon.Phrasebook
	opts    providers.ChatOptions
	timeout time.Duration
}

// GenerativeOption configures a Generative responder.
type GenerativeOption func(*Generative)

// WithChatOptions sets the options passed to every chat call.
func WithChatOptions(opts providers.ChatOptions) GenerativeOption {
	return func(g *Generative) { g.opts = opts }
}

// WithGenerativeTimeout sets the per-reply timeout.
func WithGenerativeTimeout(d time.Duration) GenerativeOption {
	return func(g *Generative) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerative creates a Generative responder over client.
func NewGenerative(client providers.ChatClient, pb lexicon.Phrasebook, opts ...GenerativeOption) *Generative {
	g := &Generative{
		client:  client,
		phrases: pb,
		opts:    providers.ChatOptions{Temperature: 0.7},
		timeout: DefaultGenerativeTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements Responder.
func (g *Generative) Name() string {
	return NameGenerative
}

// Respond implements Responder.
//
// # Outputs
//
//   - string: The model's reply with reasoning blocks removed.
//   - error: ErrNoItems for an empty order, ErrEmptyReply for a blank answer,
//     or the chat error.
func (g *Generative) Respond(ctx context.Context, order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) (string, error) {
	if order.IsEmpty() {
		return "", ErrNoItems
	}
	if g.client == nil {
		return "", fmt.Errorf("generative reply: chat client is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	messages := []datatypes.Message{{Role: datatypes.RoleUser, Content: g.BuildPrompt(order, verdicts)}}
	raw, err := g.client.Chat(ctx, messages, g.opts)
	if err != nil {
		return "", fmt.Errorf("generative reply: %w", err)
	}

	reply := StripThinking(raw)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// BuildPrompt renders the prompt for order and verdicts.
func (g *Generative) BuildPrompt(order datatypes.ParsedOrder, verdicts []datatypes.StockVerdict) string {
	lines := make([]string, len(verdicts))
	for i, v := range verdicts {
		lines[i] = v.Message
	}
	return fmt.Sprintf(g.phrases.Prompt, order.OriginalText, strings.Join(lines, "\n"))
}

// StripThinking removes <think> blocks and surrounding whitespace. An
// unterminated block swallows the rest of the text.
func StripThinking(s string) string {
	s = thinkBlock.ReplaceAllString(s, "")
	if i := strings.Index(s, "<think>"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
