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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
	"github.com/lapaisee/orderdesk/services/orders/lexicon"
	"github.com/lapaisee/orderdesk/services/orders/providers"
)

// scriptedChat answers with a fixed reply and records the request.
type scriptedChat struct {
	reply    string
	err      error
	delay    time.Duration
	messages []datatypes.Message
	opts     providers.ChatOptions
}

func (s *scriptedChat) Chat(ctx context.Context, messages []datatypes.Message, opts providers.ChatOptions) (string, error) {
	s.messages = messages
	s.opts = opts
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func newGenerative(chat providers.ChatClient, opts ...GenerativeOption) *Generative {
	return NewGenerative(chat, lexicon.MustLoad().Phrasebook("fr"), opts...)
}

func TestGenerative_PromptCarriesMessageAndVerdicts(t *testing.T) {
	chat := &scriptedChat{reply: "Bonjour, tout est prêt !"}
	g := newGenerative(chat)

	o := datatypes.ParsedOrder{OriginalText: "2 fûts de jonquille stp", Items: []datatypes.RequestedItem{kegs}}
	v := []datatypes.StockVerdict{{Item: kegs, Message: "✅ Jonquille Fût 20L: 10 en stock (demande: 2)"}}

	reply, err := g.Respond(context.Background(), o, v)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour, tout est prêt !", reply)

	require.Len(t, chat.messages, 1)
	assert.Equal(t, datatypes.RoleUser, chat.messages[0].Role)
	prompt := chat.messages[0].Content
	assert.Contains(t, prompt, "L'Apaisée")
	assert.Contains(t, prompt, `"2 fûts de jonquille stp"`)
	assert.Contains(t, prompt, "✅ Jonquille Fût 20L: 10 en stock (demande: 2)")
	assert.Contains(t, prompt, "CHF")
	assert.Equal(t, 0.7, chat.opts.Temperature)
}

func TestGenerative_StripsThinking(t *testing.T) {
	chat := &scriptedChat{reply: "<think>le client veut des fûts</think>\n\nParfait, c'est noté !"}
	reply, err := newGenerative(chat).Respond(context.Background(),
		datatypes.ParsedOrder{Items: []datatypes.RequestedItem{kegs}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Parfait, c'est noté !", reply)
}

func TestGenerative_EmptyAnswerIsFailure(t *testing.T) {
	for _, raw := range []string{"", "   ", "<think>hmm</think>", "<think>never closed"} {
		_, err := newGenerative(&scriptedChat{reply: raw}).Respond(context.Background(),
			datatypes.ParsedOrder{Items: []datatypes.RequestedItem{kegs}}, nil)
		assert.ErrorIs(t, err, ErrEmptyReply, "raw %q", raw)
	}
}

func TestGenerative_ChatErrorPropagates(t *testing.T) {
	cause := errors.New("connection refused")
	_, err := newGenerative(&scriptedChat{err: cause}).Respond(context.Background(),
		datatypes.ParsedOrder{Items: []datatypes.RequestedItem{kegs}}, nil)
	assert.ErrorIs(t, err, cause)
}

func TestGenerative_EmptyOrder(t *testing.T) {
	chat := &scriptedChat{reply: "x"}
	_, err := newGenerative(chat).Respond(context.Background(), datatypes.ParsedOrder{}, nil)
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Nil(t, chat.messages)
}

func TestGenerative_Timeout(t *testing.T) {
	chat := &scriptedChat{reply: "late", delay: time.Second}
	g := newGenerative(chat, WithGenerativeTimeout(10*time.Millisecond))
	_, err := g.Respond(context.Background(), datatypes.ParsedOrder{Items: []datatypes.RequestedItem{kegs}}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerative_NilClient(t *testing.T) {
	_, err := newGenerative(nil).Respond(context.Background(), datatypes.ParsedOrder{Items: []datatypes.RequestedItem{kegs}}, nil)
	assert.Error(t, err)
}

func TestStripThinking(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"  padded \n", "padded"},
		{"<think>a</think>b<think>c</think>d", "bd"},
		{"<think>multi\nline</think>\nok", "ok"},
		{"keep<think>tail", "keep"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripThinking(tt.in), "in %q", tt.in)
	}
}
