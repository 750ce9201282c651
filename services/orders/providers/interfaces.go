// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package providers defines provider-agnostic chat interfaces and factories
// for the language-model backends used to phrase customer replies.
//
// Thread Safety:
//
//	All interfaces in this package must be implemented as safe for concurrent use.
package providers

import (
	"context"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// ChatClient is the minimal interface the generative responder needs.
//
// Description:
//
//	One request, one answer. No tool calls, no streaming.
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	//
	// Inputs:
	//   - ctx: Context for cancellation and timeout.
	//   - messages: Conversation messages (system, user, assistant).
	//   - opts: Provider-agnostic chat options.
	//
	// Outputs:
	//   - string: The assistant's response text.
	//   - error: Non-nil on failure.
	Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error)
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Temperature controls randomness (0.0-1.0). A negative value omits it
	// from the request and leaves the provider default.
	Temperature float64

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int

	// Model overrides the adapter's default model for this request.
	Model string
}
