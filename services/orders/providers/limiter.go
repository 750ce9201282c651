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

	"golang.org/x/time/rate"

	"github.com/lapaisee/orderdesk/services/orders/datatypes"
)

// Limited wraps a ChatClient with a token-bucket rate limiter.
//
// Description:
//
//	Each Chat call waits for a token before delegating. A caller whose
//	context ends while waiting gets the context error and the inner client
//	is never called.
//
// Thread Safety: Safe for concurrent use.
type Limited struct {
	inner   ChatClient
	limiter *rate.Limiter
}

// NewLimited wraps inner with a limit of rps requests per second and the
// given burst. A burst below 1 is raised to 1.
func NewLimited(inner ChatClient, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Chat implements ChatClient.
func (l *Limited) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		chatRateLimitRejections.Inc()
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	chatRateLimitWaits.Observe(time.Since(start).Seconds())
	return l.inner.Chat(ctx, messages, opts)
}
