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
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapaisee/orderdesk/services/orders/pipeline"
)

// =============================================================================
// MemoryReplyCache
// =============================================================================

func TestMemoryReplyCache_ClaimCompleteReplay(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReplyCache(time.Hour)

	_, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.Begin(ctx, "m1")
	assert.ErrorIs(t, err, ErrDuplicateInFlight)

	require.NoError(t, c.Complete(ctx, "m1", pipeline.Result{Reply: "ok"}))

	stored, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ok", stored.Reply)
}

func TestMemoryReplyCache_AbandonReleasesClaim(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReplyCache(time.Hour)

	_, _, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, c.Abandon(ctx, "m1"))

	_, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryReplyCache_AbandonKeepsCompleted(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReplyCache(time.Hour)

	_, _, _ = c.Begin(ctx, "m1")
	require.NoError(t, c.Complete(ctx, "m1", pipeline.Result{Reply: "ok"}))
	require.NoError(t, c.Abandon(ctx, "m1"))

	_, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryReplyCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryReplyCache(time.Minute)
	c.now = func() time.Time { return now }

	_, _, _ = c.Begin(ctx, "m1")
	require.NoError(t, c.Complete(ctx, "m1", pipeline.Result{Reply: "ok"}))
	assert.Equal(t, 1, c.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, c.Len())

	_, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryReplyCache_StaleClaimExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryReplyCache(time.Hour)
	c.now = func() time.Time { return now }

	_, _, _ = c.Begin(ctx, "m1")
	now = now.Add(inFlightTTL + time.Second)

	_, found, err := c.Begin(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, found)
}

// =============================================================================
// RedisReplyCache (integration)
// =============================================================================

func TestRedisReplyCache_Integration(t *testing.T) {
	url := os.Getenv("ORDERS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ORDERS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisReplyCache(ctx, url, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	id := uuid.NewString()
	defer c.client.Del(ctx, c.key(id))

	_, found, err := c.Begin(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.Begin(ctx, id)
	assert.ErrorIs(t, err, ErrDuplicateInFlight)

	require.NoError(t, c.Complete(ctx, id, pipeline.Result{Reply: "ok", Responder: "deterministic"}))
	require.NoError(t, c.Abandon(ctx, id))

	stored, found, err := c.Begin(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ok", stored.Reply)
}

func TestNewRedisReplyCache_BadURL(t *testing.T) {
	_, err := NewRedisReplyCache(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}
