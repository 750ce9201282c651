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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lapaisee/orderdesk/services/orders/pipeline"
)

// ErrDuplicateInFlight is returned when a message ID is being processed by
// another request.
var ErrDuplicateInFlight = errors.New("message is already being processed")

// inFlightTTL bounds how long a claimed message blocks duplicates if its
// request dies without completing.
const inFlightTTL = 2 * time.Minute

// ReplyCache stores replies by message ID so a message is processed once.
//
// # Description
//
// Begin claims an ID. If a reply is already stored it is returned with
// found=true and the caller replays it. Complete stores the reply, Abandon
// releases a claim after a failure.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ReplyCache interface {
	Begin(ctx context.Context, messageID string) (stored pipeline.Result, found bool, err error)
	Complete(ctx context.Context, messageID string, res pipeline.Result) error
	Abandon(ctx context.Context, messageID string) error
}

// =============================================================================
// In-memory cache
// =============================================================================

type memoryReply struct {
	pending bool
	result  pipeline.Result
	expires time.Time
}

// MemoryReplyCache keeps replies in process memory.
type MemoryReplyCache struct {
	mu      sync.Mutex
	entries map[string]memoryReply
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryReplyCache creates a cache keeping replies for ttl.
func NewMemoryReplyCache(ttl time.Duration) *MemoryReplyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryReplyCache{entries: make(map[string]memoryReply), ttl: ttl, now: time.Now}
}

// Begin implements ReplyCache.
func (m *MemoryReplyCache) Begin(_ context.Context, messageID string) (pipeline.Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[messageID]; ok && now.Before(e.expires) {
		if e.pending {
			return pipeline.Result{}, false, ErrDuplicateInFlight
		}
		return e.result, true, nil
	}
	m.entries[messageID] = memoryReply{pending: true, expires: now.Add(inFlightTTL)}
	m.evictLocked(now)
	return pipeline.Result{}, false, nil
}

// Complete implements ReplyCache.
func (m *MemoryReplyCache) Complete(_ context.Context, messageID string, res pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[messageID] = memoryReply{result: res, expires: m.now().Add(m.ttl)}
	return nil
}

// Abandon implements ReplyCache.
func (m *MemoryReplyCache) Abandon(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[messageID]; ok && e.pending {
		delete(m.entries, messageID)
	}
	return nil
}

// Len returns the number of live entries.
func (m *MemoryReplyCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(m.now())
	return len(m.entries)
}

func (m *MemoryReplyCache) evictLocked(now time.Time) {
	for id, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, id)
		}
	}
}

// =============================================================================
// Redis cache
// =============================================================================

// redisPending marks a claimed message without a reply yet.
const redisPending = "pending"

// RedisReplyCache shares replies between service instances through Redis.
type RedisReplyCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReplyCache connects to the Redis server at url
// (redis://[:password@]host:port/db) and checks it with PING.
func NewRedisReplyCache(ctx context.Context, url string, ttl time.Duration) (*RedisReplyCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisReplyCacheWithClient(client, ttl), nil
}

// NewRedisReplyCacheWithClient wraps an existing client.
func NewRedisReplyCacheWithClient(client *redis.Client, ttl time.Duration) *RedisReplyCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisReplyCache{client: client, prefix: "orderdesk:reply:", ttl: ttl}
}

func (r *RedisReplyCache) key(messageID string) string {
	return r.prefix + messageID
}

// Begin implements ReplyCache.
func (r *RedisReplyCache) Begin(ctx context.Context, messageID string) (pipeline.Result, bool, error) {
	key := r.key(messageID)
	claimed, err := r.client.SetNX(ctx, key, redisPending, inFlightTTL).Result()
	if err != nil {
		return pipeline.Result{}, false, fmt.Errorf("redis SETNX: %w", err)
	}
	if claimed {
		return pipeline.Result{}, false, nil
	}

	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET. Treat as in flight; the client retries.
		return pipeline.Result{}, false, ErrDuplicateInFlight
	}
	if err != nil {
		return pipeline.Result{}, false, fmt.Errorf("redis GET: %w", err)
	}
	if data == redisPending {
		return pipeline.Result{}, false, ErrDuplicateInFlight
	}

	var res pipeline.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return pipeline.Result{}, false, fmt.Errorf("decode stored reply: %w", err)
	}
	return res, true, nil
}

// Complete implements ReplyCache.
func (r *RedisReplyCache) Complete(ctx context.Context, messageID string, res pipeline.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	if err := r.client.Set(ctx, r.key(messageID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

// Abandon implements ReplyCache.
func (r *RedisReplyCache) Abandon(ctx context.Context, messageID string) error {
	key := r.key(messageID)
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis GET: %w", err)
	}
	if data != redisPending {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

// Close closes the Redis client.
func (r *RedisReplyCache) Close() error {
	return r.client.Close()
}
