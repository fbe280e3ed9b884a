// Package cache keeps ephemeral read-side copies in Redis. The datastore
// stays the source of truth; cached views carry a freshness window and are
// invalidated after post-processing so clients refetch.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	latestCallKeyPrefix = "call:latest:"
	latestCallTTL       = 30 * time.Second
)

// LatestCallView is the cached shape of a user's most recent call analysis.
type LatestCallView struct {
	VapiCallID    string          `json:"vapi_call_id"`
	CallStatus    string          `json:"call_status"`
	CallDuration  int             `json:"call_duration"`
	Transcript    string          `json:"transcript"`
	Insights      json.RawMessage `json:"insights,omitempty"`
	Sentiment     json.RawMessage `json:"sentiment,omitempty"`
	Metrics       json.RawMessage `json:"metrics,omitempty"`
	CallStartedAt *time.Time      `json:"call_started_at,omitempty"`
	CallEndedAt   *time.Time      `json:"call_ended_at,omitempty"`
}

// LatestCallCache stores per-user latest-call views in Redis.
type LatestCallCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewLatestCallCache creates a cache backed by Redis.
func NewLatestCallCache(rdb *redis.Client) *LatestCallCache {
	return &LatestCallCache{rdb: rdb, ttl: latestCallTTL}
}

func latestCallKey(userID uuid.UUID) string {
	return latestCallKeyPrefix + userID.String()
}

// Get returns the cached view, or nil on a miss.
func (c *LatestCallCache) Get(ctx context.Context, userID uuid.UUID) (*LatestCallView, error) {
	data, err := c.rdb.Get(ctx, latestCallKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: get latest call: %w", err)
	}
	var view LatestCallView
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("cache: unmarshal latest call: %w", err)
	}
	return &view, nil
}

// Set stores the view under the freshness TTL.
func (c *LatestCallCache) Set(ctx context.Context, userID uuid.UUID, view *LatestCallView) error {
	if view == nil {
		return fmt.Errorf("cache: latest call view required")
	}
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("cache: marshal latest call: %w", err)
	}
	return c.rdb.Set(ctx, latestCallKey(userID), data, c.ttl).Err()
}

// Invalidate drops the cached view so the next read hits the datastore.
func (c *LatestCallCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.rdb.Del(ctx, latestCallKey(userID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate latest call: %w", err)
	}
	return nil
}
