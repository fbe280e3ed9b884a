package cache

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*LatestCallCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLatestCallCache(rdb), mr
}

func TestLatestCallCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	miss, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	view := &LatestCallView{VapiCallID: "call_1", CallStatus: "ended", CallDuration: 120}
	require.NoError(t, c.Set(ctx, userID, view))

	got, err := c.Get(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "call_1", got.VapiCallID)
	assert.Equal(t, 120, got.CallDuration)
}

func TestLatestCallCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, c.Set(ctx, userID, &LatestCallView{VapiCallID: "call_2"}))
	require.NoError(t, c.Invalidate(ctx, userID))

	got, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLatestCallCacheExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, c.Set(ctx, userID, &LatestCallView{VapiCallID: "call_3"}))
	mr.FastForward(c.ttl * 2)

	got, err := c.Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
