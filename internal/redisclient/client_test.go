package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClaimCompleteRelease(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:idempotency:" + uuid.NewString()
	t.Cleanup(func() { c.Release(ctx, key) })

	claimed, _, err := c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, value, err := c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, value, "first request still in flight")

	require.NoError(t, c.Complete(ctx, key, "order-42", time.Minute))
	claimed, value, err = c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "order-42", value)

	require.NoError(t, c.Release(ctx, key))
	claimed, _, err = c.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestLockReleaseNeedsOwnerToken(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	token, ok, err := c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.ReleaseLock(ctx, key, "someone-else"))
	_, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a foreign token must not release the lock")

	require.NoError(t, c.ReleaseLock(ctx, key, token))
	token, ok, err = c.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.ReleaseLock(ctx, key, token))
}
