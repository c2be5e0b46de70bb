//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/expense-tracker/internal/cache"
	"github.com/BradenHooton/expense-tracker/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockCache_Redis(t *testing.T) {
	ctx := context.Background()
	r, err := testutil.SetupTestRedis(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Teardown(ctx) })

	bc := cache.NewBlockCache(r.Client, "test")

	t.Run("miss", func(t *testing.T) {
		until, err := bc.GetBlockedUntil(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, until)
	})

	t.Run("round trip with ttl", func(t *testing.T) {
		blockedUntil := time.Date(2030, 1, 1, 0, 30, 0, 0, time.UTC)
		require.NoError(t, bc.SetBlockedUntil(ctx, "alice", blockedUntil, 30*time.Minute))

		got, err := bc.GetBlockedUntil(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Equal(blockedUntil))

		ttl, err := r.Client.TTL(ctx, "test:login_block:alice").Result()
		require.NoError(t, err)
		assert.InDelta(t, (30 * time.Minute).Seconds(), ttl.Seconds(), 5)
	})

	t.Run("expires", func(t *testing.T) {
		require.NoError(t, bc.SetBlockedUntil(ctx, "bob", time.Now().Add(time.Second), 500*time.Millisecond))

		assert.Eventually(t, func() bool {
			got, err := bc.GetBlockedUntil(ctx, "bob")
			return err == nil && got == nil
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("non-positive ttl is ignored", func(t *testing.T) {
		require.NoError(t, bc.SetBlockedUntil(ctx, "carol", time.Now(), 0))

		got, err := bc.GetBlockedUntil(ctx, "carol")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
