package roomguard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomguard/roomguard/ratelimit"
	"github.com/roomguard/roomguard/reconnect"
	"github.com/roomguard/roomguard/rgerrors"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()

	config := DefaultConfig()
	config.MetricsEnabled = true
	config.RateLimit.Limits[ratelimit.LimitReaction] = ratelimit.Limit{
		MaxRequests: 2,
		Window:      time.Minute,
	}

	g, err := New(config, nil, nil, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })

	return g
}

func TestGuardRateLimitFlow(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := g.CheckRateLimit(ctx, ratelimit.LimitReaction, "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := g.CheckRateLimit(ctx, ratelimit.LimitReaction, "alice")
	assert.False(t, allowed)
	e, ok := rgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, rgerrors.CodeRateLimitExceeded, e.Code)
	assert.GreaterOrEqual(t, e.RetryAfter, 1)

	// Unregistered limit types pass with a warning instead of blocking
	// traffic.
	allowed, err = g.CheckRateLimit(ctx, ratelimit.LimitType("experimental"), "alice")
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, g.ResetRateLimit(ctx, ratelimit.LimitReaction, "alice"))
	allowed, err = g.CheckRateLimit(ctx, ratelimit.LimitReaction, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGuardReconnectFlow(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	require.NoError(t, g.TrackUserState(ctx, "room-1", "alice", true, 0))

	for i := 0; i < 3; i++ {
		g.BufferMessage(ctx, "room-1", json.RawMessage(`{"type":"chat"}`))
	}

	result := g.HandleReconnect(ctx, "room-1", "alice")
	assert.True(t, result.IsReconnect)
	assert.Len(t, result.MissedMessages, 3)

	quality := g.DetectQuality(ctx, "room-1", "alice", reconnect.QualityMetrics{
		LatencyMs: 400, PacketLossPercent: 8, JitterMs: 80,
	})
	assert.Equal(t, reconnect.QualityPoor, quality)

	require.NoError(t, g.CleanupRoom(ctx, "room-1"))

	missed, err := g.MissedMessages(ctx, "room-1", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestGuardContentSecurity(t *testing.T) {
	g := newTestGuard(t)
	ctx := context.Background()

	out := g.SanitizeText("<script>alert(1)</script>Hello", 0)
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "Hello")

	assert.Error(t, g.ValidateUpload("malware.exe", 1024, nil))
	assert.NoError(t, g.ValidateUpload("photo.png", 500_000, nil))

	assert.True(t, g.ValidateRoomID("team-standup_01"))
	assert.False(t, g.ValidateRoomID("ab"))
	assert.True(t, g.ValidateUsername("a.b-c"))
	assert.False(t, g.ValidateUsername("a@b"))

	assert.NotEmpty(t, g.FileChecksum([]byte("content")))

	require.NoError(t, g.BlockIP(ctx, "203.0.113.9"))
	assert.True(t, g.IsIPBlocked(ctx, "203.0.113.9"))
	require.NoError(t, g.UnblockIP(ctx, "203.0.113.9"))
	assert.False(t, g.IsIPBlocked(ctx, "203.0.113.9"))
}

func TestGuardWithoutMetrics(t *testing.T) {
	config := DefaultConfig()

	g, err := New(config, nil, nil)
	require.NoError(t, err)
	defer g.Close()

	// Nil metrics must not panic.
	allowed, err := g.CheckRateLimit(context.Background(), ratelimit.LimitAPICall, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGuardRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.Reconnect.BufferSize = -1

	_, err := New(config, nil, nil)
	assert.Error(t, err)
}
