package reconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) Manager {
	t.Helper()

	m, err := NewMemoryManager(DefaultConfig(), nil)
	require.NoError(t, err)

	return m
}

func payload(i int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"type":"chat","body":"message %d"}`, i))
}

func TestBufferRetainsNewestFifty(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 1; i <= 75; i++ {
		m.BufferMessage(ctx, "room-1", payload(i))
	}

	missed, err := m.MissedMessages(ctx, "room-1", 0)
	require.NoError(t, err)
	require.Len(t, missed, 50)

	// Ascending sequence, gap-free, and exactly the 50 most recent.
	assert.Equal(t, int64(26), missed[0].Sequence)
	for i, msg := range missed {
		assert.Equal(t, int64(26+i), msg.Sequence)
	}
}

func TestMissedMessagesAfterSequence(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		m.BufferMessage(ctx, "room-1", payload(i))
	}

	missed, err := m.MissedMessages(ctx, "room-1", 7)
	require.NoError(t, err)
	require.Len(t, missed, 3)
	assert.Equal(t, int64(8), missed[0].Sequence)
	assert.Equal(t, int64(10), missed[2].Sequence)

	// Rooms are independent.
	missed, err = m.MissedMessages(ctx, "room-2", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestTrackAndGetUserState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	state, err := m.UserState(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Nil(t, state, "untracked user has no state")

	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", true, 4))

	state, err = m.UserState(ctx, "room-1", "alice")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, state.Connected)
	assert.Equal(t, int64(4), state.LastSequence)
	assert.Equal(t, QualityUnknown, state.Quality)

	// Negative sequence leaves the stored one unchanged.
	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", false, -1))

	state, err = m.UserState(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.False(t, state.Connected)
	assert.Equal(t, int64(4), state.LastSequence)
}

func TestHandleReconnectFreshUser(t *testing.T) {
	m := newTestManager(t)

	result := m.HandleReconnect(context.Background(), "room-1", "nobody")

	assert.False(t, result.IsReconnect)
	assert.Empty(t, result.MissedMessages)
	assert.Zero(t, result.LastSequence)
}

func TestHandleReconnectReplaysMissed(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Alice was connected and acknowledged up to sequence 3.
	for i := 1; i <= 3; i++ {
		m.BufferMessage(ctx, "room-1", payload(i))
	}
	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", true, 3))
	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", false, -1))

	// Four more messages arrive while she is gone.
	for i := 4; i <= 7; i++ {
		m.BufferMessage(ctx, "room-1", payload(i))
	}

	result := m.HandleReconnect(ctx, "room-1", "alice")

	assert.True(t, result.IsReconnect)
	require.Len(t, result.MissedMessages, 4)
	assert.Equal(t, int64(4), result.MissedMessages[0].Sequence)
	assert.Equal(t, int64(7), result.MissedMessages[3].Sequence)
	assert.Equal(t, int64(3), result.LastSequence, "acknowledged sequence is preserved until the caller bumps it")
	assert.GreaterOrEqual(t, result.DisconnectDuration, 0.0)

	state, err := m.UserState(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.True(t, state.Connected)
	assert.Equal(t, 1, state.ReconnectCount)
}

func TestDetectQualityPersistsIntoState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Without tracked state the classification is still returned.
	quality := m.DetectQuality(ctx, "room-1", "bob", QualityMetrics{LatencyMs: 400})
	assert.Equal(t, QualityPoor, quality)

	require.NoError(t, m.TrackUserState(ctx, "room-1", "bob", true, 0))

	quality = m.DetectQuality(ctx, "room-1", "bob", QualityMetrics{LatencyMs: 200})
	assert.Equal(t, QualityFair, quality)

	state, err := m.UserState(ctx, "room-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, QualityFair, state.Quality)
}

func TestCleanupRoom(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		m.BufferMessage(ctx, "room-1", payload(i))
	}
	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", true, 2))
	require.NoError(t, m.TrackUserState(ctx, "room-1", "bob", true, 5))
	require.NoError(t, m.TrackUserState(ctx, "room-2", "carol", true, 1))

	require.NoError(t, m.CleanupRoom(ctx, "room-1"))

	missed, err := m.MissedMessages(ctx, "room-1", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)

	for _, user := range []string{"alice", "bob"} {
		state, err := m.UserState(ctx, "room-1", user)
		require.NoError(t, err)
		assert.Nil(t, state)
	}

	// Other rooms are untouched.
	state, err := m.UserState(ctx, "room-2", "carol")
	require.NoError(t, err)
	assert.NotNil(t, state)
}

func TestBufferTTLExpiresState(t *testing.T) {
	config := DefaultConfig()
	config.BufferTTL = 50 * time.Millisecond

	m, err := NewMemoryManager(config, nil)
	require.NoError(t, err)
	ctx := context.Background()

	m.BufferMessage(ctx, "room-1", payload(1))
	require.NoError(t, m.TrackUserState(ctx, "room-1", "alice", true, 1))

	time.Sleep(80 * time.Millisecond)

	missed, err := m.MissedMessages(ctx, "room-1", 0)
	require.NoError(t, err)
	assert.Empty(t, missed)

	state, err := m.UserState(ctx, "room-1", "alice")
	require.NoError(t, err)
	assert.Nil(t, state)

	result := m.HandleReconnect(ctx, "room-1", "alice")
	assert.False(t, result.IsReconnect)
}
