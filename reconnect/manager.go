// Package reconnect buffers recent room messages and tracks per-user
// connection continuity so a client that drops and returns within a
// bounded interval can replay exactly what it missed.
//
// Buffering happens after the orchestration layer has confirmed delivery
// to live participants, so replay never contains messages that were never
// relayed. State lives in the shared redis store and expires by TTL;
// nothing here requires a background sweep for correctness.
package reconnect

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomguard/roomguard/logger"
	"github.com/roomguard/roomguard/rgerrors"
)

// Config configures a Manager.
type Config struct {
	// BufferSize caps the per-room replay buffer; oldest entries are
	// evicted first.
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`

	// BufferTTL bounds how long buffered messages and connection state
	// survive without activity.
	BufferTTL time.Duration `mapstructure:"buffer_ttl" yaml:"buffer_ttl"`

	// KeyPrefix namespaces manager keys in the shared store.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// CleanupBatchSize is how many keys a room cleanup deletes per round
	// while paging through the key scan.
	CleanupBatchSize int `mapstructure:"cleanup_batch_size" yaml:"cleanup_batch_size"`
}

// DefaultConfig returns the default reconnection configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:       50,
		BufferTTL:        5 * time.Minute,
		KeyPrefix:        "reconnect",
		CleanupBatchSize: 100,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return errors.New("reconnect: buffer_size must be positive")
	}
	if c.BufferTTL <= 0 {
		return errors.New("reconnect: buffer_ttl must be positive")
	}
	return nil
}

// Manager is the reconnection and state-recovery surface consumed by the
// signaling orchestration layer.
type Manager interface {
	// BufferMessage appends a relayed message to the room's replay
	// buffer. Failures never abort the original delivery; they are
	// logged and swallowed.
	BufferMessage(ctx context.Context, roomID string, message json.RawMessage)

	// MissedMessages returns buffered messages with sequence greater
	// than afterSequence, ascending. afterSequence <= 0 returns the
	// whole buffer.
	MissedMessages(ctx context.Context, roomID string, afterSequence int64) ([]BufferedMessage, error)

	// TrackUserState upserts the continuity snapshot for a user. A
	// negative lastSequence leaves the stored sequence unchanged.
	TrackUserState(ctx context.Context, roomID, userID string, connected bool, lastSequence int64) error

	// UserState returns the last snapshot, or nil when expired or never
	// tracked.
	UserState(ctx context.Context, roomID, userID string) (*ConnectionState, error)

	// HandleReconnect resolves what a returning user missed. Internal
	// failures degrade to a not-a-reconnect result instead of failing
	// the connection.
	HandleReconnect(ctx context.Context, roomID, userID string) *ReconnectResult

	// DetectQuality classifies a metrics sample and, when the user has
	// tracked state, persists the classification into it.
	DetectQuality(ctx context.Context, roomID, userID string, metrics QualityMetrics) Quality

	// CleanupRoom removes the room's buffer, sequence counter, and every
	// per-user state key. Called when a room closes.
	CleanupRoom(ctx context.Context, roomID string) error
}

type manager struct {
	client *redis.Client
	config Config
	log    logger.Logger
}

// NewManager creates a redis-backed reconnection manager.
func NewManager(client *redis.Client, config Config, log logger.Logger) (Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "reconnect"
	}
	if config.CleanupBatchSize <= 0 {
		config.CleanupBatchSize = 100
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &manager{
		client: client,
		config: config,
		log:    log.Named("reconnect"),
	}, nil
}

func (m *manager) bufferKey(roomID string) string {
	return m.config.KeyPrefix + ":buffer:" + roomID
}

func (m *manager) seqKey(roomID string) string {
	return m.config.KeyPrefix + ":seq:" + roomID
}

func (m *manager) stateKey(roomID, userID string) string {
	return m.config.KeyPrefix + ":state:" + roomID + ":" + userID
}

func (m *manager) BufferMessage(ctx context.Context, roomID string, message json.RawMessage) {
	seq, err := m.client.Incr(ctx, m.seqKey(roomID)).Result()
	if err != nil {
		m.log.Error("sequence allocation failed, message not buffered",
			zap.String("room_id", roomID), zap.Error(err))
		return
	}

	entry := BufferedMessage{
		ID:        uuid.NewString(),
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		m.log.Error("buffered message marshal failed",
			zap.String("room_id", roomID), zap.Int64("sequence", seq), zap.Error(err))
		return
	}

	pipe := m.client.Pipeline()
	pipe.Expire(ctx, m.seqKey(roomID), m.config.BufferTTL)
	pipe.LPush(ctx, m.bufferKey(roomID), data)
	pipe.LTrim(ctx, m.bufferKey(roomID), 0, int64(m.config.BufferSize-1))
	pipe.Expire(ctx, m.bufferKey(roomID), m.config.BufferTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		m.log.Error("message buffering failed",
			zap.String("room_id", roomID), zap.Int64("sequence", seq), zap.Error(err))
	}
}

func (m *manager) MissedMessages(ctx context.Context, roomID string, afterSequence int64) ([]BufferedMessage, error) {
	raw, err := m.client.LRange(ctx, m.bufferKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, rgerrors.Wrap(rgerrors.CodeServiceUnavailable, "message buffer unavailable", err)
	}

	missed := make([]BufferedMessage, 0, len(raw))
	for _, item := range raw {
		var msg BufferedMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			m.log.Warn("skipping malformed buffered message",
				zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		if msg.Sequence > afterSequence {
			missed = append(missed, msg)
		}
	}

	sort.Slice(missed, func(i, j int) bool { return missed[i].Sequence < missed[j].Sequence })

	return missed, nil
}

func (m *manager) TrackUserState(ctx context.Context, roomID, userID string, connected bool, lastSequence int64) error {
	state, err := m.UserState(ctx, roomID, userID)
	if err != nil || state == nil {
		state = &ConnectionState{
			RoomID:  roomID,
			UserID:  userID,
			Quality: QualityUnknown,
		}
	}

	state.Connected = connected
	state.LastSeen = time.Now().UTC()
	if lastSequence >= 0 {
		state.LastSequence = lastSequence
	}

	return m.saveState(ctx, state)
}

func (m *manager) saveState(ctx context.Context, state *ConnectionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return rgerrors.Wrap(rgerrors.CodeOperationFailed, "connection state marshal failed", err)
	}

	key := m.stateKey(state.RoomID, state.UserID)
	if err := m.client.Set(ctx, key, data, m.config.BufferTTL).Err(); err != nil {
		return rgerrors.Wrap(rgerrors.CodeServiceUnavailable, "connection state write failed", err)
	}

	return nil
}

func (m *manager) UserState(ctx context.Context, roomID, userID string) (*ConnectionState, error) {
	data, err := m.client.Get(ctx, m.stateKey(roomID, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, rgerrors.Wrap(rgerrors.CodeServiceUnavailable, "connection state read failed", err)
	}

	var state ConnectionState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, rgerrors.Wrap(rgerrors.CodeOperationFailed, "connection state unmarshal failed", err)
	}

	return &state, nil
}

func (m *manager) HandleReconnect(ctx context.Context, roomID, userID string) *ReconnectResult {
	notReconnect := &ReconnectResult{MissedMessages: []BufferedMessage{}}

	state, err := m.UserState(ctx, roomID, userID)
	if err != nil {
		m.log.Error("reconnect state lookup failed, treating as fresh connection",
			zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
		return notReconnect
	}
	if state == nil {
		return notReconnect
	}

	missed, err := m.MissedMessages(ctx, roomID, state.LastSequence)
	if err != nil {
		m.log.Error("missed message fetch failed, replaying nothing",
			zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
		missed = []BufferedMessage{}
	}

	disconnectDuration := time.Since(state.LastSeen).Seconds()
	if disconnectDuration < 0 {
		disconnectDuration = 0
	}

	// Mark connected but keep LastSequence as-is; the caller bumps it via
	// TrackUserState once the client acknowledges the replay.
	state.Connected = true
	state.ReconnectCount++
	state.LastSeen = time.Now().UTC()
	if err := m.saveState(ctx, state); err != nil {
		m.log.Error("reconnect state update failed",
			zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
	}

	return &ReconnectResult{
		IsReconnect:        true,
		MissedMessages:     missed,
		LastSequence:       state.LastSequence,
		DisconnectDuration: disconnectDuration,
	}
}

func (m *manager) DetectQuality(ctx context.Context, roomID, userID string, metrics QualityMetrics) Quality {
	quality := ClassifyQuality(metrics)

	state, err := m.UserState(ctx, roomID, userID)
	if err != nil || state == nil {
		return quality
	}

	state.Quality = quality
	if err := m.saveState(ctx, state); err != nil {
		m.log.Warn("quality persistence failed",
			zap.String("room_id", roomID), zap.String("user_id", userID), zap.Error(err))
	}

	return quality
}

func (m *manager) CleanupRoom(ctx context.Context, roomID string) error {
	if err := m.client.Del(ctx, m.bufferKey(roomID), m.seqKey(roomID)).Err(); err != nil {
		return rgerrors.Wrap(rgerrors.CodeOperationFailed, "room buffer cleanup failed", err)
	}

	// Page through user state keys instead of loading them all at once.
	pattern := m.stateKey(roomID, "*")
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, pattern, int64(m.config.CleanupBatchSize)).Result()
		if err != nil {
			return rgerrors.Wrap(rgerrors.CodeOperationFailed, "room state scan failed", err)
		}
		if len(keys) > 0 {
			if err := m.client.Del(ctx, keys...).Err(); err != nil {
				return rgerrors.Wrap(rgerrors.CodeOperationFailed, "room state cleanup failed", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}
