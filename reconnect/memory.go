package reconnect

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomguard/roomguard/logger"
)

// memoryManager keeps buffers and state in process memory. Replay only
// works against the instance that buffered, so this is for single-node
// deployments and tests; production uses the redis manager.
type memoryManager struct {
	config Config
	log    logger.Logger

	mu     sync.Mutex
	rooms  map[string]*memoryRoom
	states map[string]*ConnectionState // roomID:userID
	seen   map[string]time.Time        // state key -> last write, for TTL
}

type memoryRoom struct {
	sequence int64
	buffer   []BufferedMessage // newest first, like the redis list
	touched  time.Time
}

// NewMemoryManager creates an in-process reconnection manager.
func NewMemoryManager(config Config, log logger.Logger) (Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &memoryManager{
		config: config,
		log:    log.Named("reconnect"),
		rooms:  make(map[string]*memoryRoom),
		states: make(map[string]*ConnectionState),
		seen:   make(map[string]time.Time),
	}, nil
}

func stateID(roomID, userID string) string {
	return roomID + ":" + userID
}

func (m *memoryManager) room(roomID string) *memoryRoom {
	r, ok := m.rooms[roomID]
	if !ok {
		r = &memoryRoom{}
		m.rooms[roomID] = r
	}
	if !r.touched.IsZero() && time.Since(r.touched) > m.config.BufferTTL {
		r.buffer = nil
		r.sequence = 0
	}
	r.touched = time.Now()
	return r
}

func (m *memoryManager) BufferMessage(ctx context.Context, roomID string, message json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.room(roomID)
	r.sequence++

	entry := BufferedMessage{
		ID:        uuid.NewString(),
		Sequence:  r.sequence,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}

	r.buffer = append([]BufferedMessage{entry}, r.buffer...)
	if len(r.buffer) > m.config.BufferSize {
		r.buffer = r.buffer[:m.config.BufferSize]
	}
}

func (m *memoryManager) MissedMessages(ctx context.Context, roomID string, afterSequence int64) ([]BufferedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || time.Since(r.touched) > m.config.BufferTTL {
		return []BufferedMessage{}, nil
	}

	missed := make([]BufferedMessage, 0, len(r.buffer))
	for _, msg := range r.buffer {
		if msg.Sequence > afterSequence {
			missed = append(missed, msg)
		}
	}

	sort.Slice(missed, func(i, j int) bool { return missed[i].Sequence < missed[j].Sequence })

	return missed, nil
}

func (m *memoryManager) TrackUserState(ctx context.Context, roomID, userID string, connected bool, lastSequence int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stateID(roomID, userID)
	state := m.liveState(key)
	if state == nil {
		state = &ConnectionState{
			RoomID:  roomID,
			UserID:  userID,
			Quality: QualityUnknown,
		}
		m.states[key] = state
	}

	state.Connected = connected
	state.LastSeen = time.Now().UTC()
	if lastSequence >= 0 {
		state.LastSequence = lastSequence
	}
	m.seen[key] = time.Now()

	return nil
}

// liveState returns the state for key, expiring it when stale. Caller
// holds the lock.
func (m *memoryManager) liveState(key string) *ConnectionState {
	state, ok := m.states[key]
	if !ok {
		return nil
	}
	if time.Since(m.seen[key]) > m.config.BufferTTL {
		delete(m.states, key)
		delete(m.seen, key)
		return nil
	}
	return state
}

func (m *memoryManager) UserState(ctx context.Context, roomID, userID string) (*ConnectionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := m.liveState(stateID(roomID, userID))
	if state == nil {
		return nil, nil
	}

	clone := *state
	return &clone, nil
}

func (m *memoryManager) HandleReconnect(ctx context.Context, roomID, userID string) *ReconnectResult {
	notReconnect := &ReconnectResult{MissedMessages: []BufferedMessage{}}

	state, err := m.UserState(ctx, roomID, userID)
	if err != nil || state == nil {
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

	m.mu.Lock()
	key := stateID(roomID, userID)
	if live := m.liveState(key); live != nil {
		live.Connected = true
		live.ReconnectCount++
		live.LastSeen = time.Now().UTC()
		m.seen[key] = time.Now()
	}
	m.mu.Unlock()

	return &ReconnectResult{
		IsReconnect:        true,
		MissedMessages:     missed,
		LastSequence:       state.LastSequence,
		DisconnectDuration: disconnectDuration,
	}
}

func (m *memoryManager) DetectQuality(ctx context.Context, roomID, userID string, metrics QualityMetrics) Quality {
	quality := ClassifyQuality(metrics)

	m.mu.Lock()
	if state := m.liveState(stateID(roomID, userID)); state != nil {
		state.Quality = quality
	}
	m.mu.Unlock()

	return quality
}

func (m *memoryManager) CleanupRoom(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, roomID)
	for key := range m.states {
		if state := m.states[key]; state.RoomID == roomID {
			delete(m.states, key)
			delete(m.seen, key)
		}
	}

	return nil
}
