package reconnect

import (
	"encoding/json"
	"time"
)

// Quality is a coarse classification of a connection derived from
// latency, packet loss, and jitter samples.
type Quality string

const (
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
	QualityUnknown Quality = "unknown"
)

// QualityMetrics is one sample of transport-level measurements reported
// by a client or the media stack.
type QualityMetrics struct {
	LatencyMs         float64 `json:"latency_ms"`
	PacketLossPercent float64 `json:"packet_loss_percent"`
	JitterMs          float64 `json:"jitter_ms"`
}

// Quality thresholds. A sample is poor when any metric crosses the poor
// bound, fair when any crosses the fair bound, good otherwise.
const (
	poorLatencyMs = 300
	poorLossPct   = 5
	poorJitterMs  = 50
	fairLatencyMs = 150
	fairLossPct   = 2
	fairJitterMs  = 30
)

// ClassifyQuality maps a metrics sample to a quality bucket.
func ClassifyQuality(m QualityMetrics) Quality {
	if m.LatencyMs > poorLatencyMs || m.PacketLossPercent > poorLossPct || m.JitterMs > poorJitterMs {
		return QualityPoor
	}
	if m.LatencyMs > fairLatencyMs || m.PacketLossPercent > fairLossPct || m.JitterMs > fairJitterMs {
		return QualityFair
	}
	return QualityGood
}

// ConnectionState is the persisted continuity snapshot for one
// (room, user) pair. It is owned exclusively by the Manager; nothing else
// writes these keys.
type ConnectionState struct {
	RoomID         string    `json:"room_id"`
	UserID         string    `json:"user_id"`
	LastSeen       time.Time `json:"last_seen"`
	LastSequence   int64     `json:"message_sequence"`
	Connected      bool      `json:"is_connected"`
	ReconnectCount int       `json:"reconnect_count"`
	Quality        Quality   `json:"connection_quality"`
}

// BufferedMessage wraps an opaque relayed payload with its replay
// ordering metadata. Immutable once buffered.
type BufferedMessage struct {
	ID        string          `json:"id"`
	Sequence  int64           `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Message   json.RawMessage `json:"message"`
}

// ReconnectResult is what a re-establishing client needs to resume.
type ReconnectResult struct {
	IsReconnect        bool              `json:"is_reconnect"`
	MissedMessages     []BufferedMessage `json:"missed_messages"`
	LastSequence       int64             `json:"last_sequence"`
	DisconnectDuration float64           `json:"disconnect_duration_seconds"`
}
