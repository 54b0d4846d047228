// Package ratelimit enforces per-identifier quotas over rolling time
// windows. The redis-backed limiter shares state across horizontally
// scaled signaling instances; the in-memory limiter is a single-instance
// fallback for development and tests.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// LimitType names a category of limited actions. The catalog is fixed at
// construction; checks against an unregistered type fail open.
type LimitType string

const (
	LimitSignalingMessage LimitType = "signaling_message"
	LimitHandRaise        LimitType = "hand_raise"
	LimitReaction         LimitType = "reaction"
	LimitFileShare        LimitType = "file_share"
	LimitRoomCreate       LimitType = "room_create"
	LimitSettingsUpdate   LimitType = "settings_update"
	LimitChatMessage      LimitType = "chat_message"
	LimitAPICall          LimitType = "api_call"
)

// ErrUnknownLimitType is returned together with allowed=true when a check
// names a limit type that has no configured rule. Callers decide whether
// to warn-and-allow or to reject.
var ErrUnknownLimitType = errors.New("ratelimit: unknown limit type")

// Limit defines a quota: at most MaxRequests events within Window.
type Limit struct {
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

// Config configures a limiter.
type Config struct {
	// Limits is the catalog of rules keyed by limit type.
	Limits map[LimitType]Limit `mapstructure:"limits" yaml:"limits"`

	// KeyPrefix namespaces limiter keys in the shared store.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// TTLBuffer is added on top of a rule's window when refreshing key
	// expiry, so entries are not evicted while still countable.
	TTLBuffer time.Duration `mapstructure:"ttl_buffer" yaml:"ttl_buffer"`
}

// DefaultConfig returns the default catalog for a signaling service.
func DefaultConfig() Config {
	return Config{
		Limits: map[LimitType]Limit{
			LimitSignalingMessage: {MaxRequests: 100, Window: time.Minute},
			LimitHandRaise:        {MaxRequests: 10, Window: time.Minute},
			LimitReaction:         {MaxRequests: 30, Window: time.Minute},
			LimitFileShare:        {MaxRequests: 10, Window: 5 * time.Minute},
			LimitRoomCreate:       {MaxRequests: 5, Window: time.Hour},
			LimitSettingsUpdate:   {MaxRequests: 20, Window: time.Minute},
			LimitChatMessage:      {MaxRequests: 60, Window: time.Minute},
			LimitAPICall:          {MaxRequests: 300, Window: time.Minute},
		},
		KeyPrefix: "ratelimit",
		TTLBuffer: time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	for lt, limit := range c.Limits {
		if limit.MaxRequests <= 0 {
			return errors.New("ratelimit: max_requests must be positive for " + string(lt))
		}
		if limit.Window <= 0 {
			return errors.New("ratelimit: window must be positive for " + string(lt))
		}
	}
	return nil
}

// Status is a read-only snapshot of one (limit type, identifier) window.
type Status struct {
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Used      int           `json:"used"`
	ResetAt   time.Time     `json:"reset_at"`
	Window    time.Duration `json:"window"`
}

// Limiter decides whether an action is allowed right now.
type Limiter interface {
	// Check records the event and reports whether it is allowed. When the
	// quota is exhausted it returns false and a *rgerrors.Error with code
	// RATE_LIMIT_EXCEEDED carrying the retry hint. Store failures fail
	// open: allowed=true, nil error.
	Check(ctx context.Context, limitType LimitType, identifier string) (bool, error)

	// Peek is Check without recording the event.
	Peek(ctx context.Context, limitType LimitType, identifier string) (bool, error)

	// Status returns the current window snapshot. It prunes expired
	// entries but never adds any, so repeated calls are idempotent.
	Status(ctx context.Context, limitType LimitType, identifier string) (*Status, error)

	// Reset clears all tracked state for the pair. Administrative.
	Reset(ctx context.Context, limitType LimitType, identifier string) error
}
