package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/roomguard/roomguard/logger"
	"github.com/roomguard/roomguard/rgerrors"
)

// memoryLimiter is a process-local fallback built on golang.org/x/time
// token buckets. It does not share state across instances, so it is only
// suitable for single-node deployments and tests.
type memoryLimiter struct {
	config Config
	log    logger.Logger

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	limiter  *rate.Limiter
	window   time.Duration
	lastSeen time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(config Config, log logger.Logger) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	ml := &memoryLimiter{
		config:  config,
		log:     log.Named("ratelimit"),
		entries: make(map[string]*memoryEntry),
	}
	go ml.cleanup()

	return ml, nil
}

// cleanup drops entries that have been idle longer than their window.
func (ml *memoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()

		ml.mu.Lock()
		for key, entry := range ml.entries {
			if now.Sub(entry.lastSeen) > entry.window+time.Minute {
				delete(ml.entries, key)
			}
		}
		ml.mu.Unlock()
	}
}

func (ml *memoryLimiter) entry(limitType LimitType, identifier string, limit Limit) *memoryEntry {
	key := string(limitType) + ":" + identifier

	ml.mu.Lock()
	defer ml.mu.Unlock()

	e, ok := ml.entries[key]
	if !ok {
		e = &memoryEntry{
			limiter: rate.NewLimiter(rate.Every(limit.Window/time.Duration(limit.MaxRequests)), limit.MaxRequests),
			window:  limit.Window,
		}
		ml.entries[key] = e
	}
	e.lastSeen = time.Now()

	return e
}

func (ml *memoryLimiter) Check(ctx context.Context, limitType LimitType, identifier string) (bool, error) {
	limit, ok := ml.config.Limits[limitType]
	if !ok {
		ml.log.Warn("check against unregistered limit type, allowing",
			zap.String("limit_type", string(limitType)),
			zap.String("identifier", identifier))
		return true, ErrUnknownLimitType
	}

	e := ml.entry(limitType, identifier, limit)
	if e.limiter.Allow() {
		return true, nil
	}

	reservation := e.limiter.Reserve()
	retryAfter := int(math.Ceil(reservation.Delay().Seconds()))
	reservation.Cancel()
	if retryAfter < 1 {
		retryAfter = 1
	}

	return false, rgerrors.RateLimitExceeded(string(limitType), retryAfter, limit.MaxRequests, limit.MaxRequests)
}

func (ml *memoryLimiter) Peek(ctx context.Context, limitType LimitType, identifier string) (bool, error) {
	limit, ok := ml.config.Limits[limitType]
	if !ok {
		return true, ErrUnknownLimitType
	}

	e := ml.entry(limitType, identifier, limit)
	if e.limiter.Tokens() >= 1 {
		return true, nil
	}

	return false, rgerrors.RateLimitExceeded(string(limitType), 1, limit.MaxRequests, limit.MaxRequests)
}

func (ml *memoryLimiter) Status(ctx context.Context, limitType LimitType, identifier string) (*Status, error) {
	limit, ok := ml.config.Limits[limitType]
	if !ok {
		return nil, ErrUnknownLimitType
	}

	e := ml.entry(limitType, identifier, limit)

	tokens := e.limiter.Tokens()
	if tokens < 0 {
		tokens = 0
	}
	if tokens > float64(limit.MaxRequests) {
		tokens = float64(limit.MaxRequests)
	}

	remaining := int(tokens)
	used := limit.MaxRequests - remaining
	refillPerToken := limit.Window / time.Duration(limit.MaxRequests)

	return &Status{
		Limit:     limit.MaxRequests,
		Remaining: remaining,
		Used:      used,
		ResetAt:   time.Now().Add(time.Duration(used) * refillPerToken),
		Window:    limit.Window,
	}, nil
}

func (ml *memoryLimiter) Reset(ctx context.Context, limitType LimitType, identifier string) error {
	key := string(limitType) + ":" + identifier

	ml.mu.Lock()
	delete(ml.entries, key)
	ml.mu.Unlock()

	return nil
}
