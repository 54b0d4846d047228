package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomguard/roomguard/logger"
	"github.com/roomguard/roomguard/rgerrors"
)

// checkScript runs the sliding-window check atomically: prune entries that
// fell out of the window, count the remainder, and either record the new
// event or report the oldest surviving score so the caller can compute a
// retry hint. Atomicity matters because multiple signaling instances hit
// the same key concurrently.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[5]
local increment = tonumber(ARGV[6])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)

if current >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local oldest_score = 0
	if oldest and #oldest >= 2 then
		oldest_score = tonumber(oldest[2])
	end
	return {0, current, oldest_score}
end

if increment == 1 then
	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, ttl)
end

return {1, current + increment, 0}
`)

// redisLimiter enforces sliding windows on redis sorted sets. Keys are
// ratelimit:{limit_type}:{identifier}; scores and window bounds are in
// milliseconds.
type redisLimiter struct {
	client *redis.Client
	config Config
	log    logger.Logger
}

// NewRedisLimiter creates a limiter backed by a shared redis store.
func NewRedisLimiter(client *redis.Client, config Config, log logger.Logger) (Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit"
	}
	if config.TTLBuffer <= 0 {
		config.TTLBuffer = time.Minute
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &redisLimiter{
		client: client,
		config: config,
		log:    log.Named("ratelimit"),
	}, nil
}

func (rl *redisLimiter) key(limitType LimitType, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", rl.config.KeyPrefix, limitType, identifier)
}

func (rl *redisLimiter) Check(ctx context.Context, limitType LimitType, identifier string) (bool, error) {
	return rl.check(ctx, limitType, identifier, true)
}

func (rl *redisLimiter) Peek(ctx context.Context, limitType LimitType, identifier string) (bool, error) {
	return rl.check(ctx, limitType, identifier, false)
}

func (rl *redisLimiter) check(ctx context.Context, limitType LimitType, identifier string, increment bool) (bool, error) {
	limit, ok := rl.config.Limits[limitType]
	if !ok {
		rl.log.Warn("check against unregistered limit type, allowing",
			zap.String("limit_type", string(limitType)),
			zap.String("identifier", identifier))
		return true, ErrUnknownLimitType
	}

	now := time.Now()
	nowMs := now.UnixMilli()
	windowMs := limit.Window.Milliseconds()
	windowStartMs := nowMs - windowMs
	ttlSeconds := int64((limit.Window + rl.config.TTLBuffer) / time.Second)
	member := fmt.Sprintf("%d:%s", nowMs, uuid.NewString())

	inc := 0
	if increment {
		inc = 1
	}

	result, err := checkScript.Run(ctx, rl.client, []string{rl.key(limitType, identifier)},
		nowMs, windowStartMs, limit.MaxRequests, ttlSeconds, member, inc).Int64Slice()
	if err != nil {
		// Fail open: availability over strict enforcement when the
		// shared store is unreachable.
		rl.log.Error("rate limit check failed, failing open",
			zap.String("limit_type", string(limitType)),
			zap.String("identifier", identifier),
			zap.Error(err))
		return true, nil
	}

	if len(result) != 3 {
		rl.log.Error("unexpected rate limit script reply, failing open",
			zap.String("limit_type", string(limitType)),
			zap.Int("reply_len", len(result)))
		return true, nil
	}

	if result[0] == 1 {
		return true, nil
	}

	current := int(result[1])
	retryAfter := retryAfterSeconds(result[2], nowMs, windowMs, limit.Window)

	return false, rgerrors.RateLimitExceeded(string(limitType), retryAfter, current, limit.MaxRequests)
}

// retryAfterSeconds computes how long until the oldest in-window entry
// expires, rounded up and floored at one second. A zero oldest score means
// the set was emptied between prune and read; fall back to a full window.
func retryAfterSeconds(oldestMs, nowMs, windowMs int64, window time.Duration) int {
	if oldestMs <= 0 {
		return int(window / time.Second)
	}
	remainMs := oldestMs + windowMs - nowMs
	if remainMs <= 0 {
		return 1
	}
	retry := int((remainMs + 999) / 1000)
	if retry < 1 {
		retry = 1
	}
	return retry
}

func (rl *redisLimiter) Status(ctx context.Context, limitType LimitType, identifier string) (*Status, error) {
	limit, ok := rl.config.Limits[limitType]
	if !ok {
		return nil, ErrUnknownLimitType
	}

	key := rl.key(limitType, identifier)
	now := time.Now()
	windowStartMs := now.UnixMilli() - limit.Window.Milliseconds()

	pipe := rl.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStartMs))
	cardCmd := pipe.ZCard(ctx, key)
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, rgerrors.Wrap(rgerrors.CodeServiceUnavailable, "rate limit status unavailable", err)
	}

	used := int(cardCmd.Val())
	remaining := limit.MaxRequests - used
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(limit.Window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(limit.Window)
	}

	return &Status{
		Limit:     limit.MaxRequests,
		Remaining: remaining,
		Used:      used,
		ResetAt:   resetAt,
		Window:    limit.Window,
	}, nil
}

func (rl *redisLimiter) Reset(ctx context.Context, limitType LimitType, identifier string) error {
	if err := rl.client.Del(ctx, rl.key(limitType, identifier)).Err(); err != nil {
		return rgerrors.Wrap(rgerrors.CodeOperationFailed, "rate limit reset failed", err)
	}
	return nil
}
