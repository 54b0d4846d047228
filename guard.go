package roomguard

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/roomguard/roomguard/logger"
	"github.com/roomguard/roomguard/ratelimit"
	"github.com/roomguard/roomguard/reconnect"
	"github.com/roomguard/roomguard/security"
)

// Guard wires the four resilience components behind one surface. The
// orchestration layer calls CheckRateLimit before accepting an inbound
// action, the sanitizer and validators before forwarding or persisting
// content, BufferMessage after a successful relay, and HandleReconnect
// when a client re-establishes its connection.
type Guard struct {
	config Config
	client *redis.Client
	log    logger.Logger

	limiter   ratelimit.Limiter
	reconnect reconnect.Manager
	sanitizer *security.Sanitizer
	files     *security.FileValidator
	blocklist *security.Blocklist
	metrics   *metrics
}

// Option customizes guard construction.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer sets the prometheus registerer metrics register on when
// Config.MetricsEnabled is set. Defaults to the global registerer.
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(o *options) { o.registerer = registerer }
}

// New constructs a Guard. A nil redis client switches the rate limiter,
// reconnection manager, and blocklist to their in-process fallbacks,
// which only make sense for single-node deployments and tests.
func New(config Config, client *redis.Client, log logger.Logger, opts ...Option) (*Guard, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		limiter ratelimit.Limiter
		manager reconnect.Manager
		err     error
	)

	if client != nil {
		limiter, err = ratelimit.NewRedisLimiter(client, config.RateLimit, log)
		if err != nil {
			return nil, err
		}
		manager, err = reconnect.NewManager(client, config.Reconnect, log)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("no redis client configured, using in-process fallbacks")
		limiter, err = ratelimit.NewMemoryLimiter(config.RateLimit, log)
		if err != nil {
			return nil, err
		}
		manager, err = reconnect.NewMemoryManager(config.Reconnect, log)
		if err != nil {
			return nil, err
		}
	}

	g := &Guard{
		config:    config,
		client:    client,
		log:       log,
		limiter:   limiter,
		reconnect: manager,
		sanitizer: security.NewSanitizer(config.Sanitizer, log),
		files:     security.NewFileValidator(config.Files),
		blocklist: security.NewBlocklist(client, config.Blocklist, log),
	}

	if config.MetricsEnabled {
		g.metrics = newMetrics(o.registerer)
	}

	return g, nil
}

// Connect builds a redis client from config and constructs a Guard on it.
func Connect(config Config, log logger.Logger, opts ...Option) (*Guard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Redis.Addr,
		Password:     config.Redis.Password,
		DB:           config.Redis.DB,
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
	})

	return New(config, client, log, opts...)
}

// RateLimiter returns the underlying limiter.
func (g *Guard) RateLimiter() ratelimit.Limiter { return g.limiter }

// Reconnect returns the underlying reconnection manager.
func (g *Guard) Reconnect() reconnect.Manager { return g.reconnect }

// Blocklist returns the IP blocklist.
func (g *Guard) Blocklist() *security.Blocklist { return g.blocklist }

// CheckRateLimit records an event against an identifier's quota. It
// returns false with a *rgerrors.Error (code RATE_LIMIT_EXCEEDED) when
// the quota is exhausted. Unregistered limit types and store failures
// fail open.
func (g *Guard) CheckRateLimit(ctx context.Context, limitType ratelimit.LimitType, identifier string) (bool, error) {
	allowed, err := g.limiter.Check(ctx, limitType, identifier)

	switch {
	case errors.Is(err, ratelimit.ErrUnknownLimitType):
		g.metrics.recordRateLimit(string(limitType), "unknown_type")
		return true, nil
	case err != nil:
		g.metrics.recordRateLimit(string(limitType), "denied")
		return false, err
	default:
		g.metrics.recordRateLimit(string(limitType), "allowed")
	}

	return allowed, nil
}

// RateLimitStatus returns a read-only window snapshot.
func (g *Guard) RateLimitStatus(ctx context.Context, limitType ratelimit.LimitType, identifier string) (*ratelimit.Status, error) {
	return g.limiter.Status(ctx, limitType, identifier)
}

// ResetRateLimit clears tracked state for the pair. Administrative.
func (g *Guard) ResetRateLimit(ctx context.Context, limitType ratelimit.LimitType, identifier string) error {
	return g.limiter.Reset(ctx, limitType, identifier)
}

// BufferMessage appends a successfully relayed message to the room's
// replay buffer. Failures are swallowed by the manager.
func (g *Guard) BufferMessage(ctx context.Context, roomID string, message json.RawMessage) {
	g.reconnect.BufferMessage(ctx, roomID, message)
	g.metrics.recordBuffered()
}

// HandleReconnect resolves what a returning user missed.
func (g *Guard) HandleReconnect(ctx context.Context, roomID, userID string) *reconnect.ReconnectResult {
	result := g.reconnect.HandleReconnect(ctx, roomID, userID)
	if result.IsReconnect {
		g.metrics.recordReconnect("reconnect")
	} else {
		g.metrics.recordReconnect("fresh")
	}
	return result
}

// MissedMessages returns buffered messages after a sequence, ascending.
func (g *Guard) MissedMessages(ctx context.Context, roomID string, afterSequence int64) ([]reconnect.BufferedMessage, error) {
	return g.reconnect.MissedMessages(ctx, roomID, afterSequence)
}

// TrackUserState upserts a user's continuity snapshot.
func (g *Guard) TrackUserState(ctx context.Context, roomID, userID string, connected bool, lastSequence int64) error {
	return g.reconnect.TrackUserState(ctx, roomID, userID, connected, lastSequence)
}

// UserState returns a user's last snapshot, or nil when absent.
func (g *Guard) UserState(ctx context.Context, roomID, userID string) (*reconnect.ConnectionState, error) {
	return g.reconnect.UserState(ctx, roomID, userID)
}

// DetectQuality classifies a metrics sample and persists it when state
// exists.
func (g *Guard) DetectQuality(ctx context.Context, roomID, userID string, sample reconnect.QualityMetrics) reconnect.Quality {
	return g.reconnect.DetectQuality(ctx, roomID, userID, sample)
}

// CleanupRoom removes all reconnection state for a closed room.
func (g *Guard) CleanupRoom(ctx context.Context, roomID string) error {
	return g.reconnect.CleanupRoom(ctx, roomID)
}

// SanitizeText strips markup and script vectors from user text.
func (g *Guard) SanitizeText(text string, maxLength int) string {
	return g.sanitizer.SanitizeText(text, maxLength)
}

// SanitizeHTML sanitizes HTML against the configured allow-list.
func (g *Guard) SanitizeHTML(html string, maxLength int) string {
	return g.sanitizer.SanitizeHTML(html, maxLength)
}

// ValidateUpload vets an uploaded file by name, size, and content.
func (g *Guard) ValidateUpload(filename string, size int64, content []byte) error {
	err := g.files.ValidateUpload(filename, size, content)
	if err != nil {
		g.metrics.recordRejection("file")
	}
	return err
}

// ScanFileContent runs signature heuristics over raw content.
func (g *Guard) ScanFileContent(content []byte, ext string) error {
	err := g.files.ScanContent(content, ext)
	if err != nil {
		g.metrics.recordRejection("file_content")
	}
	return err
}

// FileChecksum returns the SHA-256 hex digest of content.
func (g *Guard) FileChecksum(content []byte) string {
	return security.Checksum(content)
}

// ValidateRoomID reports whether a room identifier is acceptable.
func (g *Guard) ValidateRoomID(roomID string) bool {
	ok := security.ValidateRoomID(roomID)
	if !ok {
		g.metrics.recordRejection("room_id")
	}
	return ok
}

// ValidateUsername reports whether a username is acceptable.
func (g *Guard) ValidateUsername(name string) bool {
	ok := security.ValidateUsername(name)
	if !ok {
		g.metrics.recordRejection("username")
	}
	return ok
}

// IsIPBlocked reports whether an IP is on the denylist.
func (g *Guard) IsIPBlocked(ctx context.Context, ip string) bool {
	return g.blocklist.IsBlocked(ctx, ip)
}

// BlockIP adds an IP to the denylist.
func (g *Guard) BlockIP(ctx context.Context, ip string) error {
	return g.blocklist.Add(ctx, ip)
}

// UnblockIP removes an IP from the denylist.
func (g *Guard) UnblockIP(ctx context.Context, ip string) error {
	return g.blocklist.Remove(ctx, ip)
}

// Close releases resources owned by the guard.
func (g *Guard) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
