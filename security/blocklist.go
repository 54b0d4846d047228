package security

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/roomguard/roomguard/logger"
)

// BlocklistConfig configures a Blocklist.
type BlocklistConfig struct {
	// KeyPrefix namespaces blocklist keys in the shared store.
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`

	// EntryTTL bounds how long an entry blocks. Zero means entries stay
	// until removed.
	EntryTTL time.Duration `mapstructure:"entry_ttl" yaml:"entry_ttl"`
}

// DefaultBlocklistConfig returns the default blocklist configuration.
func DefaultBlocklistConfig() BlocklistConfig {
	return BlocklistConfig{
		KeyPrefix: "security:blocklist:ip",
	}
}

// Blocklist is a denylist of client IPs consulted on every request. With
// a redis client it is shared across instances (one key per entry so TTLs
// apply per IP); without one it degrades to a process-local map.
type Blocklist struct {
	client *redis.Client
	config BlocklistConfig
	log    logger.Logger

	mu    sync.RWMutex
	local map[string]time.Time // ip -> expiry (zero = permanent)
}

// NewBlocklist creates a blocklist. client may be nil for process-local
// operation.
func NewBlocklist(client *redis.Client, config BlocklistConfig, log logger.Logger) *Blocklist {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultBlocklistConfig().KeyPrefix
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Blocklist{
		client: client,
		config: config,
		log:    log.Named("blocklist"),
		local:  make(map[string]time.Time),
	}
}

func (b *Blocklist) key(ip string) string {
	return b.config.KeyPrefix + ":" + ip
}

// IsBlocked reports whether ip is currently denied. Store failures fail
// open: an unreachable store must not block healthy traffic.
func (b *Blocklist) IsBlocked(ctx context.Context, ip string) bool {
	if b.client == nil {
		return b.localBlocked(ip)
	}

	n, err := b.client.Exists(ctx, b.key(ip)).Result()
	if err != nil {
		b.log.Error("blocklist lookup failed, allowing",
			zap.String("ip", ip), zap.Error(err))
		return false
	}

	return n > 0
}

func (b *Blocklist) localBlocked(ip string) bool {
	b.mu.RLock()
	expiry, ok := b.local[ip]
	b.mu.RUnlock()

	if !ok {
		return false
	}
	if !expiry.IsZero() && time.Now().After(expiry) {
		b.mu.Lock()
		delete(b.local, ip)
		b.mu.Unlock()
		return false
	}

	return true
}

// Add denies ip, with the configured per-entry TTL when set.
func (b *Blocklist) Add(ctx context.Context, ip string) error {
	if b.client == nil {
		var expiry time.Time
		if b.config.EntryTTL > 0 {
			expiry = time.Now().Add(b.config.EntryTTL)
		}
		b.mu.Lock()
		b.local[ip] = expiry
		b.mu.Unlock()
		return nil
	}

	return b.client.Set(ctx, b.key(ip), 1, b.config.EntryTTL).Err()
}

// Remove lifts the denial for ip.
func (b *Blocklist) Remove(ctx context.Context, ip string) error {
	if b.client == nil {
		b.mu.Lock()
		delete(b.local, ip)
		b.mu.Unlock()
		return nil
	}

	return b.client.Del(ctx, b.key(ip)).Err()
}
