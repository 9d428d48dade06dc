package auth

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations records logged-out token IDs until the tokens would have expired anyway.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "catalog:revoked:"

// RedisRevocations keeps the denylist in redis so it is shared across instances.
type RedisRevocations struct {
	client *redis.Client
	logger *log.Logger
}

// NewRedisRevocations wraps a connected redis client.
func NewRedisRevocations(client *redis.Client, logger *log.Logger) *RedisRevocations {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisRevocations{client: client, logger: logger}
}

// Revoke stores tokenID with a TTL ending at until. Already-expired tokens are skipped.
func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		r.logger.Printf("auth: redis revoke failed: %v", err)
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID is on the denylist.
func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// MemoryRevocations is the single-process denylist used when redis is not configured.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations constructs an empty in-process denylist.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke records tokenID until the given time and drops expired entries.
func (m *MemoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, id)
		}
	}
	if until.After(now) {
		m.revoked[tokenID] = until
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked and has not yet expired.
func (m *MemoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.revoked[tokenID]
	return ok && exp.After(m.now()), nil
}

// DialRedis connects to redis and pings it. It returns nil when addr is empty or the
// server is unreachable, in which case callers fall back to MemoryRevocations.
func DialRedis(ctx context.Context, addr, password string, db int, logger *log.Logger) *redis.Client {
	if logger == nil {
		logger = log.Default()
	}
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Printf("auth: redis unavailable at %s, using in-memory revocations: %v", addr, err)
		_ = client.Close()
		return nil
	}
	logger.Printf("auth: redis revocations enabled at %s", addr)
	return client
}
