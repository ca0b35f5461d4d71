package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rentward/backoffice/internal/domain/shared"
)

// ScopeLock serializes reconciliation passes over a (contract, partner) scope.
// Acquire returns shared.ErrScopeLocked when another pass holds the lock.
type ScopeLock interface {
	Acquire(ctx context.Context, contractID, partnerID uuid.UUID) (func(), error)
}

// RedisScopeLock implements ScopeLock on top of Redis SETNX. Suitable for
// distributed deployments where multiple instances reconcile the same scopes.
type RedisScopeLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisScopeLock creates a scope lock with an existing Redis client.
// The TTL bounds how long a crashed holder can block a scope.
func NewRedisScopeLock(client *redis.Client, ttl time.Duration) *RedisScopeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisScopeLock{
		client:    client,
		keyPrefix: "settlement:scope-lock:",
		ttl:       ttl,
	}
}

func (l *RedisScopeLock) key(contractID, partnerID uuid.UUID) string {
	return fmt.Sprintf("%s%s:%s", l.keyPrefix, contractID, partnerID)
}

// Acquire takes the lock for the scope and returns a release function.
// Release is best effort; the TTL guarantees the lock eventually clears.
func (l *RedisScopeLock) Acquire(ctx context.Context, contractID, partnerID uuid.UUID) (func(), error) {
	key := l.key(contractID, partnerID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire scope lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrScopeLocked
	}

	release := func() {
		// Only delete the lock if we still own it. A pass that overran the
		// TTL must not release a lock taken over by another holder.
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		l.client.Eval(context.Background(), script, []string{key}, token)
	}
	return release, nil
}

// InMemoryScopeLock is a process-local ScopeLock for tests and single
// instance deployments.
type InMemoryScopeLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

// NewInMemoryScopeLock creates a process-local scope lock.
func NewInMemoryScopeLock(ttl time.Duration) *InMemoryScopeLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InMemoryScopeLock{
		held:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

// Acquire takes the lock for the scope and returns a release function.
func (l *InMemoryScopeLock) Acquire(_ context.Context, contractID, partnerID uuid.UUID) (func(), error) {
	key := contractID.String() + ":" + partnerID.String()

	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && l.clock().Before(expiry) {
		return nil, shared.ErrScopeLocked
	}
	l.held[key] = l.clock().Add(l.ttl)

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}
	return release, nil
}

// NoopScopeLock disables scope locking. Only for environments where a
// single worker owns all scopes.
type NoopScopeLock struct{}

func (NoopScopeLock) Acquire(context.Context, uuid.UUID, uuid.UUID) (func(), error) {
	return func() {}, nil
}

var (
	_ ScopeLock = (*RedisScopeLock)(nil)
	_ ScopeLock = (*InMemoryScopeLock)(nil)
	_ ScopeLock = NoopScopeLock{}
)
