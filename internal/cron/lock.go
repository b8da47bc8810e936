package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 5 * time.Minute

// Lock gives one worker at a time the right to run a named job.
type Lock interface {
	Acquire(ctx context.Context, job string) (bool, error)
	Release(ctx context.Context, job string) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfValue(ctx context.Context, key, want string) (bool, error)
	LockKey(name string) string
}

// RedisLock takes one SETNX lease per job, tagged with a token only this process knows.
// The TTL bounds how long a crashed worker can hold a job.
type RedisLock struct {
	store leaseStore
	ttl   time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLock(store leaseStore, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, ttl: ttl, tokens: map[string]string{}}, nil
}

func (l *RedisLock) Acquire(ctx context.Context, job string) (bool, error) {
	if job == "" {
		return false, errors.New("job name required")
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.store.LockKey(job), token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s lease: %w", job, err)
	}
	if ok {
		l.mu.Lock()
		l.tokens[job] = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the lease if it still carries this worker's token. An expired lease
// already taken over by another worker is left alone.
func (l *RedisLock) Release(ctx context.Context, job string) error {
	l.mu.Lock()
	token, held := l.tokens[job]
	delete(l.tokens, job)
	l.mu.Unlock()
	if !held {
		return nil
	}
	if _, err := l.store.DeleteIfValue(ctx, l.store.LockKey(job), token); err != nil {
		return fmt.Errorf("release %s lease: %w", job, err)
	}
	return nil
}
