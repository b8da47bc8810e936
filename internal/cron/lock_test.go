package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRedis struct {
	values map[string]string
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) DeleteIfValue(_ context.Context, key, want string) (bool, error) {
	if m.values[key] != want {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryRedis) LockKey(name string) string { return "lock:" + name }

func TestRedisLockIsPerJob(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	first, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := first.Acquire(ctx, "payment-expiry")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx, "payment-expiry")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = second.Acquire(ctx, "outbox-retention")
	require.NoError(t, err)
	require.True(t, ok)

	// a worker that never held the lease cannot free it
	require.NoError(t, second.Release(ctx, "payment-expiry"))
	require.Contains(t, store.values, "lock:payment-expiry")

	require.NoError(t, first.Release(ctx, "payment-expiry"))
	require.NotContains(t, store.values, "lock:payment-expiry")
}

func TestRedisLockLeavesForeignLease(t *testing.T) {
	store := &memoryRedis{values: map[string]string{}}
	lock, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "job")
	require.NoError(t, err)
	require.True(t, ok)

	// lease expired and another worker took it
	store.values["lock:job"] = "someone-else"
	require.NoError(t, lock.Release(ctx, "job"))
	require.Equal(t, "someone-else", store.values["lock:job"])
}
