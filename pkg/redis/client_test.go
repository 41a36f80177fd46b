package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
)

func TestSetNXGetDel(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = client.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "first", value)

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	require.ErrorIs(t, err, redis.Nil)
}

func TestSetOverwrites(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "pending", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, client.Set(ctx, "k", "final", time.Hour))
	value, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "final", value)
}

func TestUninitializedClient(t *testing.T) {
	ctx := context.Background()
	client := &Client{}

	_, err := client.Get(ctx, "k")
	require.ErrorIs(t, err, errNotInitialized)
	_, err = client.SetNX(ctx, "k", "v", time.Second)
	require.ErrorIs(t, err, errNotInitialized)
	require.ErrorIs(t, client.Set(ctx, "k", "v", time.Second), errNotInitialized)
	require.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	require.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "il:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "il:idempotency:scope", client.IdempotencyKey(" scope ", ""))
	require.Equal(t, "il:lock:tracker-backfill", client.LockKey("tracker-backfill"))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://localhost:6379/3",
		PoolSize:    7,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 3, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, 2*time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", DB: 2})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
