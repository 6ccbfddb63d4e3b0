package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rushteam/flowml/core"
)

func TestMemoryStore(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err))

	value := []byte("v1")
	require.NoError(t, s.Set(ctx, "k1", value))
	value[0] = 'x'
	got, err := s.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "stored value must be a copy")

	require.NoError(t, s.BatchSet(ctx, map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
	batch, err := s.BatchGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": []byte("2")}, batch)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStoreExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 1))
	s.mu.Lock()
	s.data["k"].expire = time.Now().Add(-time.Second)
	s.mu.Unlock()

	_, err := s.Get(ctx, "k")
	assert.True(t, core.IsNotFound(err))

	s.removeExpired(time.Now())
	assert.Equal(t, 0, s.Len())
}

// 需要本地 Redis：REDIS_ADDR=localhost:6379 go test ./store/
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("需要设置 REDIS_ADDR 连接真实的 Redis 才能运行")
	}

	ctx := context.Background()
	s, err := NewRedisStore(addr, 0, WithKeyPrefix("flowml:test:"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestNewRedisStoreUnavailable(t *testing.T) {
	_, err := NewRedisStore("127.0.0.1:1", 0)
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
}
