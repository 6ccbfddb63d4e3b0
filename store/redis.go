package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/flowml/core"
)

// RedisStore 是 Redis 实现的 Store。
// 生产环境常用，支持持久化、集群、哨兵等；模型快照与特征缓存可在多个进程间共享。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption RedisStore 配置选项
type RedisOption func(*redis.Options, *RedisStore)

// WithPassword 设置 Redis 密码
func WithPassword(password string) RedisOption {
	return func(o *redis.Options, _ *RedisStore) {
		o.Password = password
	}
}

// WithKeyPrefix 给所有 key 加前缀，便于多个实验共用一个 Redis 实例。
func WithKeyPrefix(prefix string) RedisOption {
	return func(_ *redis.Options, r *RedisStore) {
		r.prefix = prefix
	}
}

// NewRedisStore 连接 Redis 并 Ping 一次，连接失败返回 UNAVAILABLE 错误。
func NewRedisStore(addr string, db int, opts ...RedisOption) (*RedisStore, error) {
	options := &redis.Options{
		Addr: addr,
		DB:   db,
	}
	r := &RedisStore{}
	for _, opt := range opts {
		opt(options, r)
	}
	r.client = redis.NewClient(options)
	if err := r.client.Ping(context.Background()).Err(); err != nil {
		_ = r.client.Close()
		return nil, fmt.Errorf("store: redis %s: %w", addr,
			core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable, err.Error()))
	}
	return r, nil
}

// NewRedisStoreFromClient 使用已有的客户端创建 Store。
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return r.client.Set(ctx, r.key(key), value, expiration(ttl)).Err()
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	vals, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]byte, len(keys))
	for i, k := range keys {
		if s, ok := vals[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	pipe := r.client.Pipeline()
	exp := expiration(ttl)
	for k, v := range kvs {
		pipe.Set(ctx, r.key(k), v, exp)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func expiration(ttl []int) time.Duration {
	if len(ttl) > 0 && ttl[0] > 0 {
		return time.Duration(ttl[0]) * time.Second
	}
	return 0
}

// 确保 RedisStore 实现了 core.Store 接口
var _ core.Store = (*RedisStore)(nil)
