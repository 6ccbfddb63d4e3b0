package builders

import (
	"time"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/feast"
	"github.com/rushteam/flowml/feature"
	"github.com/rushteam/flowml/pkg/conv"
	"github.com/rushteam/flowml/store"
)

// BuildFeastEnricher 构建 Feast 特征富化步骤。
//
//	type: feature.feast
//	config:
//	  endpoint: grpc://feast:6566
//	  project: driver_ranking
//	  entity_field: driver
//	  entity_key: driver_id
//	  features: [driver_hourly_stats:conv_rate]
//	  timeout_ms: 200
//	  cache: {type: redis, addr: "localhost:6379", ttl: 60}
func BuildFeastEnricher(cfg map[string]any) (core.Estimator, error) {
	endpoint, err := requireString(cfg, "endpoint")
	if err != nil {
		return nil, err
	}
	entityField, err := requireString(cfg, "entity_field")
	if err != nil {
		return nil, err
	}
	features := conv.SliceAnyToString(cfg["features"])
	if len(features) == 0 {
		return nil, invalid("features not found")
	}

	var clientOpts []feast.ClientOption
	if token := conv.ConfigGet(cfg, "token", ""); token != "" {
		clientOpts = append(clientOpts, feast.WithStaticToken(token))
	}
	if conv.ConfigGet(cfg, "tls", false) {
		clientOpts = append(clientOpts, feast.WithTLS())
	}
	client, err := feast.NewGrpcClientFromEndpoint(endpoint, conv.ConfigGet(cfg, "project", ""), clientOpts...)
	if err != nil {
		return nil, err
	}

	opts := []feature.EnricherOption{
		feature.WithPrefix(conv.ConfigGet(cfg, "prefix", "")),
		feature.WithEntityKey(conv.ConfigGet(cfg, "entity_key", "")),
	}
	if defaults := conv.ConfigGetMap(cfg, "defaults"); defaults != nil {
		opts = append(opts, feature.WithDefaults(defaults))
	}
	if cacheCfg := conv.ConfigGetMap(cfg, "cache"); cacheCfg != nil {
		cache, err := buildStore(cacheCfg)
		if err != nil {
			client.Close()
			return nil, err
		}
		opts = append(opts, feature.WithCache(cache, int(conv.ConfigGetInt64(cacheCfg, "ttl", 0))))
	}

	e, err := feature.NewFeastEnricher(client, entityField, features, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	if ms := conv.ConfigGetInt64(cfg, "timeout_ms", 0); ms > 0 {
		e.Timeout = time.Duration(ms) * time.Millisecond
	}
	return e, nil
}

// buildStore 根据 {type: memory|redis, ...} 构建缓存存储。
func buildStore(cfg map[string]any) (core.Store, error) {
	switch conv.ConfigGet(cfg, "type", "memory") {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		addr, err := requireString(cfg, "addr")
		if err != nil {
			return nil, err
		}
		var opts []store.RedisOption
		if pw := conv.ConfigGet(cfg, "password", ""); pw != "" {
			opts = append(opts, store.WithPassword(pw))
		}
		if prefix := conv.ConfigGet(cfg, "key_prefix", ""); prefix != "" {
			opts = append(opts, store.WithKeyPrefix(prefix))
		}
		s, err := store.NewRedisStore(addr, int(conv.ConfigGetInt64(cfg, "db", 0)), opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, invalid("unknown cache type %q (supported: memory, redis)", conv.ConfigGet(cfg, "type", ""))
	}
}
