package feature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/flowml/core"
	"github.com/rushteam/flowml/feast"
	"github.com/rushteam/flowml/pkg/conv"
)

// FeastEnricher 是特征富化变换器：以样本中的实体字段为 key，从 Feast 获取在线特征并合并进 x。
//
// 工程特征：
//   - 缓存：可选 core.Store（MemoryStore / RedisStore），按实体缓存 Feast 响应
//   - 降级：Feast 不可用时使用 Defaults；未设置 Defaults 时返回 UNAVAILABLE 错误
//   - 命名：输出特征名为 Prefix + 特征引用中 ":" 之后的部分
type FeastEnricher struct {
	client feast.Client

	// EntityField 样本中实体值所在的特征名，例如 "driver"
	EntityField string
	// EntityKey Feast 中的实体名，为空时与 EntityField 相同，例如 "driver_id"
	EntityKey string
	// Features Feast 特征引用，例如 "driver_hourly_stats:conv_rate"
	Features []string
	// Project 项目名称（可选，为空时使用客户端默认项目）
	Project string
	// Prefix 输出特征名前缀
	Prefix string
	// Timeout 单次请求超时
	Timeout time.Duration
	// Defaults 降级特征值（key 为输出特征名）
	Defaults map[string]any

	cache    core.Store
	cacheTTL int
}

// EnricherOption FeastEnricher 配置选项
type EnricherOption func(*FeastEnricher)

// WithCache 使用 Store 缓存 Feast 响应，ttl 单位为秒（0 表示不过期）。
func WithCache(s core.Store, ttl int) EnricherOption {
	return func(e *FeastEnricher) {
		e.cache, e.cacheTTL = s, ttl
	}
}

// WithDefaults 设置降级特征值。
func WithDefaults(defaults map[string]any) EnricherOption {
	return func(e *FeastEnricher) {
		e.Defaults = defaults
	}
}

// WithPrefix 设置输出特征名前缀。
func WithPrefix(prefix string) EnricherOption {
	return func(e *FeastEnricher) {
		e.Prefix = prefix
	}
}

// WithEntityKey 设置 Feast 实体名。
func WithEntityKey(key string) EnricherOption {
	return func(e *FeastEnricher) {
		e.EntityKey = key
	}
}

// NewFeastEnricher 创建特征富化变换器。
func NewFeastEnricher(client feast.Client, entityField string, features []string, opts ...EnricherOption) (*FeastEnricher, error) {
	if client == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: feast client is required")
	}
	if entityField == "" || len(features) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: entity field and features are required")
	}
	e := &FeastEnricher{
		client:      client,
		EntityField: entityField,
		Features:    features,
		Timeout:     time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.EntityKey == "" {
		e.EntityKey = entityField
	}
	return e, nil
}

func (e *FeastEnricher) Name() string { return "FeastEnricher(" + e.EntityField + ")" }

func (e *FeastEnricher) LearnOne(core.Features) error { return nil }

// TransformOne 同 TransformOneContext，使用 context.Background()。
func (e *FeastEnricher) TransformOne(x core.Features) (core.Features, error) {
	return e.TransformOneContext(context.Background(), x)
}

// TransformOneContext 获取实体的在线特征并合并进 x 的副本；样本没有实体字段时原样返回。
func (e *FeastEnricher) TransformOneContext(ctx context.Context, x core.Features) (core.Features, error) {
	out := x.Clone()
	entity, ok := x[e.EntityField]
	if !ok || entity == nil {
		return out, nil
	}

	values, err := e.fetch(ctx, entity)
	if err != nil {
		if e.Defaults == nil {
			return nil, err
		}
		values = e.Defaults
	}
	for k, v := range values {
		out[k] = v
	}
	return out, nil
}

func (e *FeastEnricher) fetch(ctx context.Context, entity any) (map[string]any, error) {
	cacheKey := "feast:" + e.EntityKey + ":" + conv.Key(entity)
	if e.cache != nil {
		if data, err := e.cache.Get(ctx, cacheKey); err == nil {
			var cached map[string]any
			if json.Unmarshal(data, &cached) == nil {
				return cached, nil
			}
		}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	resp, err := e.client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   e.Features,
		EntityRows: []map[string]any{{e.EntityKey: entity}},
		Project:    e.Project,
	})
	if err != nil {
		return nil, fmt.Errorf("feature: enrich %s=%v: %w", e.EntityKey, entity, err)
	}
	if len(resp.FeatureVectors) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotFound,
			fmt.Sprintf("feature: no features for %s=%v", e.EntityKey, entity))
	}

	values := make(map[string]any, len(resp.FeatureVectors[0].Values))
	for ref, v := range resp.FeatureVectors[0].Values {
		values[e.outputName(ref)] = v
	}
	if e.cache != nil {
		if data, err := json.Marshal(values); err == nil {
			// 缓存写入失败不影响本次结果
			_ = e.cache.Set(ctx, cacheKey, data, e.cacheTTL)
		}
	}
	return values, nil
}

// Close 关闭 Feast 客户端与缓存。
func (e *FeastEnricher) Close() error {
	err := e.client.Close()
	if e.cache != nil {
		err = errors.Join(err, e.cache.Close())
	}
	return err
}

func (e *FeastEnricher) outputName(ref string) string {
	if _, name, ok := strings.Cut(ref, ":"); ok {
		ref = name
	}
	return e.Prefix + ref
}

var _ core.Transformer = (*FeastEnricher)(nil)
