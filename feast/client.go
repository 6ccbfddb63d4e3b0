// Package feast 提供 Feast 在线特征客户端，供 feature.FeastEnricher 在流式学习时补充特征。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的在线特征客户端接口。
//
// feature.FeastEnricher 只依赖此接口，测试时可以替换为内存实现。
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征（用于实时预测）
	//
	// 参数：
	//   - features: 特征名称列表，例如 ["driver_hourly_stats:conv_rate", "driver_hourly_stats:acc_rate"]
	//   - entityRows: 实体行，例如 [{"driver_id": 1001}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征名称列表，例如 ["driver_hourly_stats:conv_rate", "driver_hourly_stats:acc_rate"]
	Features []string

	// EntityRows 实体行，例如 [{"driver_id": 1001}, {"driver_id": 1002}]
	EntityRows []map[string]any

	// Project 项目名称（可选）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征名称，value 为特征值（数值统一为 float64）
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时时间
	Timeout time.Duration

	// Token 静态 Token 认证（为空时使用无认证连接）
	Token string

	// EnableTLS 是否启用 TLS
	EnableTLS bool
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithStaticToken 配置选项：使用静态 Token 认证
func WithStaticToken(token string) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
	}
}

// WithTLS 配置选项：启用 TLS
func WithTLS() ClientOption {
	return func(c *ClientConfig) {
		c.EnableTLS = true
	}
}
