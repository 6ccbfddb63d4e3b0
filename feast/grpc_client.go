package feast

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/flowml/core"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
//
// 使用官方 SDK (github.com/feast-dev/feast/sdk/go) 提供的 gRPC 客户端。
type GrpcClient struct {
	// client 官方 SDK 的 gRPC 客户端
	client *feastsdk.GrpcClient

	// Project 项目名称
	Project string

	// Endpoint 服务端点（用于信息展示）
	Endpoint string

	timeout time.Duration
}

// NewGrpcClient 创建一个基于官方 SDK 的 Feast gRPC 客户端。
//
// 参数：
//   - host: Feast Feature Server 主机地址，例如 "localhost"
//   - port: gRPC 端口，默认 6565
//   - project: 项目名称
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565 // 默认 gRPC 端口
	}

	config := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if config.Token != "" || config.EnableTLS {
		security := feastsdk.SecurityConfig{EnableTLS: config.EnableTLS}
		if config.Token != "" {
			security.Credential = feastsdk.NewStaticCredential(config.Token)
		}
		client, err = feastsdk.NewSecureGrpcClient(host, port, security)
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("feast: dial %s: %w", config.Endpoint, err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: config.Endpoint,
		timeout:  config.Timeout,
	}, nil
}

// NewGrpcClientFromEndpoint 解析 "host:port" 或 "grpc://host:port" 形式的端点后创建客户端。
func NewGrpcClientFromEndpoint(endpoint, project string, opts ...ClientOption) (*GrpcClient, error) {
	host, port := parseEndpoint(endpoint)
	return NewGrpcClient(host, port, project, opts...)
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, invalidInput("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, invalidInput("entity rows are required")
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, invalidInput("project is required")
	}
	if c.client == nil {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "feast: client closed")
	}

	// SDK 的 Row 类型是 map[string]*types.Value
	entityRows := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		entityRow := make(feastsdk.Row, len(row))
		for k, v := range row {
			entityRow[k] = toSDKValue(v)
		}
		entityRows[i] = entityRow
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	sdkResp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entityRows,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast: get online features: %w",
			core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, err.Error()))
	}

	rows := sdkResp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("feast: response row count mismatch: expected %d, got %d", len(req.EntityRows), len(rows))
	}

	vectors := make([]FeatureVector, len(rows))
	for i, row := range rows {
		values := make(map[string]any, len(req.Features))
		for _, name := range req.Features {
			if val, ok := row[name]; ok {
				if v := fromSDKValue(val); v != nil {
					values[name] = v
				}
			}
		}
		vectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 关闭客户端（实现 Client 接口）
// 官方 SDK 的连接由 gRPC 库管理，这里只释放引用。
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

func invalidInput(msg string) error {
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feast: "+msg)
}

// toSDKValue 将实体值转换为 SDK 的 *types.Value
func toSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int64Val(int64(val))
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// fromSDKValue 将 SDK 的 *types.Value 转换为特征值：数值统一为 float64，布尔值为 1/0。
// 未设置的值（特征缺失）返回 nil。
func fromSDKValue(val *types.Value) any {
	if val == nil {
		return nil
	}
	switch v := val.GetVal().(type) {
	case *types.Value_StringVal:
		return v.StringVal
	case *types.Value_Int64Val:
		return float64(v.Int64Val)
	case *types.Value_Int32Val:
		return float64(v.Int32Val)
	case *types.Value_DoubleVal:
		return v.DoubleVal
	case *types.Value_FloatVal:
		return float64(v.FloatVal)
	case *types.Value_BoolVal:
		if v.BoolVal {
			return 1.0
		}
		return 0.0
	case *types.Value_BytesVal:
		return string(v.BytesVal)
	default:
		return nil
	}
}

// parseEndpoint 解析端点地址，返回 host 和 port
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	host, portStr, ok := strings.Cut(endpoint, ":")
	if ok {
		if port, err := strconv.Atoi(portStr); err == nil {
			return host, port
		}
	}
	return endpoint, 0
}

// 确保 GrpcClient 实现了 Client 接口
var _ Client = (*GrpcClient)(nil)
