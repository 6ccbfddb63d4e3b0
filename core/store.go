package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 领域层不依赖基础设施层
//
// 使用场景：
//   - 模型快照：线性模型权重、推荐模型偏置与隐向量
//   - 特征缓存：在线特征富化的结果缓存
//
// 实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}

// Snapshotter 由可持久化状态的模型实现。
// MarshalState 输出 JSON，UnmarshalState 以其恢复模型（超参数不在快照内）。
type Snapshotter interface {
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}

// SaveSnapshot 将模型状态写入 Store。
func SaveSnapshot(ctx context.Context, s Store, key string, m Snapshotter, ttl ...int) error {
	data, err := m.MarshalState()
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data, ttl...)
}

// LoadSnapshot 从 Store 读取并恢复模型状态。
func LoadSnapshot(ctx context.Context, s Store, key string, m Snapshotter) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return m.UnmarshalState(data)
}
