// Package store 提供 core.Store 的实现：MemoryStore（测试/开发/单机）与 RedisStore（生产）。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
//	err := core.SaveSnapshot(ctx, s, "model:lr", lr)
package store

import "github.com/rushteam/flowml/core"

// ErrNotFound 是 key 不存在时返回的错误，与 core.ErrStoreNotFound 相同。
var ErrNotFound = core.ErrStoreNotFound
