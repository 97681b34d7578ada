package cache

import (
	"context"
	"time"
)

// Provider 缓存提供者接口。
// 图片加载器的受保护图片字节、画廊缩略图和共享相册响应都经由此接口缓存，
// 内存 / Redis 实现可通过配置切换。
type Provider interface {
	// Set 写入缓存项，expiration 为 0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Get 读取缓存项到 dest，未命中返回各实现的 cache miss 错误
	Get(ctx context.Context, key string, dest interface{}) error

	// Delete 删除缓存项
	Delete(ctx context.Context, key string) error

	// Exists 检查缓存项是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Close 关闭缓存连接
	Close() error

	// Name 返回缓存提供者名称
	Name() string
}

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = &cacheMissError{}

type cacheMissError struct{}

func (e *cacheMissError) Error() string {
	return "cache miss"
}

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*cacheMissError)
	return ok
}
