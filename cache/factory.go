package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/album-client/cache/memory"
	"github.com/anoixa/album-client/cache/redis"
	"github.com/mitchellh/mapstructure"
)

// Factory 缓存工厂。根据配置选择提供者。
type Factory struct {
	provider Provider
}

// NewFactory 创建缓存工厂。
// providerType: "memory" | "redis"，settings 为提供者配置项。
func NewFactory(providerType string, settings map[string]interface{}) (*Factory, error) {
	if providerType == "" {
		providerType = "memory"
	}

	var provider Provider
	var err error
	switch providerType {
	case "memory":
		provider, err = createMemoryProvider(settings)
	case "redis":
		provider, err = createRedisProvider(settings)
	default:
		return nil, fmt.Errorf("unsupported cache provider type: %s", providerType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	log.Printf("[CacheFactory] Using %s cache provider", provider.Name())
	return &Factory{provider: provider}, nil
}

// createMemoryProvider 创建内存缓存提供者
func createMemoryProvider(settings map[string]interface{}) (Provider, error) {
	memConfig := memory.Config{
		NumCounters: 100000,
		MaxCost:     128 * 1024 * 1024, // 128MB
		BufferItems: 64,
		Metrics:     false,
	}
	if err := mapstructure.Decode(settings, &memConfig); err != nil {
		return nil, fmt.Errorf("invalid memory cache settings: %w", err)
	}
	return memory.NewMemory(memConfig)
}

// createRedisProvider 创建 Redis 缓存提供者
func createRedisProvider(settings map[string]interface{}) (Provider, error) {
	redisConfig := redis.Config{
		Address:      "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 5,
	}
	if err := mapstructure.Decode(settings, &redisConfig); err != nil {
		return nil, fmt.Errorf("invalid redis cache settings: %w", err)
	}
	return redis.NewRedisFromConfig(&redisConfig)
}

// GetProvider 获取缓存提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// Close 关闭缓存提供者
func (f *Factory) Close() error {
	if f.provider == nil {
		return nil
	}
	return f.provider.Close()
}

// --- 便捷方法 ---

// Set 设置缓存项
func (f *Factory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Set(ctx, key, value, expiration)
}

// Get 获取缓存项，未命中统一返回 ErrCacheMiss
func (f *Factory) Get(ctx context.Context, key string, dest interface{}) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	err := f.provider.Get(ctx, key, dest)
	if errors.Is(err, memory.ErrCacheMiss) || errors.Is(err, redis.ErrCacheMiss) {
		return ErrCacheMiss
	}
	return err
}

// Delete 删除缓存项
func (f *Factory) Delete(ctx context.Context, key string) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Delete(ctx, key)
}

// Exists 检查缓存项是否存在
func (f *Factory) Exists(ctx context.Context, key string) (bool, error) {
	if f.provider == nil {
		return false, fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Exists(ctx, key)
}
