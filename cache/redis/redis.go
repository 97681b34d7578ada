package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = errors.New("cache miss")

// Redis 缓存实现
type Redis struct {
	client *redis.Client
}

// Config Redis 缓存配置
type Config struct {
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

// NewRedisFromConfig 创建新的 Redis 缓存提供者
func NewRedisFromConfig(config *Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Set 设置缓存项
func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, ok := value.([]byte)
	if !ok {
		var err error
		data, err = json.Marshal(value)
		if err != nil {
			return err
		}
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get 获取缓存项
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return err
	}

	if b, ok := dest.(*[]byte); ok {
		*b = data
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存项
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Exists 检查缓存项是否存在
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// Close 关闭缓存连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Name 返回缓存提供者名称
func (r *Redis) Name() string {
	return "redis"
}
