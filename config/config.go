package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 后端 API 配置
	APIBaseURL   string        `mapstructure:"api_base_url"`
	APITimeout   time.Duration `mapstructure:"api_timeout"`
	APIRateLimit float64       `mapstructure:"api_rate_limit_rps"`
	APIRateBurst int           `mapstructure:"api_rate_limit_burst"`

	// 本地状态配置
	StateDir        string `mapstructure:"state_dir"`
	StateEncryption bool   `mapstructure:"state_encryption"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheMaxSizeMB     int64  `mapstructure:"cache_max_size_mb"`
	CacheTTL           int    `mapstructure:"cache_ttl"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`

	// 上传配置
	UploadMaxSizeMB   int `mapstructure:"upload_max_size_mb"`
	UploadConcurrency int `mapstructure:"upload_concurrency"`
	ShareExpiresDays  int `mapstructure:"share_expires_days"`

	// 本地画廊配置
	GalleryHost string `mapstructure:"gallery_host"`
	GalleryPort int    `mapstructure:"gallery_port"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	cfgFile := viper.GetString("config_file_path")
	if cfgFile == "" {
		cfgFile = ".env"
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintln(os.Stderr, "Info: config file not found, using defaults and environment variables")
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}

	globalConfig.APIBaseURL = strings.TrimRight(globalConfig.APIBaseURL, "/")
}

// setDefaults 设置默认值
func setDefaults() {
	// 后端 API 默认值
	viper.SetDefault("api_base_url", "http://localhost:8000")
	viper.SetDefault("api_timeout", "30s")
	viper.SetDefault("api_rate_limit_rps", 30.0)
	viper.SetDefault("api_rate_limit_burst", 60)

	// 本地状态默认值
	viper.SetDefault("state_dir", defaultStateDir())
	viper.SetDefault("state_encryption", true)

	// 缓存默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_max_size_mb", 128)
	viper.SetDefault("cache_ttl", 3600)
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)

	// 上传默认值
	viper.SetDefault("upload_max_size_mb", 10)
	viper.SetDefault("upload_concurrency", 3)
	viper.SetDefault("share_expires_days", 30)

	// 画廊默认值
	viper.SetDefault("gallery_host", "127.0.0.1")
	viper.SetDefault("gallery_port", 8380)
}

// defaultStateDir 本地状态目录，优先放在用户目录下
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".album-client")
}

// GalleryAddr 返回画廊监听地址，格式为 "host:port"
func (c *Config) GalleryAddr() string {
	host := c.GalleryHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.GalleryPort
	if port == 0 {
		port = 8380
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// UploadMaxSizeBytes 上传大小上限（字节）
func (c *Config) UploadMaxSizeBytes() int64 {
	mb := c.UploadMaxSizeMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}
