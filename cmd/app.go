package cmd

import (
	"fmt"
	"log"

	"github.com/anoixa/album-client/api"
	"github.com/anoixa/album-client/cache"
	"github.com/anoixa/album-client/config"
	"github.com/anoixa/album-client/internal/albums"
	"github.com/anoixa/album-client/internal/session"
	"github.com/anoixa/album-client/internal/state"
	"github.com/anoixa/album-client/utils/crypto"
)

// appContext 命令共享的应用装配
type appContext struct {
	cfg     *config.Config
	state   *state.Store
	client  *api.Client
	session *session.Service
	albums  *albums.Service
}

// newAppContext 初始化配置、本地状态和各存储
func newAppContext() (*appContext, error) {
	config.InitConfig()
	cfg := config.Get()

	var encryptor *crypto.ValueEncryptor
	if cfg.StateEncryption {
		keyManager := crypto.NewMasterKeyManager(cfg.StateDir)
		if err := keyManager.Initialize(); err != nil {
			return nil, fmt.Errorf("failed to initialize state encryption: %w", err)
		}
		encryptor = crypto.NewValueEncryptor(keyManager.GetKey())
	}

	store, err := state.Open(cfg.StateDir, encryptor)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.APIBaseURL, store,
		api.WithTimeout(cfg.APITimeout),
		api.WithRateLimit(cfg.APIRateLimit, cfg.APIRateBurst),
	)

	return &appContext{
		cfg:     cfg,
		state:   store,
		client:  client,
		session: session.NewService(client, store),
		albums:  albums.NewService(client, cfg.ShareExpiresDays),
	}, nil
}

// cacheFactory 按配置构建缓存工厂
func (a *appContext) cacheFactory() (*cache.Factory, error) {
	settings := map[string]interface{}{
		"max_cost":     a.cfg.CacheMaxSizeMB * 1024 * 1024,
		"num_counters": int64(100000),
		"buffer_items": int64(64),
		"address":      a.cfg.CacheRedisAddr,
		"password":     a.cfg.CacheRedisPassword,
		"db":           a.cfg.CacheRedisDB,
	}
	return cache.NewFactory(a.cfg.CacheType, settings)
}

// Close 释放本地资源
func (a *appContext) Close() {
	if err := a.state.Close(); err != nil {
		log.Printf("[App] Failed to close state store: %v", err)
	}
}
