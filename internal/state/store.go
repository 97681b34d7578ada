package state

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anoixa/album-client/utils/crypto"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 持久化键名
const (
	KeyAccessToken  = "access_token"
	KeyInvitedMode  = "invited_mode"
	KeyInvitedAlbum = "invited_album"
)

// Entry 本地键值状态记录
type Entry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}

// UploadRecord 上传历史记录
type UploadRecord struct {
	ID        uint   `gorm:"primarykey"`
	SessionID string `gorm:"size:36;index"`
	AlbumID   string `gorm:"size:32"`
	PhotoID   string `gorm:"size:32"`
	Filename  string
	FileSize  int64
	Status    string `gorm:"size:16"` // completed | failed
	Message   string
	CreatedAt time.Time
}

// Store 客户端本地状态存储。
// access token、受邀模式标记等落在单文件 sqlite 中，值经 AES-GCM 加密。
// 同时实现 api.CredentialProvider。
type Store struct {
	db  *gorm.DB
	enc *crypto.ValueEncryptor
}

// Open 打开（或创建）本地状态数据库
func Open(stateDir string, enc *crypto.ValueEncryptor) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "state.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}, &UploadRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	return &Store{db: db, enc: enc}, nil
}

// Get 读取状态值，不存在时返回空串
func (s *Store) Get(key string) (string, error) {
	var entry Entry
	err := s.db.First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state key %s: %w", key, err)
	}

	if s.enc == nil {
		return entry.Value, nil
	}
	value, err := s.enc.Decrypt(entry.Value)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt state key %s: %w", key, err)
	}
	return value, nil
}

// Set 写入状态值
func (s *Store) Set(key, value string) error {
	if s.enc != nil {
		value = s.enc.Encrypt(value)
	}
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Save(&entry).Error
}

// Delete 删除状态键
func (s *Store) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.Delete(&Entry{}, "key IN ?", keys).Error
}

// Token 返回当前 access token，空串表示匿名。
// 实现 api.CredentialProvider；读取失败按匿名处理。
func (s *Store) Token() string {
	token, err := s.Get(KeyAccessToken)
	if err != nil {
		log.Printf("[State] Failed to read access token: %v", err)
		return ""
	}
	return token
}

// SetToken 持久化 access token
func (s *Store) SetToken(token string) error {
	return s.Set(KeyAccessToken, token)
}

// ClearToken 删除 access token
func (s *Store) ClearToken() error {
	return s.Delete(KeyAccessToken)
}

// InvitedMode 返回受邀模式标记
func (s *Store) InvitedMode() bool {
	value, err := s.Get(KeyInvitedMode)
	if err != nil {
		log.Printf("[State] Failed to read invited mode: %v", err)
		return false
	}
	return value == "true"
}

// InvitedAlbum 返回受邀相册引用（共享 token）
func (s *Store) InvitedAlbum() string {
	value, err := s.Get(KeyInvitedAlbum)
	if err != nil {
		return ""
	}
	return value
}

// SetInvitedMode 记录受邀模式及其相册引用，并丢弃 token
func (s *Store) SetInvitedMode(albumRef string) error {
	if err := s.Set(KeyInvitedMode, "true"); err != nil {
		return err
	}
	if err := s.Set(KeyInvitedAlbum, albumRef); err != nil {
		return err
	}
	return s.ClearToken()
}

// ClearInvitedMode 清除受邀模式标记
func (s *Store) ClearInvitedMode() error {
	return s.Delete(KeyInvitedMode, KeyInvitedAlbum)
}

// ClearSession 清除全部会话状态（登出）
func (s *Store) ClearSession() error {
	return s.Delete(KeyAccessToken, KeyInvitedMode, KeyInvitedAlbum)
}

// RecordUpload 追加上传历史记录
func (s *Store) RecordUpload(rec *UploadRecord) error {
	rec.CreatedAt = time.Now()
	return s.db.Create(rec).Error
}

// RecentUploads 返回最近的上传历史
func (s *Store) RecentUploads(limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []UploadRecord
	err := s.db.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
