package cache

import (
	"fmt"
	"strings"
)

// KeyBuilder 缓存键构建器
type KeyBuilder struct {
	prefix string
	sep    string
}

// NewKeyBuilder 创建新的键构建器
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
		sep:    ":",
	}
}

// Build 构建缓存键
func (kb *KeyBuilder) Build(parts ...string) string {
	if len(parts) == 0 {
		return kb.prefix
	}
	return kb.prefix + kb.sep + strings.Join(parts, kb.sep)
}

// BuildID 构建带 ID 的缓存键
func (kb *KeyBuilder) BuildID(id interface{}) string {
	return fmt.Sprintf("%s%s%v", kb.prefix, kb.sep, id)
}

// 预定义的 KeyBuilder 实例
var (
	// PhotoData 受保护图片字节缓存
	PhotoData = NewKeyBuilder("photo_data")

	// SharedAlbum 共享相册响应缓存
	SharedAlbum = NewKeyBuilder("shared_album")

	// Thumbnail 画廊缩略图缓存
	Thumbnail = NewKeyBuilder("thumbnail")
)
