package mime

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// allowedUploadMimeTypes 后端接受的上传类型
var allowedUploadMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
}

// SniffContentType 读取前 512 字节探测内容类型并回退流位置
func SniffContentType(stream io.ReadSeeker) (string, error) {
	buffer := make([]byte, 512)

	n, err := stream.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read stream for mime sniffing: %w", err)
	}

	contentType := http.DetectContentType(buffer[:n])

	_, err = stream.Seek(0, io.SeekStart)
	if err != nil {
		return "", fmt.Errorf("failed to seek stream back to start after sniffing: %w", err)
	}

	return contentType, nil
}

// DetectFromFilename 根据扩展名推断内容类型。
// HEIC 无法通过内容嗅探识别，扩展名是唯一来源。
func DetectFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic", ".heif":
		return "image/heic"
	default:
		return ""
	}
}

// IsAllowedUploadType 判断内容类型是否允许上传
func IsAllowedUploadType(contentType string) bool {
	return allowedUploadMimeTypes[contentType]
}

// AllowedUploadTypes 返回允许的类型列表（提示信息用）
func AllowedUploadTypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/heic"}
}
