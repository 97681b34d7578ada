package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage 过滤日志中的不可打印字符，防止日志注入
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == 10 || r == 9 {
			sb.WriteRune(r)
		} else if unicode.IsPrint(r) || unicode.IsGraphic(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogUsername 截断并过滤用户名
func SanitizeLogUsername(username string) string {
	if len(username) > 50 {
		username = username[:50] + "..."
	}
	return SanitizeLogMessage(username)
}

// SanitizeLogFilename 截断并过滤用户提供的文件名
func SanitizeLogFilename(name string) string {
	if len(name) > 80 {
		name = name[:80] + "..."
	}
	return SanitizeLogMessage(name)
}
