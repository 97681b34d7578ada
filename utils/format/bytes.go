package format

import (
	"fmt"
)

const (
	byteUnit = 1024
)

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanReadableSize 将字节数转换为人类可读的格式
func HumanReadableSize(bytes int64) string {
	if bytes < byteUnit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(byteUnit), 1
	for n := bytes / byteUnit; n >= byteUnit && exp < len(units)-1; n /= byteUnit {
		div *= byteUnit
		exp++
	}

	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}

// ProgressBar 渲染定宽进度条，percent 取值 0-100
func ProgressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '='
		} else {
			bar[i] = ' '
		}
	}
	return fmt.Sprintf("[%s] %3d%%", string(bar), percent)
}
