package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHumanReadableSize 测试字节数格式化
func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{10 * 1024 * 1024, "10.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanReadableSize(tt.bytes))
	}
}

// TestProgressBar 测试进度条渲染
func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[          ]   0%", ProgressBar(0, 10))
	assert.Equal(t, "[=====     ]  50%", ProgressBar(50, 10))
	assert.Equal(t, "[==========] 100%", ProgressBar(100, 10))

	// 越界值被截断
	assert.Equal(t, ProgressBar(100, 10), ProgressBar(150, 10))
	assert.Equal(t, ProgressBar(0, 10), ProgressBar(-5, 10))
}
