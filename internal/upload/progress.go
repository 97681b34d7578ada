package upload

import (
	"io"
	"sync"
)

// ProgressFunc 进度回调，percent 取值 0-100
type ProgressFunc func(percent int)

// 各阶段进度区间：申请 0-20，传输 20-90，确认 90-100
const (
	presignStartPercent = 10
	presignDonePercent  = 20
	transferDonePercent = 90
	confirmDonePercent  = 100
)

// progressTracker 进度跟踪器。
// 保证上报序列单调不减且落在 0-100 内。
type progressTracker struct {
	mu   sync.Mutex
	last int
	fn   ProgressFunc
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, last: -1}
}

// report 上报进度；回退与越界的值被丢弃或截断
func (t *progressTracker) report(percent int) {
	if t.fn == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	if percent <= t.last {
		t.mu.Unlock()
		return
	}
	t.last = percent
	t.mu.Unlock()

	t.fn(percent)
}

// progressReader 包装文件流，把传输字节数换算进 20-90 区间
type progressReader struct {
	inner   io.Reader
	total   int64
	read    int64
	tracker *progressTracker
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.inner.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		percent := presignDonePercent + int(r.read*int64(transferDonePercent-presignDonePercent)/r.total)
		if percent > transferDonePercent {
			percent = transferDonePercent
		}
		r.tracker.report(percent)
	}
	return n, err
}
