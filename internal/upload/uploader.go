package upload

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anoixa/album-client/api"
	"github.com/anoixa/album-client/internal/state"
	"github.com/anoixa/album-client/utils"
	"github.com/anoixa/album-client/utils/format"
	"github.com/anoixa/album-client/utils/mime"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Phase 上传阶段
type Phase int

const (
	// PhasePresign 申请预签名 URL
	PhasePresign Phase = iota
	// PhaseTransfer 向对象存储传输文件
	PhaseTransfer
	// PhaseConfirm 确认上传完成
	PhaseConfirm
)

func (p Phase) String() string {
	switch p {
	case PhasePresign:
		return "presign"
	case PhaseTransfer:
		return "transfer"
	case PhaseConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// PhaseError 标记失败阶段的上传错误。
// 任一阶段失败即中止整个序列，调用方只能从头重试。
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return e.Err.Error()
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Options 单次上传参数
type Options struct {
	AlbumID     string
	FilePath    string
	Title       string
	Description string
	OnProgress  ProgressFunc
}

// Result 上传结果
type Result struct {
	SessionID string
	PhotoID   string
	URL       string
	FileName  string
	FileSize  int64
}

// BatchResult 批量上传中单个文件的结果
type BatchResult struct {
	FilePath string
	Result   *Result
	Err      error
}

// presignRequest /photos/presigned-url 请求体
type presignRequest struct {
	AlbumID     int64   `json:"album_id"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	FileSize    int64   `json:"file_size"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// presignResponse /photos/presigned-url 响应
type presignResponse struct {
	UploadURL string `json:"upload_url"`
	PhotoID   int64  `json:"photo_id"`
}

// confirmRequest /photos/confirm 请求体
type confirmRequest struct {
	PhotoID int64 `json:"photo_id"`
}

// confirmResponse /photos/confirm 响应
type confirmResponse struct {
	PhotoID int64  `json:"photo_id"`
	URL     string `json:"url"`
}

// Uploader 预签名三阶段上传编排器。
// 申请 → 直传对象存储 → 确认，阶段严格顺序执行，不做跨阶段重试。
type Uploader struct {
	client   *api.Client
	transfer *http.Client
	store    *state.Store
	maxSize  int64
}

// NewUploader 创建上传编排器。store 可为 nil（不记录历史）。
func NewUploader(client *api.Client, store *state.Store, maxSize int64) *Uploader {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &Uploader{
		client: client,
		// 预签名 PUT 不经过 API 客户端：不能附加 Bearer，且大文件不适用统一超时
		transfer: &http.Client{Timeout: 10 * time.Minute},
		store:    store,
		maxSize:  maxSize,
	}
}

// Upload 上传单个文件。
// 前置校验（大小、类型）失败立即返回，不发起任何网络请求。
func (u *Uploader) Upload(ctx context.Context, opts Options) (*Result, error) {
	sessionID := uuid.NewString()
	tracker := newProgressTracker(opts.OnProgress)

	result, err := u.upload(ctx, sessionID, opts, tracker)
	u.recordHistory(sessionID, opts, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (u *Uploader) upload(ctx context.Context, sessionID string, opts Options, tracker *progressTracker) (*Result, error) {
	// --- 前置校验，任何网络调用之前 ---
	file, err := os.Open(opts.FilePath)
	if err != nil {
		return nil, api.WrapError(api.KindValidation, "The selected file could not be opened.", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, api.WrapError(api.KindValidation, "The selected file could not be read.", err)
	}
	if info.Size() > u.maxSize {
		return nil, api.NewError(api.KindValidation,
			fmt.Sprintf("File size must not exceed %s.", format.HumanReadableSize(u.maxSize)))
	}

	contentType := mime.DetectFromFilename(opts.FilePath)
	if contentType == "" {
		sniffed, err := mime.SniffContentType(file)
		if err != nil {
			return nil, api.WrapError(api.KindValidation, "The selected file could not be read.", err)
		}
		contentType = sniffed
	}
	if !mime.IsAllowedUploadType(contentType) {
		return nil, api.NewError(api.KindValidation,
			"Unsupported file type. Supported: "+strings.Join(mime.AllowedUploadTypes(), ", "))
	}

	albumID, err := strconv.ParseInt(opts.AlbumID, 10, 64)
	if err != nil {
		return nil, api.NewError(api.KindValidation, "Invalid album reference.")
	}

	filename := filepath.Base(opts.FilePath)
	log.Printf("[Upload] session=%s file=%s size=%s type=%s",
		sessionID, utils.SanitizeLogFilename(filename), format.HumanReadableSize(info.Size()), contentType)

	// --- 阶段 1：申请预签名 URL (0-20%) ---
	tracker.report(presignStartPercent)

	req := presignRequest{
		AlbumID:     albumID,
		Filename:    filename,
		ContentType: contentType,
		FileSize:    info.Size(),
	}
	if opts.Title != "" {
		req.Title = &opts.Title
	}
	if opts.Description != "" {
		req.Description = &opts.Description
	}

	var presigned presignResponse
	if err := u.client.Request(ctx, http.MethodPost, api.EndpointPresignedURL(), req, &presigned); err != nil {
		return nil, &PhaseError{Phase: PhasePresign, Err: err}
	}
	tracker.report(presignDonePercent)

	// --- 阶段 2：直传对象存储 (20-90%) ---
	if err := u.transferFile(ctx, presigned.UploadURL, contentType, file, info.Size(), tracker); err != nil {
		return nil, &PhaseError{Phase: PhaseTransfer, Err: err}
	}
	tracker.report(transferDonePercent)

	// --- 阶段 3：确认 (90-100%) ---
	var confirmed confirmResponse
	confirmReq := confirmRequest{PhotoID: presigned.PhotoID}
	if err := u.client.Request(ctx, http.MethodPost, api.EndpointConfirm(), confirmReq, &confirmed); err != nil {
		return nil, &PhaseError{Phase: PhaseConfirm, Err: err}
	}
	tracker.report(confirmDonePercent)

	return &Result{
		SessionID: sessionID,
		PhotoID:   strconv.FormatInt(confirmed.PhotoID, 10),
		URL:       confirmed.URL,
		FileName:  filename,
		FileSize:  info.Size(),
	}, nil
}

// transferFile PUT 文件字节到预签名 URL，传输进度换算进 20-90 区间
func (u *Uploader) transferFile(ctx context.Context, uploadURL, contentType string, file *os.File, size int64, tracker *progressTracker) error {
	reader := &progressReader{inner: file, total: size, tracker: tracker}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, reader)
	if err != nil {
		return api.WrapError(api.KindNetwork, api.NetworkErrorMessage, err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := u.transfer.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return api.WrapError(api.KindAborted, "The file upload was cancelled.", err)
		}
		return api.WrapError(api.KindNetwork, "A network error occurred while uploading the file.", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return api.NewError(api.KindRequestFailed, "The file upload failed.")
	}
	return nil
}

// UploadBatch 并发上传多个文件。
// 单个文件失败不影响其他文件；onProgress 按文件路径分发。
func (u *Uploader) UploadBatch(ctx context.Context, albumID string, paths []string, concurrency int, onProgress func(path string, percent int)) []BatchResult {
	if concurrency <= 0 {
		concurrency = 3
	}

	results := make([]BatchResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			opts := Options{AlbumID: albumID, FilePath: path}
			if onProgress != nil {
				opts.OnProgress = func(percent int) { onProgress(path, percent) }
			}

			result, err := u.Upload(ctx, opts)
			results[i] = BatchResult{FilePath: path, Result: result, Err: err}
			return nil
		})
	}

	g.Wait()
	return results
}

// recordHistory 记录上传历史；失败只打日志
func (u *Uploader) recordHistory(sessionID string, opts Options, result *Result, uploadErr error) {
	if u.store == nil {
		return
	}

	rec := &state.UploadRecord{
		SessionID: sessionID,
		AlbumID:   opts.AlbumID,
		Filename:  filepath.Base(opts.FilePath),
		Status:    "completed",
	}
	if result != nil {
		rec.PhotoID = result.PhotoID
		rec.FileSize = result.FileSize
	}
	if uploadErr != nil {
		rec.Status = "failed"
		rec.Message = uploadErr.Error()
	}

	if err := u.store.RecordUpload(rec); err != nil {
		log.Printf("[Upload] Failed to record upload history: %v", err)
	}
}
