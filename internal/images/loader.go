package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/anoixa/album-client/api"
	"github.com/anoixa/album-client/cache"
)

// 受保护图片路由前缀
const protectedPrefix = "/photos/"

var (
	// ErrUnauthenticated 无可用 token
	ErrUnauthenticated = api.NewError(api.KindAuth, "Sign in to view this photo.")
	// ErrFetchFailed 图片获取失败（非 2xx 或网络错误）
	ErrFetchFailed = api.NewError(api.KindRequestFailed, "The image could not be loaded.")
)

// IsAuthRequired 判断图片引用是否需要 Bearer 认证。
// 仅命中受保护前缀的后端相对路径需要认证；
// 绝对 URL 与共享上下文路径一律直连。
func IsAuthRequired(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return false
	}
	if strings.HasPrefix(ref, "/share/") {
		return false
	}
	return strings.HasPrefix(ref, protectedPrefix)
}

// Blob 图片句柄。
// 需认证的引用物化为本地临时文件，必须由当前持有者显式 Release；
// 直连引用只携带 URL，Release 为空操作。
type Blob struct {
	Direct      bool
	URL         string
	Path        string
	ContentType string

	once sync.Once
}

// Src 返回可直接使用的引用（URL 或本地文件路径）
func (b *Blob) Src() string {
	if b.Direct {
		return b.URL
	}
	return b.Path
}

// Open 打开图片字节流。直连引用不支持本地读取。
func (b *Blob) Open() (io.ReadCloser, error) {
	if b.Direct {
		return nil, errors.New("direct blob has no local bytes")
	}
	return os.Open(b.Path)
}

// Release 释放句柄，删除临时文件。幂等。
func (b *Blob) Release() {
	if b == nil || b.Direct {
		return
	}
	b.once.Do(func() {
		if err := os.Remove(b.Path); err != nil && !os.IsNotExist(err) {
			log.Printf("[Images] Failed to remove blob file %s: %v", b.Path, err)
		}
	})
}

// Loader 认证图片加载器。
// 一个 Loader 对应一个展示位：新的 Load 取代（并释放）上一次的句柄，
// 未完成的拉取被取消。
type Loader struct {
	client *api.Client
	creds  api.CredentialProvider
	cache  *cache.Factory
	ttl    time.Duration

	mu         sync.Mutex
	current    *Blob
	cancel     context.CancelFunc
	generation uint64
}

// NewLoader 创建图片加载器。cacheFactory 可为 nil（不缓存）。
func NewLoader(client *api.Client, creds api.CredentialProvider, cacheFactory *cache.Factory, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Loader{client: client, creds: creds, cache: cacheFactory, ttl: ttl}
}

// Load 加载图片引用。
// 返回的句柄归当前 Loader 所有，下一次 Load 或 Close 时自动释放。
func (l *Loader) Load(ctx context.Context, ref string) (*Blob, error) {
	// 取代进行中的加载并释放旧句柄
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.current != nil {
		l.current.Release()
		l.current = nil
	}
	l.generation++
	gen := l.generation
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	blob, err := l.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	if !l.commit(gen, blob) {
		// 拉取完成时已被更新的加载取代，句柄不得覆盖新句柄
		blob.Release()
		return nil, api.WrapError(api.KindAborted, api.AbortedErrorMessage, context.Canceled)
	}
	return blob, nil
}

// commit 仅当该加载仍是最新一代时登记句柄
func (l *Loader) commit(gen uint64, blob *Blob) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		return false
	}
	l.current = blob
	return true
}

func (l *Loader) load(ctx context.Context, ref string) (*Blob, error) {
	if !IsAuthRequired(ref) {
		return &Blob{Direct: true, URL: l.client.ResolveURL(ref)}, nil
	}

	if l.creds.Token() == "" {
		return nil, ErrUnauthenticated
	}

	data, contentType, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	blob, err := materialize(data, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return blob, nil
}

// fetch 拉取受保护图片字节，优先走缓存
func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, string, error) {
	cacheKey := cache.PhotoData.Build(ref)
	if l.cache != nil {
		var cached []byte
		if err := l.cache.Get(ctx, cacheKey, &cached); err == nil && len(cached) > 0 {
			return cached, http.DetectContentType(cached), nil
		}
	}

	resp, err := l.client.Do(ctx, http.MethodGet, ref, nil)
	if err != nil {
		if api.IsKind(err, api.KindAborted) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		return nil, "", ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", ErrFetchFailed
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, cacheKey, data, l.ttl); err != nil {
			log.Printf("[Images] Failed to cache image %s: %v", ref, err)
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Close 释放当前句柄并取消进行中的加载
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.current != nil {
		l.current.Release()
		l.current = nil
	}
}

// materialize 把图片字节落到临时文件
func materialize(data []byte, contentType string) (*Blob, error) {
	tmp, err := os.CreateTemp("", "album-blob-*")
	if err != nil {
		return nil, err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	return &Blob{Path: tmp.Name(), ContentType: contentType}, nil
}

// Download 通过认证下载端点保存照片到本地文件
func Download(ctx context.Context, client *api.Client, photoID, destPath string) error {
	resp, err := client.Do(ctx, http.MethodGet, api.EndpointPhotoDownload(photoID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return ErrFetchFailed
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return nil
}
