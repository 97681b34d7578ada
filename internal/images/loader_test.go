package images

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anoixa/album-client/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds string

func (s staticCreds) Token() string { return string(s) }

// TestIsAuthRequired 测试引用的认证判定
func TestIsAuthRequired(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want bool
	}{
		{"protected photo path", "/photos/12/download", true},
		{"protected prefix only", "/photos/", true},
		{"absolute http", "http://cdn.example.com/p/1.jpg", false},
		{"absolute https", "https://cdn.example.com/p/1.jpg", false},
		{"shared context path", "/share/tok-1/photos/12", false},
		{"other relative path", "/static/logo.png", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthRequired(tt.ref))
		})
	}
}

// TestLoader_Load_Direct 测试直连引用不发请求
func TestLoader_Load_Direct(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	loader := NewLoader(api.NewClient(server.URL, nil), staticCreds(""), nil, time.Minute)
	defer loader.Close()

	blob, err := loader.Load(context.Background(), "https://cdn.example.com/p/1.jpg")
	require.NoError(t, err)
	assert.True(t, blob.Direct)
	assert.Equal(t, "https://cdn.example.com/p/1.jpg", blob.Src())
	assert.Zero(t, hits)

	// 直连句柄的 Release 为空操作
	blob.Release()
}

// TestLoader_Load_ProtectedWithoutToken 测试无 token 时拒绝且不发请求
func TestLoader_Load_ProtectedWithoutToken(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	loader := NewLoader(api.NewClient(server.URL, nil), staticCreds(""), nil, time.Minute)
	defer loader.Close()

	_, err := loader.Load(context.Background(), "/photos/12/download")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, hits)
}

// TestLoader_Load_Protected 测试受保护图片物化为临时文件
func TestLoader_Load_Protected(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3, 4}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer server.Close()

	creds := staticCreds("tok")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)
	defer loader.Close()

	blob, err := loader.Load(context.Background(), "/photos/12/download")
	require.NoError(t, err)
	assert.False(t, blob.Direct)
	assert.Equal(t, "image/jpeg", blob.ContentType)

	data, err := os.ReadFile(blob.Src())
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

// TestLoader_Load_AuthRejected 测试服务端 401 映射
func TestLoader_Load_AuthRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	creds := staticCreds("stale")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)
	defer loader.Close()

	_, err := loader.Load(context.Background(), "/photos/12/download")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

// TestLoader_Load_ServerError 测试非 2xx 映射为加载失败
func TestLoader_Load_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	creds := staticCreds("tok")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)
	defer loader.Close()

	_, err := loader.Load(context.Background(), "/photos/12/download")
	assert.ErrorIs(t, err, ErrFetchFailed)
}

// TestLoader_Supersession 测试新加载释放旧句柄
func TestLoader_Supersession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer server.Close()

	creds := staticCreds("tok")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)
	defer loader.Close()

	first, err := loader.Load(context.Background(), "/photos/1/download")
	require.NoError(t, err)
	firstPath := first.Src()
	require.FileExists(t, firstPath)

	second, err := loader.Load(context.Background(), "/photos/2/download")
	require.NoError(t, err)

	assert.NoFileExists(t, firstPath, "previous blob is released on new load")
	assert.FileExists(t, second.Src())
}

// TestLoader_StaleLoadCannotOvertake 测试迟到的旧加载不得覆盖新句柄
func TestLoader_StaleLoadCannotOvertake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer server.Close()

	creds := staticCreds("tok")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)
	defer loader.Close()

	current, err := loader.Load(context.Background(), "/photos/2/download")
	require.NoError(t, err)

	// 一个开始于上一代、拉取完成时才尝试提交的加载
	stale, err := loader.load(context.Background(), "/photos/1/download")
	require.NoError(t, err)

	assert.False(t, loader.commit(loader.generation-1, stale), "stale generation must not commit")
	stale.Release()

	assert.FileExists(t, current.Src(), "the newest handle survives a late stale commit")

	loader.mu.Lock()
	assert.Same(t, current, loader.current)
	loader.mu.Unlock()
}

// TestLoader_Close 测试关闭释放当前句柄
func TestLoader_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	}))
	defer server.Close()

	creds := staticCreds("tok")
	loader := NewLoader(api.NewClient(server.URL, creds), creds, nil, time.Minute)

	blob, err := loader.Load(context.Background(), "/photos/1/download")
	require.NoError(t, err)
	path := blob.Src()
	require.FileExists(t, path)

	loader.Close()
	assert.NoFileExists(t, path)
}

// TestBlob_Release_Idempotent 测试重复释放无副作用
func TestBlob_Release_Idempotent(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(tmp, []byte("x"), 0o600))

	blob := &Blob{Path: tmp}
	blob.Release()
	blob.Release()
	assert.NoFileExists(t, tmp)

	var nilBlob *Blob
	nilBlob.Release()
}

// TestDownload 测试认证下载端点保存到本地
func TestDownload(t *testing.T) {
	payload := []byte("image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/photos/12/download", r.URL.Path)
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.jpg")
	client := api.NewClient(server.URL, staticCreds("tok"))
	require.NoError(t, Download(context.Background(), client, "12", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

// TestDownload_Failure 测试下载失败不留残缺文件
func TestDownload_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "out.jpg")
	client := api.NewClient(server.URL, staticCreds("tok"))
	err := Download(context.Background(), client, "12", dest)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NoFileExists(t, dest)
}
