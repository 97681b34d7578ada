package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// GenericErrorMessage 解析失败时的兜底提示
	GenericErrorMessage = "The request could not be completed. Please try again."
	// AuthErrorMessage 认证失败提示
	AuthErrorMessage = "Authentication is required. Please sign in again."
	// NetworkErrorMessage 网络失败提示
	NetworkErrorMessage = "Unable to reach the server. Please check your connection."
	// AbortedErrorMessage 取消提示
	AbortedErrorMessage = "The request was cancelled."
)

// CredentialProvider 凭证提供者。
// 注入到 Client 中，避免 HTTP 层直接访问持久化存储。
type CredentialProvider interface {
	// Token 返回当前 access token，空串表示匿名
	Token() string
}

// AnonymousCredentials 匿名凭证（无 token）
type AnonymousCredentials struct{}

func (AnonymousCredentials) Token() string { return "" }

// errorBody 后端错误响应体
type errorBody struct {
	Detail string `json:"detail"`
}

// Client REST 客户端。
// 负责 URL 拼接、Bearer 附加、JSON 编解码和错误归一化。
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialProvider
	limiter *rate.Limiter
}

// Option Client 构造选项
type Option func(*Client)

// WithHTTPClient 指定底层 http.Client（测试用）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit 设置客户端侧请求限流
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithTimeout 设置请求超时
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.Timeout = timeout }
}

// NewClient 创建 REST 客户端
func NewClient(baseURL string, creds CredentialProvider, opts ...Option) *Client {
	if creds == nil {
		creds = AnonymousCredentials{}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		creds: creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回配置的 base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL 将后端相对路径解析为绝对 URL；绝对 URL 原样返回
func (c *Client) ResolveURL(ref string) string {
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.baseURL + ref
}

// Request 发起 JSON 请求并将 2xx 响应解码到 out（out 可为 nil）。
// 非 2xx 响应归一化为 *Error，只保留服务端的 detail 提示。
func (c *Client) Request(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Printf("[API] Failed to decode response body: %v", err)
		return WrapError(KindRequestFailed, GenericErrorMessage, err)
	}
	return nil
}

// Do 发起请求并返回原始响应。
// 仅供需要自行检查状态码的调用方（共享相册视图、图片加载器）使用；
// 其余代码一律走 Request。传输层错误仍归一化为 *Error。
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, WrapError(KindAborted, AbortedErrorMessage, err)
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, WrapError(KindValidation, GenericErrorMessage, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ResolveURL(path), reader)
	if err != nil {
		return nil, WrapError(KindValidation, GenericErrorMessage, err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, normalizeTransportError(ctx, err)
	}
	return resp, nil
}

// checkResponse 将非 2xx 响应归一化为 *Error
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	message := GenericErrorMessage
	var eb errorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&eb); err == nil && eb.Detail != "" {
		message = eb.Detail
	}

	kind := KindRequestFailed
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = KindAuth
		if eb.Detail == "" {
			message = AuthErrorMessage
		}
	}
	return NewError(kind, message)
}

// normalizeTransportError 传输层错误归一化
func normalizeTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return WrapError(KindAborted, AbortedErrorMessage, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return WrapError(KindNetwork, NetworkErrorMessage, err)
	}
	return WrapError(KindNetwork, NetworkErrorMessage, fmt.Errorf("transport: %w", err))
}
