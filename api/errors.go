package api

import "errors"

// Kind 错误分类
type Kind int

const (
	// KindValidation 客户端前置校验失败，未发起任何网络请求
	KindValidation Kind = iota
	// KindAuth 凭证缺失或无效
	KindAuth
	// KindRequestFailed 服务端返回非 2xx，携带服务端提供的提示信息
	KindRequestFailed
	// KindNetwork 传输层失败
	KindNetwork
	// KindAborted 用户或系统取消
	KindAborted
)

// Error API 边界统一错误类型。
// 只携带面向用户的提示信息，不暴露状态码、URL 或服务端原始响应。
type Error struct {
	Kind        Kind
	UserMessage string

	cause error
}

func (e *Error) Error() string {
	return e.UserMessage
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError 构建指定分类的错误
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, UserMessage: message}
}

// WrapError 构建指定分类的错误并保留内部原因（仅用于日志与 errors.Is 链）
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, UserMessage: message, cause: cause}
}

// KindOf 返回错误的分类；非 *Error 一律视为网络错误
func KindOf(err error) Kind {
	if err == nil {
		return KindNetwork
	}
	if apiErr, ok := AsError(err); ok {
		return apiErr.Kind
	}
	return KindNetwork
}

// AsError 提取错误链上的 *Error
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == kind
}
