package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// 统一的 LLM 错误码，用于对齐 HTTP 状态、可重试性与调用方的提示文案。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误
	ErrMissingCredential   ErrorCode = "LLM_MISSING_CREDENTIAL"   // 缺少密钥
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"            // 权限或内容策略拒绝
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游限流
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"       // 额度/配额用尽
	ErrMalformedResponse   ErrorCode = "LLM_MALFORMED_RESPONSE"   // 结构化输出无法解析
	ErrSearchUnavailable   ErrorCode = "LLM_SEARCH_UNAVAILABLE"   // 搜索网关无结果
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // 未注册的 Provider
)

type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewError 创建不可重试的错误
func NewError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// MissingCredential 缺少密钥时返回，调用方据此提示用户去设置页填写
func MissingCredential(provider string) *Error {
	return &Error{
		Code:       ErrMissingCredential,
		Message:    fmt.Sprintf("missing %s API key", provider),
		HTTPStatus: http.StatusUnauthorized,
		Provider:   provider,
	}
}

// Malformed 包装结构化输出解析失败
func Malformed(format string, args ...any) *Error {
	return &Error{
		Code:       ErrMalformedResponse,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: http.StatusBadGateway,
	}
}

// CodeOf 返回错误链上的错误码，非 *Error 返回空串
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsQuotaExceeded 配额与限流对调用方而言语义相同：展示“打盹”提示且不自动重试
func IsQuotaExceeded(err error) bool {
	switch CodeOf(err) {
	case ErrQuotaExceeded, ErrRateLimited:
		return true
	}
	return false
}

func IsMissingCredential(err error) bool { return CodeOf(err) == ErrMissingCredential }

func IsMalformedResponse(err error) bool { return CodeOf(err) == ErrMalformedResponse }

// asError 把任意错误规范化为 *Error
func asError(err error, provider string) *Error {
	var e *Error
	if errors.As(err, &e) {
		if e.Provider == "" {
			e.Provider = provider
		}
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: ErrUpstreamTimeout, Message: err.Error(), HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Provider: provider}
	}
	return &Error{Code: ErrUpstreamError, Message: err.Error(), HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: provider}
}
