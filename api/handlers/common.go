package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/agent/persistence"
	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"-"`
}

// RequestIDHeader 请求 ID 响应头，由 RequestID 中间件在调用 handler 之前写入
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes 请求体上限
const maxBodyBytes = 1 << 20

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// 头已写出，编码失败无法再改状态码
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入成功响应
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteCreated 写入 201 响应
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteError 写入错误响应（从 types.Error）
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		fields := []zap.Field{
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
		}
		if err.Cause != nil {
			fields = append(fields, zap.Error(err.Cause))
		}
		if status >= http.StatusInternalServerError {
			logger.Error("API error", fields...)
		} else {
			logger.Debug("API error", fields...)
		}
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:       string(err.Code),
			Message:    err.Message,
			Retryable:  err.Retryable,
			HTTPStatus: status,
		},
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// WriteDomainError 把领域错误映射为 API 错误后写出
func WriteDomainError(w http.ResponseWriter, err error, logger *zap.Logger) {
	WriteError(w, ToAPIError(err), logger)
}

// =============================================================================
// 🔄 错误映射
// =============================================================================

// ToAPIError 把各包的哨兵错误与 llm.Error 统一映射为 types.Error
func ToAPIError(err error) *types.Error {
	if apiErr, ok := types.AsError(err); ok {
		return apiErr
	}

	switch {
	case errors.Is(err, council.ErrBusy), errors.Is(err, workflow.ErrRunInProgress):
		return types.NewError(types.ErrSessionBusy, err.Error()).WithCause(err).WithRetryable(true)
	case errors.Is(err, council.ErrSearchPending):
		return types.NewError(types.ErrSearchPending, err.Error()).WithCause(err)

	case errors.Is(err, council.ErrEmptyInput),
		errors.Is(err, persona.ErrEmptyCommand),
		errors.Is(err, persona.ErrInvalidPersona),
		errors.Is(err, persistence.ErrInvalidInput),
		errors.Is(err, workflow.ErrNotEditable):
		return types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)

	case errors.Is(err, council.ErrMessageNotFound),
		errors.Is(err, workflow.ErrNodeNotFound),
		errors.Is(err, workflow.ErrUnknownTemplate),
		errors.Is(err, persistence.ErrNotFound):
		return types.NewError(types.ErrNotFound, err.Error()).WithCause(err)

	case errors.Is(err, council.ErrClosed),
		errors.Is(err, council.ErrNoPendingSearch),
		errors.Is(err, council.ErrSearchInFlight),
		errors.Is(err, council.ErrAutoApproveLocked),
		errors.Is(err, council.ErrNothingToReport),
		errors.Is(err, workflow.ErrNoTrigger),
		errors.Is(err, persona.ErrDuplicatePersona),
		errors.Is(err, persistence.ErrAlreadyExists):
		return types.NewError(types.ErrConflict, err.Error()).WithCause(err)

	case errors.Is(err, persistence.ErrStoreClosed):
		return types.NewError(types.ErrServiceUnavailable, "log store is unavailable").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewError(types.ErrUpstreamError, "request timed out").
			WithCause(err).WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true)
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return fromLLMError(llmErr)
	}
	return types.NewError(types.ErrInternalError, "internal error").WithCause(err)
}

func fromLLMError(e *llm.Error) *types.Error {
	var code types.ErrorCode
	switch e.Code {
	case llm.ErrMissingCredential, llm.ErrUnauthorized:
		code = types.ErrMissingCredential
	case llm.ErrQuotaExceeded:
		code = types.ErrQuotaExceeded
	case llm.ErrRateLimited:
		code = types.ErrRateLimited
	case llm.ErrMalformedResponse:
		code = types.ErrMalformedResponse
	case llm.ErrInvalidRequest:
		code = types.ErrInvalidRequest
	case llm.ErrProviderUnavailable:
		code = types.ErrServiceUnavailable
	default:
		code = types.ErrUpstreamError
	}
	return types.NewError(code, e.Message).WithCause(e).WithRetryable(e.Retryable)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx 客户端错误
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrUnauthorized, types.ErrMissingCredential:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrConflict, types.ErrSessionBusy, types.ErrSearchPending:
		return http.StatusConflict
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrQuotaExceeded:
		return http.StatusPaymentRequired

	// 5xx 服务端错误
	case types.ErrMalformedResponse, types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 🛡️ 请求验证辅助函数
// =============================================================================

// DecodeJSONBody 解码 JSON 请求体。空请求体视为 {}，由调用方校验必填字段。
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码与写出字节数。
// Unwrap 让 http.ResponseController 能拿到底层连接（WebSocket 升级需要 Hijack）。
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	Written      bool
	BytesWritten int64
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 重写 WriteHeader 以捕获状态码
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write 重写 Write 以标记已写入
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher.
func (rw *ResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap 返回底层 ResponseWriter
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack 支持 WebSocket 升级
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil && !rw.Written {
		rw.StatusCode = http.StatusSwitchingProtocols
		rw.Written = true
	}
	return conn, buf, err
}
