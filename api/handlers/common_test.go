package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/agent/persistence"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name       string
		data       any
		wantStatus int
	}{
		{name: "simple object", data: map[string]string{"message": "hello"}, wantStatus: http.StatusOK},
		{name: "array", data: []int{1, 2, 3}, wantStatus: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteJSON(w, tt.wantStatus, tt.data)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestWriteSuccess_EchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-42")

	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCreated(w, map[string]string{"id": "x"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestWriteError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            *types.Error
		expectedStatus int
	}{
		{"invalid request", types.NewError(types.ErrInvalidRequest, "goal is required"), http.StatusBadRequest},
		{"not found", types.NewError(types.ErrNotFound, "session not found"), http.StatusNotFound},
		{"busy", types.NewError(types.ErrSessionBusy, "busy"), http.StatusConflict},
		{"rate limit", types.NewError(types.ErrRateLimited, "too many requests"), http.StatusTooManyRequests},
		{"explicit status wins", types.NewError(types.ErrUpstreamError, "timeout").WithHTTPStatus(http.StatusGatewayTimeout), http.StatusGatewayTimeout},
		{"internal error", types.NewError(types.ErrInternalError, "boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.err.Code), resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"council busy", council.ErrBusy, types.ErrSessionBusy},
		{"run in progress", workflow.ErrRunInProgress, types.ErrSessionBusy},
		{"search pending", council.ErrSearchPending, types.ErrSearchPending},
		{"empty input", council.ErrEmptyInput, types.ErrInvalidRequest},
		{"not editable", workflow.ErrNotEditable, types.ErrInvalidRequest},
		{"unknown template", workflow.ErrUnknownTemplate, types.ErrNotFound},
		{"log not found", fmt.Errorf("get log: %w", persistence.ErrNotFound), types.ErrNotFound},
		{"nothing to report", council.ErrNothingToReport, types.ErrConflict},
		{"auto approve locked", council.ErrAutoApproveLocked, types.ErrConflict},
		{"store closed", persistence.ErrStoreClosed, types.ErrServiceUnavailable},
		{"deadline", context.DeadlineExceeded, types.ErrUpstreamError},
		{"llm quota", &llm.Error{Code: llm.ErrQuotaExceeded, Message: "quota"}, types.ErrQuotaExceeded},
		{"llm credential", llm.MissingCredential("gemini"), types.ErrMissingCredential},
		{"llm malformed", llm.Malformed("bad json"), types.ErrMalformedResponse},
		{"llm upstream", &llm.Error{Code: llm.ErrModelOverloaded, Message: "overloaded", Retryable: true}, types.ErrUpstreamError},
		{"already typed", types.NewError(types.ErrForbidden, "no"), types.ErrForbidden},
		{"unknown", fmt.Errorf("boom"), types.ErrInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
		})
	}

	t.Run("deadline maps to gateway timeout", func(t *testing.T) {
		got := ToAPIError(context.DeadlineExceeded)
		assert.Equal(t, http.StatusGatewayTimeout, got.HTTPStatus)
		assert.True(t, got.Retryable)
	})
	t.Run("internal errors hide the cause", func(t *testing.T) {
		got := ToAPIError(fmt.Errorf("dsn password=secret"))
		assert.NotContains(t, got.Message, "secret")
	})
}

func TestDecodeJSONBody(t *testing.T) {
	logger := zap.NewNop()

	type TestStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	tests := []struct {
		name      string
		body      string
		wantErr   bool
		checkFunc func(*testing.T, *TestStruct)
	}{
		{
			name: "valid JSON",
			body: `{"name":"test","value":123}`,
			checkFunc: func(t *testing.T, ts *TestStruct) {
				assert.Equal(t, "test", ts.Name)
				assert.Equal(t, 123, ts.Value)
			},
		},
		{
			name: "empty body",
			body: "",
			checkFunc: func(t *testing.T, ts *TestStruct) {
				assert.Empty(t, ts.Name)
			},
		},
		{name: "invalid JSON", body: `{"name":"test",}`, wantErr: true},
		{name: "unknown field", body: `{"name":"test","unknown":"field"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))

			var result TestStruct
			err := DecodeJSONBody(w, r, &result, logger)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				return
			}
			assert.NoError(t, err)
			if tt.checkFunc != nil {
				tt.checkFunc(t, &result)
			}
		})
	}
}

func TestDecodeJSONBody_MaxBodySize(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name"`
	}

	oversized := `{"name":"` + strings.Repeat("x", 2<<20) + `"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(oversized))

	var result TestStruct
	err := DecodeJSONBody(w, r, &result, zap.NewNop())
	assert.Error(t, err, "body exceeding 1 MB should be rejected")
}

func TestResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := NewResponseWriter(w)

	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.False(t, rw.Written)

	rw.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)
	assert.True(t, rw.Written)

	// 再次写入应该被忽略
	rw.WriteHeader(http.StatusBadRequest)
	assert.Equal(t, http.StatusCreated, rw.StatusCode)

	n, err := rw.Write([]byte("test"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), rw.BytesWritten)

	assert.Same(t, rw, NewResponseWriter(rw), "wrapping twice should reuse the wrapper")
	assert.Equal(t, http.ResponseWriter(w), rw.Unwrap())
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrUnauthorized, http.StatusUnauthorized},
		{types.ErrMissingCredential, http.StatusUnauthorized},
		{types.ErrForbidden, http.StatusForbidden},
		{types.ErrNotFound, http.StatusNotFound},
		{types.ErrSearchPending, http.StatusConflict},
		{types.ErrQuotaExceeded, http.StatusPaymentRequired},
		{types.ErrMalformedResponse, http.StatusBadGateway},
		{types.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, mapErrorCodeToHTTPStatus(tt.code))
		})
	}
}
