package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewProvider(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{BaseURL: srv.URL},
	}, zap.NewNop())
}

func TestProvider_Defaults(t *testing.T) {
	p := NewProvider(providers.GeminiConfig{}, nil)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-3-flash-preview", p.DefaultModel())
	assert.Equal(t, defaultBaseURL, p.cfg.BaseURL)
}

func TestProvider_GenerateJSONModeAndAttachment(t *testing.T) {
	var got request
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"a\":"},{"text":"1}"}]}}]}`))
	})

	res, err := p.Generate(context.Background(), &llm.GenerateRequest{
		APIKey:     "k-123",
		Model:      "gemini-test",
		Prompt:     "describe",
		JSONMode:   true,
		Attachment: &llm.Attachment{MimeType: "image/png", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, res.Text)

	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.Empty(t, got.Tools)
	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 2)
	assert.Equal(t, "AQID", got.Contents[0].Parts[1].InlineData.Data)
}

func TestProvider_GenerateWebSearchExtractsSources(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req request
		_ = json.NewDecoder(r.Body).Decode(&req)
		require.Len(t, req.Tools, 1)
		assert.NotNil(t, req.Tools[0].GoogleSearch)
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"REPORT: sea otters hold hands"}]},
			"groundingMetadata":{"groundingChunks":[
				{"web":{"uri":"https://a.example","title":"A"}},
				{"web":{"uri":"https://a.example","title":"A again"}},
				{"retrievedContext":{}},
				{"web":{"uri":"https://b.example","title":"B"}}
			]}}],
			"modelVersion":"gemini-3-flash-001"}`))
	})

	res, err := p.Generate(context.Background(), &llm.GenerateRequest{APIKey: "k", Prompt: "news", WebSearch: true})
	require.NoError(t, err)
	assert.Equal(t, "gemini-3-flash-001", res.Model)
	assert.Equal(t, []llm.Source{
		{Title: "A", URL: "https://a.example"},
		{Title: "B", URL: "https://b.example"},
	}, res.Sources)
}

func TestProvider_GenerateMapsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.ErrorCode
	}{
		{"quota", 429, `{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`, llm.ErrQuotaExceeded},
		{"bad key", 401, `{"error":{"message":"API key not valid"}}`, llm.ErrUnauthorized},
		{"server", 500, `oops`, llm.ErrUpstreamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := p.Generate(context.Background(), &llm.GenerateRequest{APIKey: "k", Prompt: "x"})
			require.Error(t, err)
			assert.Equal(t, tt.want, llm.CodeOf(err))
		})
	}
}

func TestProvider_BlockedPrompt(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	})
	_, err := p.Generate(context.Background(), &llm.GenerateRequest{APIKey: "k", Prompt: "x"})
	assert.Equal(t, llm.ErrForbidden, llm.CodeOf(err))
}

func TestProvider_MalformedBody(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":`))
	})
	_, err := p.Generate(context.Background(), &llm.GenerateRequest{APIKey: "k", Prompt: "x"})
	assert.Equal(t, llm.ErrUpstreamError, llm.CodeOf(err))
}
