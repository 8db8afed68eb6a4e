package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// --- mock WebSearchProvider ---

type mockWebSearchProvider struct {
	results []WebSearchResult
	err     error
	panics  bool
	mu      sync.Mutex
	calls   []WebSearchOptions
}

func (m *mockWebSearchProvider) Search(_ context.Context, _ string, opts WebSearchOptions) ([]WebSearchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()
	if m.panics {
		panic("boom")
	}
	return m.results, m.err
}

func (m *mockWebSearchProvider) Name() string { return "mock" }

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusRecorder) ObserveSearch(_, status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls []time.Duration
	err  error
}

func (c *mapCache) GetJSON(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *mapCache) SetJSON(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = raw
	c.ttls = append(c.ttls, ttl)
	return nil
}

// --- tests ---

func TestGateway_ReturnsNilOnAnyFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider WebSearchProvider
		query    string
		key      string
		status   string
	}{
		{"no provider", nil, "otters", "k", ""},
		{"empty query", &mockWebSearchProvider{}, "  ", "k", "empty_query"},
		{"missing key", &mockWebSearchProvider{}, "otters", "", "missing_key"},
		{"provider error", &mockWebSearchProvider{err: errors.New("502")}, "otters", "k", "error"},
		{"provider panic", &mockWebSearchProvider{panics: true}, "otters", "k", "panic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &statusRecorder{}
			g := NewGateway(tt.provider, GatewayConfig{}, rec, zaptest.NewLogger(t))
			assert.Nil(t, g.Search(context.Background(), tt.query, tt.key))
			if tt.status != "" {
				assert.Equal(t, []string{tt.status}, rec.statuses)
			}
		})
	}
}

func TestGateway_PassesKeyAndCount(t *testing.T) {
	t.Parallel()

	mock := &mockWebSearchProvider{results: []WebSearchResult{{Title: "A", URL: "https://a"}}}
	g := NewGateway(mock, GatewayConfig{ResultCount: 3}, nil, nil)

	res := g.Search(context.Background(), "otters", "serp-key")
	require.Len(t, res, 1)
	require.Len(t, mock.calls, 1)
	assert.Equal(t, WebSearchOptions{APIKey: "serp-key", MaxResults: 3}, mock.calls[0])
}

func TestGateway_RateLimitWaitCanceled(t *testing.T) {
	t.Parallel()

	mock := &mockWebSearchProvider{}
	g := NewGateway(mock, GatewayConfig{RatePerSec: 0.001, Burst: 1}, nil, nil)
	_ = g.Search(context.Background(), "first", "k") // consumes the only token

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, g.Search(ctx, "second", "k"))
	assert.Len(t, mock.calls, 1)
}

func TestSerperProvider_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "serp-key", r.Header.Get("X-API-KEY"))
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"Sea otters","link":"https://a.example","snippet":"hold hands"},
			{"title":"no link","link":"","snippet":"skip"},
			{"title":"Kelp","link":"https://b.example","snippet":"forests"},
			{"title":"Third","link":"https://c.example","snippet":"cut"}
		]}`))
	}))
	defer srv.Close()

	p := NewSerperProvider(SerperConfig{BaseURL: srv.URL})
	res, err := p.Search(context.Background(), "otters", WebSearchOptions{APIKey: "serp-key", MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, []WebSearchResult{
		{Title: "Sea otters", Snippet: "hold hands", URL: "https://a.example"},
		{Title: "Kelp", Snippet: "forests", URL: "https://b.example"},
	}, res)
}

func TestSerperProvider_NonOKAndMalformed(t *testing.T) {
	t.Parallel()

	for _, h := range []http.HandlerFunc{
		func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusForbidden) },
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"organic":[`)) },
	} {
		srv := httptest.NewServer(h)
		g := NewGateway(NewSerperProvider(SerperConfig{BaseURL: srv.URL}), DefaultGatewayConfig(), nil, nil)
		assert.Nil(t, g.Search(context.Background(), "otters", "k"))
		srv.Close()
	}
}

func TestFormatResults(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FormatResults(nil))
	out := FormatResults([]WebSearchResult{{Title: "A", Snippet: "s", URL: "https://a"}})
	assert.Equal(t, "[1] A\ns\n(https://a)", out)
}

func TestGateway_CachesResults(t *testing.T) {
	t.Parallel()

	mock := &mockWebSearchProvider{results: []WebSearchResult{{Title: "Kelp", URL: "https://kelp"}}}
	rec := &statusRecorder{}
	cache := &mapCache{}
	g := NewGateway(mock, GatewayConfig{ResultCount: 3, CacheTTL: time.Minute}, rec, nil).WithCache(cache)

	first := g.Search(context.Background(), "Kelp Forests", "k")
	second := g.Search(context.Background(), "kelp forests", "other-key")
	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Len(t, mock.calls, 1, "second query is served from cache")
	assert.Equal(t, []time.Duration{time.Minute}, cache.ttls)
	assert.Equal(t, []string{"success", "cache_hit"}, rec.statuses)
}

func TestGateway_CacheFailuresAreIgnored(t *testing.T) {
	t.Parallel()

	mock := &mockWebSearchProvider{results: []WebSearchResult{{Title: "A"}}}
	g := NewGateway(mock, GatewayConfig{}, nil, zaptest.NewLogger(t)).WithCache(&mapCache{err: errors.New("down")})

	assert.Len(t, g.Search(context.Background(), "q", "k"), 1)
	assert.Len(t, g.Search(context.Background(), "q", "k"), 1)
	assert.Len(t, mock.calls, 2)
}

func TestGateway_MissingKeySkipsCache(t *testing.T) {
	t.Parallel()

	cache := &mapCache{}
	mock := &mockWebSearchProvider{results: []WebSearchResult{{Title: "A"}}}
	g := NewGateway(mock, GatewayConfig{}, nil, nil).WithCache(cache)
	require.Len(t, g.Search(context.Background(), "q", "k"), 1)

	assert.Nil(t, g.Search(context.Background(), "q", ""), "a missing key never reads the cache")
}
