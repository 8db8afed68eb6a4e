package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentcouncil/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeProvider struct {
	name  string
	mu    sync.Mutex
	calls []GenerateRequest
	fn    func(req *GenerateRequest) (*GenerateResponse, error)
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return f.name + "-default" }

func (f *fakeProvider) Generate(_ context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return &GenerateResponse{Text: "ok"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (r *recordingObserver) ObserveInvocation(_, _, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestAdapter_MissingCredentialBeforeNetwork(t *testing.T) {
	t.Parallel()

	openai := &fakeProvider{name: "openai"}
	a := NewAdapter(zaptest.NewLogger(t), WithProvider(openai), WithImplicitKey("env-key"))

	_, err := a.Invoke(context.Background(), Invocation{
		Config: types.AIConfig{Provider: types.ProviderOpenAI},
		Prompt: "hello",
	})

	require.Error(t, err)
	assert.True(t, IsMissingCredential(err))
	assert.Equal(t, 0, openai.callCount(), "no request may reach the provider")
}

func TestAdapter_ImplicitKeyOnlyForDefaultProvider(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini"}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("env-key"))

	res, err := a.Invoke(context.Background(), Invocation{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", res.Provider)
	assert.Equal(t, "gemini-default", res.Model)
	require.Equal(t, 1, gemini.callCount())
	assert.Equal(t, "env-key", gemini.calls[0].APIKey)

	noImplicit := NewAdapter(nil, WithProvider(&fakeProvider{name: "gemini"}))
	_, err = noImplicit.Invoke(context.Background(), Invocation{Prompt: "hi"})
	assert.True(t, IsMissingCredential(err))
}

func TestAdapter_ExplicitKeyWins(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini"}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("env-key"))

	_, err := a.Invoke(context.Background(), Invocation{
		Config: types.AIConfig{APIKey: "user-key", Model: "gemini-pro"},
		Prompt: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-key", gemini.calls[0].APIKey)
	assert.Equal(t, "gemini-pro", gemini.calls[0].Model)
}

func TestAdapter_RejectsEmptyPromptAndUnknownProvider(t *testing.T) {
	t.Parallel()

	a := NewAdapter(nil, WithProvider(&fakeProvider{name: "gemini"}), WithImplicitKey("k"))

	_, err := a.Invoke(context.Background(), Invocation{Prompt: "   "})
	assert.Equal(t, ErrInvalidRequest, CodeOf(err))

	_, err = a.Invoke(context.Background(), Invocation{Config: types.AIConfig{Provider: "claude", APIKey: "k"}, Prompt: "x"})
	assert.Equal(t, ErrProviderUnavailable, CodeOf(err))
}

func TestAdapter_SearchFailureRetriesOnceWithoutSearch(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini", fn: func(req *GenerateRequest) (*GenerateResponse, error) {
		if req.WebSearch {
			return nil, &Error{Code: ErrUpstreamError, Message: "search tool exploded", HTTPStatus: 500}
		}
		return &GenerateResponse{Text: "plain answer", Sources: []Source{{Title: "t", URL: "u"}}}, nil
	}}
	obs := &recordingObserver{}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("k"), WithObserver(obs))

	res, err := a.Invoke(context.Background(), Invocation{Prompt: "news please", WebSearch: true})
	require.NoError(t, err)
	assert.Equal(t, "plain answer", res.Text)
	assert.True(t, res.SearchFallback)
	assert.Empty(t, res.Sources)
	require.Equal(t, 2, gemini.callCount())
	assert.True(t, gemini.calls[0].WebSearch)
	assert.False(t, gemini.calls[1].WebSearch)
	assert.Equal(t, []string{"search_fallback"}, obs.statuses)
}

func TestAdapter_QuotaIsNotRetried(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini", fn: func(*GenerateRequest) (*GenerateResponse, error) {
		return nil, &Error{Code: ErrQuotaExceeded, Message: "429 quota", HTTPStatus: 429}
	}}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("k"))

	_, err := a.Invoke(context.Background(), Invocation{Prompt: "x", WebSearch: true})
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
	assert.Equal(t, 1, gemini.callCount())
}

func TestAdapter_PlainErrorsAreNormalized(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini", fn: func(*GenerateRequest) (*GenerateResponse, error) {
		return nil, errors.New("connection reset")
	}}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("k"))

	_, err := a.Invoke(context.Background(), Invocation{Prompt: "x"})
	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrUpstreamError, lerr.Code)
	assert.Equal(t, "gemini", lerr.Provider)
	assert.Equal(t, "connection reset", lerr.Error())
}

func TestAdapter_SourcesPassThrough(t *testing.T) {
	t.Parallel()

	gemini := &fakeProvider{name: "gemini", fn: func(*GenerateRequest) (*GenerateResponse, error) {
		return &GenerateResponse{Text: "a", Sources: []Source{{Title: "BBC", URL: "https://bbc.co.uk"}}, Model: "gemini-x"}, nil
	}}
	a := NewAdapter(nil, WithProvider(gemini), WithImplicitKey("k"))

	res, err := a.Invoke(context.Background(), Invocation{Prompt: "x", WebSearch: true})
	require.NoError(t, err)
	assert.Equal(t, []Source{{Title: "BBC", URL: "https://bbc.co.uk"}}, res.Sources)
	assert.Equal(t, "gemini-x", res.Model)
	assert.False(t, res.SearchFallback)
}
