package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/agent/persistence"
	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/internal/events"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/llm/tools"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// stubInvoker 按提示词内容选择回复
type stubInvoker struct {
	mu    sync.Mutex
	calls []llm.Invocation
	reply func(inv llm.Invocation) (*llm.Result, error)
}

func (s *stubInvoker) Invoke(_ context.Context, inv llm.Invocation) (*llm.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, inv)
	fn := s.reply
	s.mu.Unlock()
	if fn == nil {
		return &llm.Result{Text: `{"replies":[{"personaName":"Sparky","text":"Hello from the council"}]}`}, nil
	}
	return fn(inv)
}

func (s *stubInvoker) set(fn func(inv llm.Invocation) (*llm.Result, error)) {
	s.mu.Lock()
	s.reply = fn
	s.mu.Unlock()
}

func (s *stubInvoker) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *stubInvoker) last() llm.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}

// stubTTS 返回固定音频
type stubTTS struct {
	mu   sync.Mutex
	reqs []speech.TTSRequest
	err  error
}

func (s *stubTTS) Synthesize(_ context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, *req)
	if s.err != nil {
		return nil, s.err
	}
	return &speech.TTSResponse{Provider: "stub", AudioData: []byte("RIFFaudio"), Format: "wav", CharCount: len(req.Text)}, nil
}

func (s *stubTTS) ListVoices(context.Context) ([]speech.Voice, error) { return nil, nil }

func (s *stubTTS) Name() string { return "stub" }

// stubSearcher 记录查询并返回固定结果
type stubSearcher struct {
	mu      sync.Mutex
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query, _ string) []tools.WebSearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return []tools.WebSearchResult{{Title: "Result", URL: "https://example.com/r", Snippet: query}}
}

func (s *stubSearcher) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type testEnv struct {
	invoker  *stubInvoker
	searcher *stubSearcher
	tts      *stubTTS
	hub      *events.Hub
	store    persistence.LogStore
	ws       *Workspace
	mux      *http.ServeMux
}

type envOption func(*envConfig)

type envConfig struct {
	maxSessions int
	noTTS       bool
}

func withMaxSessions(n int) envOption { return func(c *envConfig) { c.maxSessions = n } }

func withoutTTS() envOption { return func(c *envConfig) { c.noTTS = true } }

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	var cfg envConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := zap.NewNop()
	env := &testEnv{
		invoker:  &stubInvoker{},
		searcher: &stubSearcher{},
		tts:      &stubTTS{},
		hub:      events.NewHub(logger),
		store:    persistence.NewMemoryLogStore(persistence.DefaultStoreConfig()),
	}
	roster := persona.NewRoster(persona.DefaultPersonas()...)

	sessions := council.NewSessions(func(id string) *council.Engine {
		return council.NewEngine(id, env.invoker, nil, logger,
			council.WithSeed(7),
			council.WithSearcher(env.searcher),
			council.WithEvents(env.hub.Emit),
		)
	}, logger)
	boards := workflow.NewBoards(env.invoker, roster, logger,
		workflow.WithEvents(env.hub.Emit),
		workflow.WithLogSink(env.store),
	)

	narrCfg := NarrationConfig{Provider: types.ProviderOpenAI, Format: "wav", ChunkLimit: 200, AckTimeout: 50 * time.Millisecond}
	var tts speech.TTSProvider = env.tts
	if cfg.noTTS {
		tts = nil
	}
	wsOpts := []WorkspaceOption{
		WithDefaultAIConfig(types.AIConfig{Provider: types.ProviderGemini, APIKey: "server-key"}),
		WithMaxSessions(cfg.maxSessions),
	}
	if !cfg.noTTS {
		wsOpts = append(wsOpts, WithNarrations(NewNarrations(tts, env.hub, narrCfg, nil, logger)))
	}
	env.ws = NewWorkspace(sessions, boards, env.hub, logger, wsOpts...)
	t.Cleanup(func() {
		env.ws.CloseAll()
		env.hub.Close()
	})

	sh := NewSessionHandler(env.ws, []string{"*"}, logger)
	ch := NewCouncilHandler(env.ws, 5*time.Second, logger)
	wh := NewWorkflowHandler(env.ws, 5*time.Second, logger)
	lh := NewLogHandler(env.store, env.ws, wh, logger)
	ph := NewPersonaHandler(env.ws, roster, persona.NewCommander(env.invoker, nil, logger), 5*time.Second, logger)
	sp := NewSpeechHandler(tts, narrCfg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", sh.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions", sh.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.HandleGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.HandleDelete)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/settings", sh.HandleSettings)
	mux.HandleFunc("GET /api/v1/sessions/{id}/events", sh.HandleEvents)

	mux.HandleFunc("GET /api/v1/sessions/{id}/council", ch.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/messages", ch.HandleSend)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/continue", ch.HandleContinue)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/pivot", ch.HandlePivot)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/brainstorm", ch.HandleBrainstorm)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/approve", ch.HandleApproveSearch)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/deny", ch.HandleDenySearch)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/search/auto-approve", ch.HandleAutoApprove)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/experts/summon", ch.HandleSummonExperts)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/experts/confirm", ch.HandleConfirmExperts)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/report", ch.HandleDistillReport)
	mux.HandleFunc("GET /api/v1/sessions/{id}/council/report", ch.HandleGetReport)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/report/narrate", ch.HandleNarrateReport)
	mux.HandleFunc("GET /api/v1/sessions/{id}/council/narration", ch.HandleNarrationStatus)
	mux.HandleFunc("POST /api/v1/sessions/{id}/council/narration/ack", ch.HandleNarrationAck)

	mux.HandleFunc("GET /api/v1/workflow/templates", wh.HandleTemplates)
	mux.HandleFunc("GET /api/v1/sessions/{id}/workflow", wh.HandleGet)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/generate", wh.HandleGenerate)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/templates/{template}", wh.HandleLoadTemplate)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/workflow/nodes/{node}", wh.HandleUpdateNode)
	mux.HandleFunc("POST /api/v1/sessions/{id}/workflow/run", wh.HandleRun)

	mux.HandleFunc("GET /api/v1/logs", lh.HandleList)
	mux.HandleFunc("DELETE /api/v1/logs", lh.HandleClear)
	mux.HandleFunc("GET /api/v1/logs/{id}", lh.HandleGet)
	mux.HandleFunc("DELETE /api/v1/logs/{id}", lh.HandleDelete)
	mux.HandleFunc("POST /api/v1/logs/{id}/rerun", lh.HandleRerun)

	mux.HandleFunc("GET /api/v1/personas", ph.HandleList)
	mux.HandleFunc("POST /api/v1/personas/{id}/command", ph.HandleCommand)
	mux.HandleFunc("POST /api/v1/personas/{id}/special-action", ph.HandleSpecialAction)
	mux.HandleFunc("POST /api/v1/personas/{id}/status", ph.HandleStatus)
	mux.HandleFunc("POST /api/v1/personas/{id}/mission-log", ph.HandleMissionLog)

	mux.HandleFunc("POST /api/v1/speech/chunks", sp.HandleChunks)
	mux.HandleFunc("POST /api/v1/speech/synthesize", sp.HandleSynthesize)

	env.mux = mux
	return env
}

// do 发送请求；body 为 nil 时不带请求体
func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(buf).Encode(b))
		}
	}
	var r *http.Request
	if buf != nil {
		r = httptest.NewRequest(method, path, buf)
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	return w
}

// openSession 创建会话并返回 ID
func (env *testEnv) openSession(t *testing.T) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

// decodeData 解出 Response.Data
func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Success bool       `json:"success"`
		Data    T          `json:"data"`
		Error   *ErrorInfo `json:"error"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp), w.Body.String())
	require.True(t, resp.Success, "expected success, got %+v", resp.Error)
	return resp.Data
}

// errorCode 解出错误码
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func sessionPath(id string, parts ...string) string {
	return "/api/v1/sessions/" + id + "/" + strings.Join(parts, "/")
}
