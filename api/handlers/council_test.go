package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🗂️ 会话
// =============================================================================

func TestSessionHandler_CreateGetDelete(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeData[api.SessionResponse](t, w)
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, types.ProviderGemini, resp.AIConfig.Provider)
	assert.NotEqual(t, "server-key", resp.AIConfig.APIKey, "keys must be redacted")
	require.Len(t, resp.Council.Messages, 1)
	assert.True(t, resp.Council.Messages[0].IsSystem)

	w = env.do(t, http.MethodGet, "/api/v1/sessions", nil)
	list := decodeData[map[string][]string](t, w)
	assert.Equal(t, []string{id}, list["sessions"])

	w = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_MaxSessions(t *testing.T) {
	env := newTestEnv(t, withMaxSessions(1))
	env.openSession(t)

	w := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(types.ErrServiceUnavailable), errorCode(t, w))
}

func TestSessionHandler_Settings(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPut, sessionPath(id, "settings"), map[string]string{"provider": "openai", "api_key": "sk-user", "model": "gpt-4o"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	e, ok := env.ws.Engine(id)
	require.True(t, ok)
	cfg := e.AIConfig()
	assert.Equal(t, types.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-user", cfg.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Model)

	w = env.do(t, http.MethodPut, sessionPath(id, "settings"), map[string]string{"provider": "claude"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeAIConfig(t *testing.T) {
	base := types.AIConfig{Provider: types.ProviderGemini, APIKey: "server", Model: "gemini-2.5-flash", SearchAPIKey: "serper"}

	t.Run("empty request keeps defaults", func(t *testing.T) {
		assert.Equal(t, base, mergeAIConfig(base, types.AIConfig{}))
	})
	t.Run("switching provider drops inherited key", func(t *testing.T) {
		got := mergeAIConfig(base, types.AIConfig{Provider: "OpenAI"})
		assert.Equal(t, types.ProviderOpenAI, got.Provider)
		assert.Empty(t, got.APIKey)
		assert.Empty(t, got.Model)
		assert.Equal(t, "serper", got.SearchAPIKey)
	})
	t.Run("same provider keeps key", func(t *testing.T) {
		got := mergeAIConfig(base, types.AIConfig{Provider: types.ProviderGemini, Model: "gemini-pro"})
		assert.Equal(t, "server", got.APIKey)
		assert.Equal(t, "gemini-pro", got.Model)
	})
}

// =============================================================================
// 🏛️ 议会回合
// =============================================================================

func TestCouncilHandler_Send(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "How do we ship faster?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	state := decodeData[council.State](t, w)
	assert.False(t, state.Processing)
	require.Len(t, state.Messages, 3)
	assert.True(t, state.Messages[1].IsUser)
	assert.Equal(t, "How do we ship faster?", state.Messages[1].Text)
	assert.Equal(t, "Hello from the council", state.Messages[2].Text)

	inv := env.invoker.last()
	assert.True(t, inv.JSONMode)
	assert.Equal(t, "server-key", inv.Config.APIKey)
}

func TestCouncilHandler_Send_EmptyText(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, env.invoker.count())
}

func TestCouncilHandler_FailureBecomesSystemMessage(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return nil, &llm.Error{Code: llm.ErrQuotaExceeded, Message: "quota exhausted"}
	})

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[council.State](t, w)
	last := state.Messages[len(state.Messages)-1]
	assert.True(t, last.IsSystem)
	assert.False(t, state.Processing)
}

func TestCouncilHandler_SearchGate(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: `{"searchRequest":{"query":"latest rust release","rationale":"need facts"}}`}, nil
	})

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "what's new in rust?"})
	require.Equal(t, http.StatusOK, w.Code)
	state := decodeData[council.State](t, w)
	require.Equal(t, council.GatePendingApproval, state.Gate.State)

	// 审批期间不能发言
	w = env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "hello?"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(types.ErrSearchPending), errorCode(t, w))

	env.invoker.set(nil)
	w = env.do(t, http.MethodPost, sessionPath(id, "council", "search", "deny"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state = decodeData[council.State](t, w)
	assert.Equal(t, council.GateContinuedWithoutResults, state.Gate.State)
	assert.Zero(t, env.searcher.count(), "denied search never runs")

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "search", "deny"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCouncilHandler_SearchApproveRunsSearcher(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: `{"searchRequest":{"query":"tide tables","rationale":"need data"}}`}, nil
	})

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "when is high tide?"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, council.GatePendingApproval, decodeData[council.State](t, w).Gate.State)

	env.invoker.set(nil)
	w = env.do(t, http.MethodPost, sessionPath(id, "council", "search", "approve"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decodeData[council.State](t, w)
	assert.Equal(t, council.GateContinuedWithResults, state.Gate.State)
	assert.Equal(t, 1, env.searcher.count())

	last := state.Messages[len(state.Messages)-1]
	assert.Equal(t, "Sparky", last.SenderName)
	require.NotEmpty(t, last.Sources)
	assert.Equal(t, "https://example.com/r", last.Sources[0].URL)
}

func TestCouncilHandler_AutoApproveLocked(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "search", "auto-approve"), api.ToggleRequest{Enabled: true})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCouncilHandler_Pivot(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "pivot"), api.PivotRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "pivot"), api.PivotRequest{MessageID: "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "idea"})
	state := decodeData[council.State](t, w)
	target := state.Messages[len(state.Messages)-1].ID

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "pivot"), api.PivotRequest{MessageID: target})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, env.invoker.last().Prompt, "Hello from the council")
}

func TestCouncilHandler_Brainstorm(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "brainstorm"), api.ToggleRequest{Enabled: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeData[council.State](t, w).Brainstorm)

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "brainstorm"), api.ToggleRequest{Enabled: false})
	state := decodeData[council.State](t, w)
	assert.False(t, state.Brainstorm)
	assert.False(t, state.BrainstormScheduled)
}

func TestCouncilHandler_Experts(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: `{"experts":[{"name":"Dr. Tide","specialty":"Oceanography","category":"researcher","color":"#123456"},{"name":"Ada","specialty":"Compilers"}]}`}, nil
	})

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "experts", "summon"), api.SummonExpertsRequest{Topic: "sea level", Count: 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summoned := decodeData[api.ExpertsResponse](t, w)
	require.Len(t, summoned.Experts, 2)

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "experts", "confirm"), api.ConfirmExpertsRequest{IDs: []string{summoned.Experts[0].ID}})
	require.Equal(t, http.StatusOK, w.Code)
	added := decodeData[api.ExpertsResponse](t, w)
	require.Len(t, added.Experts, 1)
	assert.Equal(t, "Dr. Tide", added.Experts[0].Name)

	// 专家只属于该会话
	w = env.do(t, http.MethodGet, "/api/v1/personas?session_id="+id, nil)
	sessionRoster := decodeData[map[string][]types.Persona](t, w)["personas"]
	w = env.do(t, http.MethodGet, "/api/v1/personas", nil)
	globalRoster := decodeData[map[string][]types.Persona](t, w)["personas"]
	assert.Len(t, sessionRoster, len(globalRoster)+1)

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "experts", "summon"), api.SummonExpertsRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCouncilHandler_Report(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "report"), nil)
	assert.Equal(t, http.StatusConflict, w.Code, "nothing to report before anyone speaks")
	w = env.do(t, http.MethodGet, sessionPath(id, "council", "report"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "plan the launch"})
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: "# Launch Plan\n\n- Ship on Friday"}, nil
	})

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "report"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decodeData[council.Report](t, w)
	assert.Equal(t, "Launch Plan", report.Title)

	w = env.do(t, http.MethodGet, sessionPath(id, "council", "report"), nil)
	assert.Equal(t, report.ID, decodeData[council.Report](t, w).ID)
}

func TestCouncilHandler_ReportUpstreamError(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "plan"})
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return nil, llm.MissingCredential("gemini")
	})

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "report"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(types.ErrMissingCredential), errorCode(t, w))
}

func TestCouncilHandler_UnknownSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		sessionPath("nope", "council"),
		sessionPath("nope", "council", "report"),
		sessionPath("nope", "workflow"),
	} {
		w := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

// =============================================================================
// 🔊 朗读
// =============================================================================

func TestCouncilHandler_NarrateReport_LocalFallback(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "report", "narrate"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "plan"})
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: "# Plan\n\nWe ship **soon**."}, nil
	})
	env.do(t, http.MethodPost, sessionPath(id, "council", "report"), nil)

	sub, _, err := env.hub.Subscribe(id, env.hub.LastSeq(id))
	require.NoError(t, err)
	defer sub.Close()

	// 会话提供方为 gemini，朗读提供方为 openai，没有可用密钥时交给客户端本地朗读
	w = env.do(t, http.MethodPost, sessionPath(id, "council", "report", "narrate"), api.NarrateRequest{Category: types.CategoryWriter})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decodeData[api.NarrateResponse](t, w).Started)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventSpeechLocal, ev.Type)
		local, ok := ev.Payload.(LocalSpeech)
		require.True(t, ok)
		assert.Contains(t, local.Text, "We ship soon.")
		assert.NotContains(t, local.Text, "**")
	case <-time.After(2 * time.Second):
		t.Fatal("expected speech.local event")
	}
	env.tts.mu.Lock()
	assert.Empty(t, env.tts.reqs)
	env.tts.mu.Unlock()
}

func TestCouncilHandler_NarrateReport_RemoteClips(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)
	w := env.do(t, http.MethodPut, sessionPath(id, "settings"), map[string]string{"provider": "openai", "api_key": "sk-session"})
	require.Equal(t, http.StatusOK, w.Code)

	env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "plan"})
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		return &llm.Result{Text: "# Plan\n\nFirst sentence here. Second sentence here."}, nil
	})
	env.do(t, http.MethodPost, sessionPath(id, "council", "report"), nil)

	sub, _, err := env.hub.Subscribe(id, env.hub.LastSeq(id))
	require.NoError(t, err)
	defer sub.Close()

	w = env.do(t, http.MethodPost, sessionPath(id, "council", "report", "narrate"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	select {
	case ev := <-sub.Events():
		require.Equal(t, EventSpeechClip, ev.Type)
		w = env.do(t, http.MethodPost, sessionPath(id, "council", "narration", "ack"), api.AckRequest{Index: 0})
		assert.Equal(t, http.StatusOK, w.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("expected speech.clip event")
	}

	env.tts.mu.Lock()
	require.NotEmpty(t, env.tts.reqs)
	assert.Equal(t, "sk-session", env.tts.reqs[0].APIKey)
	env.tts.mu.Unlock()

	w = env.do(t, http.MethodGet, sessionPath(id, "council", "narration"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCouncilHandler_NarrationDisabled(t *testing.T) {
	env := newTestEnv(t, withoutTTS())
	id := env.openSession(t)

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "report", "narrate"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = env.do(t, http.MethodGet, sessionPath(id, "council", "narration"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNarrations_KeyFor(t *testing.T) {
	n := NewNarrations(nil, nil, NarrationConfig{Provider: types.ProviderOpenAI}, nil, nil)
	assert.Equal(t, "sk", n.KeyFor(types.AIConfig{Provider: types.ProviderOpenAI, APIKey: "sk"}))
	assert.Empty(t, n.KeyFor(types.AIConfig{Provider: types.ProviderGemini, APIKey: "g"}))

	n = NewNarrations(nil, nil, NarrationConfig{Provider: types.ProviderOpenAI, APIKey: "server"}, nil, nil)
	assert.Equal(t, "server", n.KeyFor(types.AIConfig{Provider: types.ProviderGemini, APIKey: "g"}))
}

func TestCouncilHandler_BusyMapsToConflict(t *testing.T) {
	env := newTestEnv(t)
	id := env.openSession(t)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	env.invoker.set(func(llm.Invocation) (*llm.Result, error) {
		started <- struct{}{}
		<-release
		return nil, errors.New("cancelled")
	})

	done := make(chan int, 1)
	go func() {
		w := env.do(t, http.MethodPost, sessionPath(id, "council", "continue"), nil)
		done <- w.Code
	}()
	<-started

	w := env.do(t, http.MethodPost, sessionPath(id, "council", "messages"), api.SendMessageRequest{Text: "me too"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), string(types.ErrSessionBusy)))

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}
