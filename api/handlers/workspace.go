package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/internal/events"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// ErrTooManySessions 会话数达到上限
var ErrTooManySessions = errors.New("too many active sessions")

// 语音事件名
const (
	EventSpeechClip  = "speech.clip"
	EventSpeechLocal = "speech.local"
)

// SessionGauge 活跃会话数指标
type SessionGauge interface {
	SetActiveSessions(n int)
}

// Workspace 会话级资源的集合：议会引擎、工作流画板、事件流与朗读器，
// 以会话 ID 关联，创建和关闭总是一起进行。
type Workspace struct {
	sessions    *council.Sessions
	boards      *workflow.Boards
	hub         *events.Hub
	narrations  *Narrations
	defaults    types.AIConfig
	maxSessions int
	gauge       SessionGauge
	logger      *zap.Logger

	mu sync.Mutex // 串行化创建与关闭，保证上限检查准确
}

// WorkspaceOption 配置 Workspace
type WorkspaceOption func(*Workspace)

// WithNarrations 启用会话朗读
func WithNarrations(n *Narrations) WorkspaceOption {
	return func(ws *Workspace) { ws.narrations = n }
}

// WithDefaultAIConfig 新会话的默认模型配置
func WithDefaultAIConfig(cfg types.AIConfig) WorkspaceOption {
	return func(ws *Workspace) { ws.defaults = cfg }
}

// WithMaxSessions 会话数上限，0 表示不限
func WithMaxSessions(n int) WorkspaceOption {
	return func(ws *Workspace) { ws.maxSessions = n }
}

// WithSessionGauge 设置活跃会话指标
func WithSessionGauge(g SessionGauge) WorkspaceOption {
	return func(ws *Workspace) { ws.gauge = g }
}

// NewWorkspace 创建 Workspace
func NewWorkspace(sessions *council.Sessions, boards *workflow.Boards, hub *events.Hub, logger *zap.Logger, opts ...WorkspaceOption) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := &Workspace{
		sessions: sessions,
		boards:   boards,
		hub:      hub,
		logger:   logger.With(zap.String("component", "workspace")),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// Open 创建会话；cfg 为 nil 时使用默认模型配置
func (ws *Workspace) Open(cfg *types.AIConfig) (*council.Engine, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.maxSessions > 0 && ws.sessions.Len() >= ws.maxSessions {
		return nil, ErrTooManySessions
	}

	e := ws.sessions.Create()
	ai := ws.defaults
	if cfg != nil {
		ai = mergeAIConfig(ws.defaults, *cfg)
	}
	e.SetAIConfig(ai)
	ws.boards.GetOrCreate(e.ID())
	ws.reportSessions()

	ws.logger.Info("session opened",
		zap.String("session_id", e.ID()),
		zap.String("provider", string(ai.ProviderOrDefault())),
	)
	return e, nil
}

// Close 关闭会话及其全部资源
func (ws *Workspace) Close(id string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if !ws.sessions.Close(id) {
		return false
	}
	ws.boards.Remove(id)
	if ws.narrations != nil {
		ws.narrations.Remove(id)
	}
	ws.hub.Remove(id)
	ws.reportSessions()
	ws.logger.Info("session closed", zap.String("session_id", id))
	return true
}

// CloseAll 服务退出时调用
func (ws *Workspace) CloseAll() {
	for _, id := range ws.sessions.IDs() {
		ws.Close(id)
	}
}

// Engine 查找会话的议会引擎
func (ws *Workspace) Engine(id string) (*council.Engine, bool) {
	return ws.sessions.Get(id)
}

// Board 查找会话的画板
func (ws *Workspace) Board(id string) (*workflow.Board, bool) {
	if _, ok := ws.sessions.Get(id); !ok {
		return nil, false
	}
	return ws.boards.GetOrCreate(id), true
}

// Hub 返回事件中心
func (ws *Workspace) Hub() *events.Hub { return ws.hub }

// Narrations 返回朗读注册表，未启用时为 nil
func (ws *Workspace) Narrations() *Narrations { return ws.narrations }

// Defaults 默认模型配置
func (ws *Workspace) Defaults() types.AIConfig { return ws.defaults }

// IDs 返回全部会话 ID
func (ws *Workspace) IDs() []string { return ws.sessions.IDs() }

func (ws *Workspace) reportSessions() {
	if ws.gauge != nil {
		ws.gauge.SetActiveSessions(ws.sessions.Len())
	}
}

// lookup 查找会话，未找到时写出 404
func (ws *Workspace) lookup(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*council.Engine, bool) {
	id := r.PathValue("id")
	e, ok := ws.sessions.Get(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+id, logger)
		return nil, false
	}
	return e, true
}

// mergeAIConfig 请求中的空字段沿用服务端默认值；切换提供方时不继承默认密钥与模型
func mergeAIConfig(base, req types.AIConfig) types.AIConfig {
	out := base
	if p := strings.TrimSpace(string(req.Provider)); p != "" {
		out.Provider = types.ProviderName(strings.ToLower(p))
		if out.ProviderOrDefault() != base.ProviderOrDefault() {
			out.APIKey = ""
			out.Model = ""
		}
	}
	if req.APIKey != "" {
		out.APIKey = req.APIKey
	}
	if req.Model != "" {
		out.Model = req.Model
	}
	if req.SearchAPIKey != "" {
		out.SearchAPIKey = req.SearchAPIKey
	}
	return out
}

// =============================================================================
// 🔊 会话朗读
// =============================================================================

// NarrationConfig 朗读参数
type NarrationConfig struct {
	Provider   types.ProviderName // 与会话提供方一致时可借用会话密钥
	APIKey     string
	Model      string
	Format     string
	ChunkLimit int
	AckTimeout time.Duration
}

// Narrations 每个会话一个朗读器。分段通过事件流推给客户端，客户端播放完调用 ack；
// 远程合成不可用时推送 speech.local 事件，由客户端用本地语音朗读。
type Narrations struct {
	tts      speech.TTSProvider
	hub      *events.Hub
	cfg      NarrationConfig
	observer speech.Observer
	logger   *zap.Logger

	mu sync.Mutex
	m  map[string]*narration
}

type narration struct {
	narrator *speech.Narrator
	sink     *speech.AckSink
}

// NewNarrations 创建朗读注册表；tts 为 nil 时总是走客户端本地朗读
func NewNarrations(tts speech.TTSProvider, hub *events.Hub, cfg NarrationConfig, observer speech.Observer, logger *zap.Logger) *Narrations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Narrations{
		tts:      tts,
		hub:      hub,
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		m:        make(map[string]*narration),
	}
}

func (n *Narrations) get(sessionID string) *narration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if nr, ok := n.m[sessionID]; ok {
		return nr
	}

	sink := speech.NewAckSink(func(ctx context.Context, clip *speech.Clip) error {
		n.hub.Publish(sessionID, EventSpeechClip, clip)
		return nil
	}, n.cfg.AckTimeout)
	opts := []speech.NarratorOption{
		speech.WithLocalVoice(clientVoice{hub: n.hub, sessionID: sessionID}),
		speech.WithChunkLimit(n.cfg.ChunkLimit),
	}
	if n.observer != nil {
		opts = append(opts, speech.WithSynthesisObserver(n.observer))
	}
	nr := &narration{
		narrator: speech.NewNarrator(n.tts, sink, n.logger.With(zap.String("session_id", sessionID)), opts...),
		sink:     sink,
	}
	n.m[sessionID] = nr
	return nr
}

// KeyFor 选择合成密钥：服务端配置优先，否则借用同一提供方的会话密钥
func (n *Narrations) KeyFor(ai types.AIConfig) string {
	if n.cfg.APIKey != "" {
		return n.cfg.APIKey
	}
	if n.cfg.Provider != "" && ai.ProviderOrDefault() == n.cfg.Provider {
		return ai.APIKey
	}
	return ""
}

// Speak 开关语义：空闲时开始朗读返回 true，否则停止当前朗读返回 false
func (n *Narrations) Speak(ctx context.Context, sessionID, text, apiKey string, category types.Category) (bool, speech.Status) {
	nr := n.get(sessionID)
	started := nr.narrator.Speak(ctx, speech.SpeakRequest{
		Text:    text,
		APIKey:  apiKey,
		Model:   n.cfg.Model,
		Format:  n.cfg.Format,
		Profile: speech.ProfileFor(category),
	})
	return started, nr.narrator.Status()
}

// Ack 客户端报告分段播放完毕
func (n *Narrations) Ack(sessionID string, index int) bool {
	n.mu.Lock()
	nr, ok := n.m[sessionID]
	n.mu.Unlock()
	if !ok {
		return false
	}
	return nr.sink.Ack(index)
}

// Status 返回会话朗读状态
func (n *Narrations) Status(sessionID string) speech.Status {
	n.mu.Lock()
	nr, ok := n.m[sessionID]
	n.mu.Unlock()
	if !ok {
		return speech.Status{State: speech.StateIdle}
	}
	return nr.narrator.Status()
}

// Remove 停止并丢弃会话的朗读器
func (n *Narrations) Remove(sessionID string) {
	n.mu.Lock()
	nr, ok := n.m[sessionID]
	delete(n.m, sessionID)
	n.mu.Unlock()
	if ok {
		nr.narrator.Stop()
	}
}

// clientVoice 把本地朗读交给客户端
type clientVoice struct {
	hub       *events.Hub
	sessionID string
}

// LocalSpeech speech.local 事件内容
type LocalSpeech struct {
	Text    string              `json:"text"`
	Profile speech.VoiceProfile `json:"profile"`
}

func (v clientVoice) Speak(ctx context.Context, text string, profile speech.VoiceProfile) error {
	v.hub.Publish(v.sessionID, EventSpeechLocal, LocalSpeech{Text: text, Profile: profile})
	return nil
}
