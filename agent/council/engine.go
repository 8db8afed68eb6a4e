package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/tokenizer"
	"github.com/BaSui01/agentcouncil/llm/tools"
	"github.com/BaSui01/agentcouncil/types"
)

var (
	ErrBusy            = errors.New("a council turn is already in progress")
	ErrSearchPending   = errors.New("a search request is waiting for approval")
	ErrEmptyInput      = errors.New("input is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrClosed          = errors.New("council session closed")
)

// 事件名
const (
	EventMessage       = "council.message"
	EventState         = "council.state"
	EventSearchRequest = "council.search_request"
	EventExperts       = "council.experts"
	EventReport        = "council.report"
)

// Config 引擎参数
type Config struct {
	HistoryWindow      int           `json:"history_window" yaml:"history_window"`
	BrainstormWindow   int           `json:"brainstorm_window" yaml:"brainstorm_window"`
	TokenBudget        int           `json:"token_budget" yaml:"token_budget"`
	BrainstormDelay    time.Duration `json:"brainstorm_delay" yaml:"brainstorm_delay"`
	FocusSpeakers      SpeakerRange  `json:"focus_speakers" yaml:"focus_speakers"`
	BrainstormSpeakers SpeakerRange  `json:"brainstorm_speakers" yaml:"brainstorm_speakers"`
	ExpertCandidates   int           `json:"expert_candidates" yaml:"expert_candidates"`
}

// DefaultConfig 返回默认参数
func DefaultConfig() Config {
	return Config{
		HistoryWindow:      8,
		BrainstormWindow:   20,
		TokenBudget:        3000,
		BrainstormDelay:    6 * time.Second,
		FocusSpeakers:      SpeakerRange{Min: 1, Max: 2},
		BrainstormSpeakers: SpeakerRange{Min: 2, Max: 4},
		ExpertCandidates:   4,
	}
}

// Searcher 搜索网关，失败时返回 nil
type Searcher interface {
	Search(ctx context.Context, query, apiKey string) []tools.WebSearchResult
}

// Observer 议会指标
type Observer interface {
	ObserveCouncilTurn(kind, status string, d time.Duration)
	ObserveSearchGate(transition string)
}

// EventFunc 会话状态变化回调
type EventFunc func(sessionID, event string, payload any)

// Option 配置 Engine
type Option func(*Engine)

func WithSearcher(s Searcher) Option { return func(e *Engine) { e.searcher = s } }

func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.scheduler = s } }

func WithCounter(c tokenizer.Counter) Option { return func(e *Engine) { e.counter = c } }

func WithObserver(o Observer) Option { return func(e *Engine) { e.observer = o } }

func WithEvents(fn EventFunc) Option { return func(e *Engine) { e.events = fn } }

func WithConfig(c Config) Option { return func(e *Engine) { e.cfg = c } }

func WithAIConfig(c types.AIConfig) Option {
	return func(e *Engine) { e.aiConfig = c }
}

// WithSeed 固定发言人选择的随机种子
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.selector = NewSeededSelector(seed) }
}

// WithSelector 替换发言人选择策略
func WithSelector(sel SpeakerSelector) Option {
	return func(e *Engine) { e.selector = sel }
}

// Report 讨论纪要
type Report struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Markdown     string    `json:"markdown"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// State 会话快照
type State struct {
	SessionID           string          `json:"session_id"`
	Messages            []Message       `json:"messages"`
	Roster              []types.Persona `json:"roster"`
	Brainstorm          bool            `json:"brainstorm"`
	BrainstormScheduled bool            `json:"brainstorm_scheduled"`
	Processing          bool            `json:"processing"`
	Gate                SearchGate      `json:"gate"`
	CanAutoApprove      bool            `json:"can_auto_approve"`
	Candidates          []types.Persona `json:"candidates,omitempty"`
	Report              *Report         `json:"report,omitempty"`
}

// Engine 单会话的议会引擎
type Engine struct {
	id        string
	invoker   llm.Invoker
	roster    *persona.Roster
	searcher  Searcher
	selector  SpeakerSelector
	scheduler Scheduler
	counter   tokenizer.Counter
	cfg       Config
	observer  Observer
	events    EventFunc
	logger    *zap.Logger

	bgCtx    context.Context
	bgCancel context.CancelFunc

	mu          sync.Mutex
	aiConfig    types.AIConfig
	messages    []Message
	brainstorm  bool
	halted      bool // 额度或密钥失败后暂停自动续聊，直到用户下一次操作
	gate        SearchGate
	pendingTurn *turnSpec
	processing  bool
	candidates  []types.Persona
	report      *Report
	timer       Timer
	timerGen    uint64
	closed      bool
}

// NewEngine 创建引擎；base 为空时使用默认名册。名册在会话内独立，召唤的专家只属于本会话。
func NewEngine(id string, invoker llm.Invoker, base []types.Persona, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		id:        id,
		invoker:   invoker,
		roster:    persona.NewRoster(base...),
		scheduler: RealScheduler{},
		counter:   tokenizer.Estimator{},
		cfg:       DefaultConfig(),
		logger:    logger.With(zap.String("component", "council"), zap.String("session_id", id)),
		gate:      NewSearchGate(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.selector == nil {
		e.selector = newRandomSelector()
	}
	e.bgCtx, e.bgCancel = context.WithCancel(context.Background())
	e.messages = append(e.messages, systemMessage(OpeningMessage))
	return e
}

func (e *Engine) ID() string { return e.id }

// Roster 返回会话名册
func (e *Engine) Roster() *persona.Roster { return e.roster }

// SetAIConfig 更新后续调用使用的模型配置
func (e *Engine) SetAIConfig(cfg types.AIConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aiConfig = cfg
}

// Snapshot 返回会话快照
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Messages 返回消息记录的拷贝
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Message(nil), e.messages...)
}

// Send 提交用户输入并执行一个回合
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	e.mu.Lock()
	if err := e.beginLocked(true); err != nil {
		e.mu.Unlock()
		return err
	}
	spec := e.specLocked(text)
	e.mu.Unlock()
	defer e.end()

	e.append(userMessage(text))
	e.turn(ctx, "send", spec)
	return nil
}

// Continue 无用户输入的续聊回合（头脑风暴计时器也走这里）
func (e *Engine) Continue(ctx context.Context) error {
	e.mu.Lock()
	if err := e.beginLocked(true); err != nil {
		e.mu.Unlock()
		return err
	}
	spec := e.specLocked("")
	e.mu.Unlock()
	defer e.end()

	e.turn(ctx, "continue", spec)
	return nil
}

// Pivot 只围绕一条历史消息展开回合，忽略其余上下文
func (e *Engine) Pivot(ctx context.Context, messageID string) error {
	e.mu.Lock()
	var focus *Message
	for i := range e.messages {
		if e.messages[i].ID == messageID {
			m := e.messages[i]
			focus = &m
			break
		}
	}
	if focus == nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	if err := e.beginLocked(true); err != nil {
		e.mu.Unlock()
		return err
	}
	spec := e.specLocked("")
	spec.history = nil
	spec.focus = focus
	e.mu.Unlock()
	defer e.end()

	e.turn(ctx, "pivot", spec)
	return nil
}

// SetBrainstorm 开关头脑风暴模式，任何切换都会取消已排期的续聊
func (e *Engine) SetBrainstorm(on bool) {
	e.mu.Lock()
	e.cancelTimerLocked()
	e.brainstorm = on
	e.halted = false
	e.maybeScheduleLocked()
	state := e.stateLocked()
	e.mu.Unlock()
	e.emit(EventState, state)
}

// ApproveSearch 批准待审批的搜索，执行搜索并生成一次后续回合
func (e *Engine) ApproveSearch(ctx context.Context) error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.processing {
		e.mu.Unlock()
		return ErrBusy
	}
	gate, err := e.gate.Approve()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	req := *gate.Pending
	spec := e.takePendingTurnLocked()
	e.gate = gate.BeginSearch()
	e.processing = true
	e.halted = false
	e.cancelTimerLocked()
	e.mu.Unlock()
	defer e.end()

	e.observeGate("approved")
	e.searchAndContinue(ctx, spec, req)
	return nil
}

// DenySearch 拒绝待审批的搜索，并在没有搜索结果的情况下生成一次后续回合
func (e *Engine) DenySearch(ctx context.Context) error {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.processing {
		e.mu.Unlock()
		return ErrBusy
	}
	gate, err := e.gate.Deny()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	req := *gate.Pending
	spec := e.takePendingTurnLocked()
	e.gate = gate.Resolve(false)
	e.processing = true
	e.halted = false
	e.cancelTimerLocked()
	e.mu.Unlock()
	defer e.end()

	e.observeGate("denied")
	spec.allowSearch = false
	spec.search = &searchContext{request: req, denied: true}
	e.turn(ctx, "search_followup", spec)
	return nil
}

// SetAutoApprove 开关自动批准，批准次数不足 3 次时返回 ErrAutoApproveLocked
func (e *Engine) SetAutoApprove(on bool) error {
	e.mu.Lock()
	gate, err := e.gate.SetAutoApprove(on)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.gate = gate
	state := e.stateLocked()
	e.mu.Unlock()
	e.emit(EventState, state)
	return nil
}

// Close 取消计时器并拒绝后续操作
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.cancelTimerLocked()
	e.mu.Unlock()
	e.bgCancel()
}

func (e *Engine) checkOpenLocked() error {
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Engine) beginLocked(checkGate bool) error {
	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	if checkGate && e.gate.IsPending() {
		return ErrSearchPending
	}
	if e.processing {
		return ErrBusy
	}
	e.processing = true
	e.halted = false
	e.cancelTimerLocked()
	return nil
}

// end 释放 processing 标记并视情况排期下一次自动续聊
func (e *Engine) end() {
	e.mu.Lock()
	e.processing = false
	e.maybeScheduleLocked()
	state := e.stateLocked()
	e.mu.Unlock()
	e.emit(EventState, state)
}

func (e *Engine) takePendingTurnLocked() turnSpec {
	if e.pendingTurn == nil {
		return e.specLocked("")
	}
	spec := *e.pendingTurn
	e.pendingTurn = nil
	return spec
}

func (e *Engine) specLocked(userText string) turnSpec {
	window, speakers := e.cfg.HistoryWindow, e.cfg.FocusSpeakers
	if e.brainstorm {
		window, speakers = e.cfg.BrainstormWindow, e.cfg.BrainstormSpeakers
	}
	return turnSpec{
		history:     e.windowLocked(window),
		speakers:    e.selector.SelectSpeakers(e.roster.All(), speakers),
		userText:    userText,
		brainstorm:  e.brainstorm,
		allowSearch: e.searcher != nil,
	}
}

// windowLocked 最近 n 条非系统消息，再按 token 预算裁剪
func (e *Engine) windowLocked(n int) []Message {
	var chat []Message
	for _, m := range e.messages {
		if !m.IsSystem {
			chat = append(chat, m)
		}
	}
	if n > 0 && len(chat) > n {
		chat = chat[len(chat)-n:]
	}
	texts := make([]string, len(chat))
	for i, m := range chat {
		texts[i] = m.SenderName + ": " + m.Text
	}
	start := tokenizer.KeepNewest(texts, e.cfg.TokenBudget, e.counter)
	return append([]Message(nil), chat[start:]...)
}

type turnOutcome struct {
	replies []replyJSON
	search  *SearchRequest
}

type replyJSON struct {
	PersonaName string `json:"personaName"`
	AgentName   string `json:"agentName"`
	Text        string `json:"text"`
}

func (r replyJSON) name() string {
	if r.PersonaName != "" {
		return r.PersonaName
	}
	return r.AgentName
}

// parseTurn 接受 {"replies":[...]}、{"searchRequest":{...}}、裸数组或其他键包裹的数组
func parseTurn(text string) (*turnOutcome, error) {
	var wrapped struct {
		Replies       []replyJSON    `json:"replies"`
		SearchRequest *SearchRequest `json:"searchRequest"`
	}
	if err := llm.DecodeJSON(text, &wrapped); err == nil {
		if sr := wrapped.SearchRequest; sr != nil && strings.TrimSpace(sr.Query) != "" {
			return &turnOutcome{search: sr}, nil
		}
		if len(wrapped.Replies) > 0 {
			return &turnOutcome{replies: wrapped.Replies}, nil
		}
	}
	var bare []replyJSON
	if err := llm.DecodeJSON(text, &bare); err != nil {
		return nil, err
	}
	for _, r := range bare {
		if strings.TrimSpace(r.Text) != "" {
			return &turnOutcome{replies: bare}, nil
		}
	}
	return nil, llm.Malformed("council response has no replies")
}

// turn 执行一次模型调用并把结果写入消息记录；失败时写入一条系统消息
func (e *Engine) turn(ctx context.Context, kind string, spec turnSpec) {
	start := time.Now()
	cfg := e.AIConfig()

	res, err := e.invoker.Invoke(ctx, llm.Invocation{
		Config:   cfg,
		Prompt:   buildTurnPrompt(spec),
		JSONMode: true,
	})
	var out *turnOutcome
	if err == nil {
		out, err = parseTurn(res.Text)
	}
	if err != nil {
		e.observeTurn(kind, "error", time.Since(start))
		e.logger.Warn("council turn failed", zap.String("kind", kind), zap.Error(err))
		if llm.IsQuotaExceeded(err) || llm.IsMissingCredential(err) {
			// 不自动重试，等用户决定
			e.mu.Lock()
			e.halted = true
			e.mu.Unlock()
		}
		e.append(errorMessage(FailureText(err)))
		return
	}

	if out.search != nil {
		if !spec.allowSearch {
			// 后续回合不允许再次搜索
			e.observeTurn(kind, "error", time.Since(start))
			e.append(errorMessage(FailureText(llm.Malformed("search requested during a follow-up turn"))))
			return
		}
		e.observeTurn(kind, "search_requested", time.Since(start))
		e.proposeSearch(ctx, spec, *out.search)
		return
	}

	var sources []llm.Source
	if spec.search != nil {
		for _, r := range spec.search.results {
			sources = append(sources, llm.Source{Title: r.Title, URL: r.URL})
		}
	}
	e.appendReplies(spec.speakers, out.replies, sources)
	e.observeTurn(kind, "success", time.Since(start))
}

func (e *Engine) appendReplies(speakers []types.Persona, replies []replyJSON, sources []llm.Source) {
	var msgs []Message
	for _, r := range replies {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		p, ok := e.roster.ByName(r.name())
		if !ok {
			if len(speakers) > 0 {
				p = speakers[0]
			} else {
				p, _ = e.roster.ForCategory(types.CategoryAssistant)
			}
		}
		m := personaMessage(p, text)
		if len(msgs) == 0 {
			m.Sources = sources
		}
		msgs = append(msgs, m)
	}
	e.append(msgs...)
}

func (e *Engine) proposeSearch(ctx context.Context, spec turnSpec, req SearchRequest) {
	req.Query = strings.TrimSpace(req.Query)
	if _, ok := e.roster.ByName(req.PersonaName); !ok && len(spec.speakers) > 0 {
		req.PersonaName = spec.speakers[0].Name
	}

	e.mu.Lock()
	gate, auto, err := e.gate.Propose(req)
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("search proposal rejected", zap.Error(err))
		return
	}
	e.gate = gate
	if !auto {
		pending := spec
		e.pendingTurn = &pending
	}
	e.mu.Unlock()

	if !auto {
		e.observeGate("proposed")
		e.append(systemMessage(fmt.Sprintf("🔎 %s wants to search the web for %q. %s", req.PersonaName, req.Query, req.Rationale)))
		e.emit(EventSearchRequest, req)
		return
	}

	e.observeGate("auto_approved")
	e.append(systemMessage(fmt.Sprintf("🔎 %s is searching the web for %q (auto-approved).", req.PersonaName, req.Query)))
	e.searchAndContinue(ctx, spec, req)
}

// searchAndContinue 执行搜索（gate 已处于 searching）并生成一次不允许再搜索的后续回合
func (e *Engine) searchAndContinue(ctx context.Context, spec turnSpec, req SearchRequest) {
	var results []tools.WebSearchResult
	if e.searcher != nil {
		results = e.searcher.Search(ctx, req.Query, e.AIConfig().SearchAPIKey)
	}
	if results == nil {
		e.logger.Info("search unavailable, continuing without results",
			zap.String("code", string(llm.ErrSearchUnavailable)),
			zap.String("query", req.Query))
		e.observeGate("search_unavailable")
	}

	e.mu.Lock()
	e.gate = e.gate.Resolve(len(results) > 0)
	e.mu.Unlock()

	spec.allowSearch = false
	spec.search = &searchContext{request: req, results: results}
	e.turn(ctx, "search_followup", spec)
}

// AIConfig 返回会话当前的模型配置
func (e *Engine) AIConfig() types.AIConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aiConfig
}

func (e *Engine) append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	e.mu.Lock()
	e.messages = append(e.messages, msgs...)
	e.mu.Unlock()
	for _, m := range msgs {
		e.emit(EventMessage, m)
	}
}

func (e *Engine) maybeScheduleLocked() {
	if !e.brainstorm || e.halted || e.closed || e.processing || e.gate.IsPending() || e.timer != nil {
		return
	}
	if len(e.messages) == 0 || e.messages[len(e.messages)-1].IsUser {
		return
	}
	e.timerGen++
	gen := e.timerGen
	e.timer = e.scheduler.AfterFunc(e.cfg.BrainstormDelay, func() { e.brainstormTick(gen) })
}

func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
}

func (e *Engine) brainstormTick(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen || !e.brainstorm || e.closed {
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()

	if err := e.Continue(e.bgCtx); err != nil {
		e.logger.Debug("brainstorm turn skipped", zap.Error(err))
	}
}

func (e *Engine) stateLocked() State {
	var report *Report
	if e.report != nil {
		r := *e.report
		report = &r
	}
	gate := e.gate
	if gate.Pending != nil {
		p := *gate.Pending
		gate.Pending = &p
	}
	return State{
		SessionID:           e.id,
		Messages:            append([]Message(nil), e.messages...),
		Roster:              e.roster.All(),
		Brainstorm:          e.brainstorm,
		BrainstormScheduled: e.timer != nil,
		Processing:          e.processing,
		Gate:                gate,
		CanAutoApprove:      gate.CanAutoApprove(),
		Candidates:          append([]types.Persona(nil), e.candidates...),
		Report:              report,
	}
}

func (e *Engine) emit(event string, payload any) {
	if e.events != nil {
		e.events(e.id, event, payload)
	}
}

func (e *Engine) observeTurn(kind, status string, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveCouncilTurn(kind, status, d)
	}
}

func (e *Engine) observeGate(transition string) {
	if e.observer != nil {
		e.observer.ObserveSearchGate(transition)
	}
}
