package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

const (
	// DefaultMaxHops 执行时的跳数上限
	DefaultMaxHops = 10
	// DefaultRunSeed 既没有输入也没有 trigger 输出时的种子
	DefaultRunSeed = "General Query"
)

// 事件名
const (
	EventGraphReplaced = "workflow.graph"
	EventRunStarted    = "workflow.run_started"
	EventNodeUpdated   = "workflow.node"
	EventRunCompleted  = "workflow.run_completed"
)

var (
	ErrRunInProgress   = errors.New("workflow run already in progress")
	ErrNoTrigger       = errors.New("workflow has no trigger node")
	ErrNodeNotFound    = errors.New("workflow node not found")
	ErrNotEditable     = errors.New("only agent steps carry instructions")
	ErrUnknownTemplate = errors.New("unknown workflow template")
)

// Roster 画板读取角色列表
type Roster interface {
	All() []types.Persona
	ByCategory(c types.Category) (types.Persona, bool)
}

// LogSink 接收每次运行的日志
type LogSink interface {
	Append(ctx context.Context, log *types.WorkflowLog) error
}

// Observer 运行指标
type Observer interface {
	ObserveWorkflowStep(category, status string, d time.Duration)
	ObserveWorkflowRun(status string, steps int, d time.Duration)
}

// EventFunc 画板状态变化回调
type EventFunc func(boardID, event string, payload any)

// BoardOption 配置 Board
type BoardOption func(*Board)

func WithLogSink(s LogSink) BoardOption { return func(b *Board) { b.sink = s } }

func WithObserver(o Observer) BoardOption { return func(b *Board) { b.observer = o } }

func WithEvents(fn EventFunc) BoardOption { return func(b *Board) { b.events = fn } }

// WithDefaultSeed 覆盖既没有输入也没有 trigger 输出时的种子
func WithDefaultSeed(seed string) BoardOption {
	return func(b *Board) {
		if seed = strings.TrimSpace(seed); seed != "" {
			b.defaultSeed = seed
		}
	}
}

func WithMaxHops(n int) BoardOption {
	return func(b *Board) {
		if n > 0 {
			b.maxHops = n
		}
	}
}

// Board 单会话工作流画板。同一时刻只允许一次运行，运行期间不能替换图。
type Board struct {
	id        string
	invoker   llm.Invoker
	generator *Generator
	roster    Roster
	sink      LogSink
	observer  Observer
	events    EventFunc
	maxHops   int
	logger    *zap.Logger

	defaultSeed string

	mu      sync.Mutex
	graph   *Graph
	running bool
	last    *RunHistory
}

// NewBoard 创建画板，初始图为 news-briefing 模板
func NewBoard(id string, invoker llm.Invoker, roster Roster, logger *zap.Logger, opts ...BoardOption) *Board {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Board{
		id:        id,
		invoker:   invoker,
		generator: NewGenerator(invoker, logger),
		roster:    roster,
		maxHops:   DefaultMaxHops,

		defaultSeed: DefaultRunSeed,
		logger:      logger.With(zap.String("component", "workflow_board"), zap.String("board_id", id)),
	}
	for _, opt := range opts {
		opt(b)
	}
	t, _ := LookupTemplate("news-briefing")
	b.graph, _ = t.Graph("")
	return b
}

func (b *Board) ID() string { return b.id }

// Snapshot 返回当前图的拷贝
func (b *Board) Snapshot() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.graph.Clone()
}

// Running reports whether a run is in flight.
func (b *Board) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// LastRun 返回最近一次运行的执行记录
func (b *Board) LastRun() *RunHistory {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// Generate 让模型规划步骤并替换当前图；第二个返回值表示是否使用了默认链
func (b *Board) Generate(ctx context.Context, cfg types.AIConfig, goal string) (*Graph, bool, error) {
	if b.Running() {
		return nil, false, ErrRunInProgress
	}
	var roster []types.Persona
	if b.roster != nil {
		roster = b.roster.All()
	}
	steps, fallback := b.generator.Plan(ctx, cfg, goal, roster)
	g, err := NewChainBuilder("Generated Workflow").Trigger("User Input", goal).Steps(steps...).Build()
	if err != nil {
		return nil, false, err
	}
	if err := b.replace(g); err != nil {
		return nil, false, err
	}
	b.logger.Info("workflow generated", zap.Int("steps", len(steps)), zap.Bool("fallback", fallback))
	return g.Clone(), fallback, nil
}

// LoadTemplate 用模板整体替换节点与边，并重置全部状态
func (b *Board) LoadTemplate(id, seed string) (*Graph, error) {
	t, ok := LookupTemplate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	g, err := t.Graph(seed)
	if err != nil {
		return nil, err
	}
	if err := b.replace(g); err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// SetInstructions 修改步骤节点的指令
func (b *Board) SetInstructions(nodeID, instructions string) (*Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, ErrRunInProgress
	}
	n := b.graph.Node(nodeID)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.Kind != KindAgentStep {
		return nil, ErrNotEditable
	}
	n.Instructions = strings.TrimSpace(instructions)
	cp := *n
	return &cp, nil
}

func (b *Board) replace(g *Graph) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrRunInProgress
	}
	b.graph = g
	snapshot := g.Clone()
	b.mu.Unlock()
	b.emit(EventGraphReplaced, snapshot)
	return nil
}

// Run 沿 trigger 的出边依次执行步骤，结束时生成并保存恰好一条运行日志。
// 只有画板状态不允许运行时才返回错误；步骤失败体现在日志状态中。
func (b *Board) Run(ctx context.Context, cfg types.AIConfig, seed string) (*types.WorkflowLog, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil, ErrRunInProgress
	}
	trigger := b.graph.Trigger()
	if trigger == nil {
		b.mu.Unlock()
		return nil, ErrNoTrigger
	}
	seed = strings.TrimSpace(seed)
	if seed == "" {
		seed = strings.TrimSpace(trigger.Output)
	}
	if seed == "" {
		seed = b.defaultSeed
	}
	b.running = true
	b.graph.Reset(seed)
	triggerID := trigger.ID
	snapshot := b.graph.Clone()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	history := NewRunHistory(uuid.NewString(), b.id)
	b.emit(EventRunStarted, snapshot)
	b.logger.Info("workflow run started", zap.String("run_id", history.RunID))

	status, content := b.walk(ctx, cfg, history, triggerID)
	history.Complete(status)

	log := &types.WorkflowLog{
		ID:        history.RunID,
		Title:     "Workflow: " + truncate(seed, 60),
		Seed:      seed,
		Timestamp: history.StartTime,
		Status:    status,
		Steps:     history.Summaries(),
		Output:    runOutput(status, content),
	}

	b.mu.Lock()
	b.last = history
	b.mu.Unlock()

	if b.sink != nil {
		if err := b.sink.Append(context.WithoutCancel(ctx), log); err != nil {
			b.logger.Error("failed to persist workflow log", zap.String("run_id", log.ID), zap.Error(err))
		}
	}
	if b.observer != nil {
		b.observer.ObserveWorkflowRun(string(status), len(log.Steps), history.Duration)
	}
	b.emit(EventRunCompleted, log)
	b.logger.Info("workflow run completed",
		zap.String("run_id", log.ID),
		zap.String("status", string(status)),
		zap.Int("steps", len(log.Steps)),
		zap.Duration("duration", history.Duration),
	)
	return log, nil
}

// walk 返回终止状态与最终内容（失败时为失败说明）
func (b *Board) walk(ctx context.Context, cfg types.AIConfig, h *RunHistory, startID string) (types.RunStatus, string) {
	curID := startID
	lastOutput := ""

	for hop := 0; hop < b.maxHops; hop++ {
		b.mu.Lock()
		cur := b.graph.Node(curID)
		if cur == nil {
			b.mu.Unlock()
			return types.RunPartial, lastOutput
		}
		lastOutput = cur.Output
		next := b.graph.Next(curID)
		if next == nil {
			b.mu.Unlock()
			return types.RunPartial, lastOutput
		}
		next.Input = cur.Output

		switch next.Kind {
		case KindTerminal:
			next.Status = StatusDone
			next.Output = cur.Output
			done := *next
			b.mu.Unlock()
			b.emit(EventNodeUpdated, done)
			return types.RunSuccess, done.Output
		case KindAgentStep:
		default:
			// 环回到 trigger：继续前进，由跳数上限兜底
			curID = next.ID
			b.mu.Unlock()
			continue
		}

		next.Status = StatusProcessing
		step := *next
		b.mu.Unlock()
		b.emit(EventNodeUpdated, step)

		output, err := b.execute(ctx, cfg, h, step)

		b.mu.Lock()
		if err != nil {
			next.Status = StatusError
			next.Output = FailureOutcome(err)
		} else {
			next.Status = StatusDone
			next.Output = output
		}
		updated := *next
		b.mu.Unlock()
		b.emit(EventNodeUpdated, updated)

		if err != nil {
			return types.RunFailed, updated.Output
		}
		curID = next.ID
	}

	b.mu.Lock()
	if n := b.graph.Node(curID); n != nil {
		lastOutput = n.Output
	}
	b.mu.Unlock()
	b.logger.Warn("workflow hop limit reached", zap.Int("max_hops", b.maxHops))
	return types.RunPartial, lastOutput
}

func (b *Board) execute(ctx context.Context, cfg types.AIConfig, h *RunHistory, step Node) (string, error) {
	persona := b.personaFor(step.Category)
	rec := h.RecordStart(step, persona.Name)
	start := time.Now()

	res, err := b.invoker.Invoke(ctx, llm.Invocation{
		Config:    cfg,
		Prompt:    stepPrompt(step),
		WebSearch: step.Category == types.CategoryNews,
	})
	d := time.Since(start)
	if err == nil && strings.TrimSpace(res.Text) == "" {
		err = llm.Malformed("empty step output")
	}

	if err != nil {
		outcome := FailureOutcome(err)
		h.RecordEnd(rec, "", outcome, err)
		b.observeStep(step.Category, "error", d)
		b.logger.Warn("workflow step failed",
			zap.String("node_id", step.ID),
			zap.String("category", string(step.Category)),
			zap.Bool("quota", llm.IsQuotaExceeded(err)),
			zap.Error(err),
		)
		return "", err
	}

	h.RecordEnd(rec, res.Text, summarize(res.Text), nil)
	b.observeStep(step.Category, "success", d)
	return res.Text, nil
}

func (b *Board) personaFor(c types.Category) types.Persona {
	if b.roster != nil {
		if p, ok := b.roster.ByCategory(c); ok {
			return p
		}
	}
	return types.Persona{Name: c.Role(), Category: c}
}

func (b *Board) observeStep(c types.Category, status string, d time.Duration) {
	if b.observer != nil {
		b.observer.ObserveWorkflowStep(string(c), status, d)
	}
}

func (b *Board) emit(event string, payload any) {
	if b.events != nil {
		b.events(b.id, event, payload)
	}
}

func stepPrompt(n Node) string {
	instr := strings.TrimSpace(n.Instructions)
	if instr == "" {
		instr = DefaultInstructions
	}
	return fmt.Sprintf(
		"You are an AI agent with the role: %s.\nYOUR INSTRUCTIONS:\n%s\nCONTEXT FROM PREVIOUS STEPS:\n%s\nPerform the task and provide the output. If generating code or text, just provide the content.",
		n.Category.Role(), instr, n.Input)
}

// FailureOutcome 步骤失败的单行说明，配额失败单独标注
func FailureOutcome(err error) string {
	switch {
	case llm.IsQuotaExceeded(err):
		return "Quota Hit: the model provider is out of quota or rate limiting. Try again later."
	case llm.IsMissingCredential(err):
		return "Missing API key: add one in Settings."
	default:
		return "Error: " + err.Error()
	}
}

func runOutput(status types.RunStatus, content string) *types.RunOutput {
	switch status {
	case types.RunFailed:
		return &types.RunOutput{Type: types.OutputText, Title: "Workflow Failed", Content: content}
	case types.RunPartial:
		cleaned := llm.CleanOutput(content)
		return &types.RunOutput{Type: DetectOutputType(cleaned), Title: "Partial Result", Content: cleaned}
	default:
		cleaned := llm.CleanOutput(content)
		return &types.RunOutput{Type: DetectOutputType(cleaned), Title: "Workflow Result", Content: cleaned}
	}
}

// DetectOutputType 判断输出内容类型
func DetectOutputType(content string) types.OutputType {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "<") || strings.Contains(s, "</") {
		return types.OutputHTML
	}
	if (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) && json.Valid([]byte(s)) {
		return types.OutputJSON
	}
	return types.OutputText
}

func summarize(text string) string {
	line := strings.TrimSpace(llm.CleanOutput(text))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return "Completed"
	}
	return truncate(line, 120)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
