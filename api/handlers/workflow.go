package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/types"
	"github.com/BaSui01/agentcouncil/workflow"
)

// =============================================================================
// 🧩 工作流画板 Handler
// =============================================================================

// WorkflowHandler 会话画板的生成、模板、编辑与运行
type WorkflowHandler struct {
	ws         *Workspace
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewWorkflowHandler 创建画板处理器；runTimeout <= 0 时为 10 分钟
func NewWorkflowHandler(ws *Workspace, runTimeout time.Duration, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &WorkflowHandler{
		ws:         ws,
		runTimeout: runTimeout,
		logger:     logger.With(zap.String("handler", "workflow")),
	}
}

func templateInfos() []api.TemplateInfo {
	ts := workflow.Templates()
	out := make([]api.TemplateInfo, 0, len(ts))
	for _, t := range ts {
		out = append(out, api.TemplateInfo{ID: t.ID, Name: t.Name, Steps: len(t.Steps)})
	}
	return out
}

func workflowResponse(b *workflow.Board) api.WorkflowResponse {
	resp := api.WorkflowResponse{
		Graph:     b.Snapshot(),
		Running:   b.Running(),
		Templates: templateInfos(),
	}
	if h := b.LastRun(); h != nil {
		resp.LastRun = h.GetSteps()
	}
	return resp
}

func (h *WorkflowHandler) board(w http.ResponseWriter, r *http.Request) (*workflow.Board, types.AIConfig, bool) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return nil, types.AIConfig{}, false
	}
	b, ok := h.ws.Board(e.ID())
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+e.ID(), h.logger)
		return nil, types.AIConfig{}, false
	}
	return b, e.AIConfig(), true
}

// HandleGet GET /api/v1/sessions/{id}/workflow
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.board(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, workflowResponse(b))
}

// HandleTemplates GET /api/v1/workflow/templates
func (h *WorkflowHandler) HandleTemplates(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, templateInfos())
}

// HandleGenerate POST /api/v1/sessions/{id}/workflow/generate
func (h *WorkflowHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	b, cfg, ok := h.board(w, r)
	if !ok {
		return
	}
	var req api.GenerateWorkflowRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "goal is required", h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.runTimeout)
	defer cancel()
	g, fallback, err := b.Generate(ctx, cfg, req.Goal)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.GenerateWorkflowResponse{Graph: g, Fallback: fallback})
}

// HandleLoadTemplate POST /api/v1/sessions/{id}/workflow/templates/{template}
func (h *WorkflowHandler) HandleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.board(w, r)
	if !ok {
		return
	}
	var req api.LoadTemplateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	g, err := b.LoadTemplate(r.PathValue("template"), req.Seed)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, g)
}

// HandleUpdateNode PUT /api/v1/sessions/{id}/workflow/nodes/{node}
func (h *WorkflowHandler) HandleUpdateNode(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.board(w, r)
	if !ok {
		return
	}
	var req api.UpdateNodeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	node, err := b.SetInstructions(r.PathValue("node"), req.Instructions)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, node)
}

// HandleRun POST /api/v1/sessions/{id}/workflow/run
// 同步执行整条链路，返回本次运行的日志。
func (h *WorkflowHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	b, cfg, ok := h.board(w, r)
	if !ok {
		return
	}
	var req api.RunWorkflowRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	h.run(w, r, b, cfg, req.Seed)
}

func (h *WorkflowHandler) run(w http.ResponseWriter, r *http.Request, b *workflow.Board, cfg types.AIConfig, seed string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.runTimeout)
	defer cancel()
	log, err := b.Run(ctx, cfg, seed)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, log)
}
