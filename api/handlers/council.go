package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🏛️ 议会 Handler
// =============================================================================

// CouncilHandler 议会回合、搜索审批、专家与纪要
type CouncilHandler struct {
	ws      *Workspace
	timeout time.Duration
	logger  *zap.Logger
}

// NewCouncilHandler 创建议会处理器；timeout 为单个回合的上限，<= 0 时为 3 分钟
func NewCouncilHandler(ws *Workspace, timeout time.Duration, logger *zap.Logger) *CouncilHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &CouncilHandler{
		ws:      ws,
		timeout: timeout,
		logger:  logger.With(zap.String("handler", "council")),
	}
}

// turnContext 回合不随客户端断开而取消，只受 timeout 约束
func (h *CouncilHandler) turnContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
}

// runTurn 执行一个回合并返回最新快照
func (h *CouncilHandler) runTurn(w http.ResponseWriter, r *http.Request, e *council.Engine, fn func(ctx context.Context) error) {
	ctx, cancel := h.turnContext(r)
	defer cancel()
	if err := fn(ctx); err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, e.Snapshot())
}

// HandleGet GET /api/v1/sessions/{id}/council
func (h *CouncilHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	WriteSuccess(w, e.Snapshot())
}

// HandleSend POST /api/v1/sessions/{id}/council/messages
func (h *CouncilHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.SendMessageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	h.runTurn(w, r, e, func(ctx context.Context) error { return e.Send(ctx, req.Text) })
}

// HandleContinue POST /api/v1/sessions/{id}/council/continue
func (h *CouncilHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	h.runTurn(w, r, e, e.Continue)
}

// HandlePivot POST /api/v1/sessions/{id}/council/pivot
func (h *CouncilHandler) HandlePivot(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.PivotRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.MessageID) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "message_id is required", h.logger)
		return
	}
	h.runTurn(w, r, e, func(ctx context.Context) error { return e.Pivot(ctx, req.MessageID) })
}

// HandleBrainstorm POST /api/v1/sessions/{id}/council/brainstorm
func (h *CouncilHandler) HandleBrainstorm(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.ToggleRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	e.SetBrainstorm(req.Enabled)
	WriteSuccess(w, e.Snapshot())
}

// HandleApproveSearch POST /api/v1/sessions/{id}/council/search/approve
func (h *CouncilHandler) HandleApproveSearch(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	h.runTurn(w, r, e, e.ApproveSearch)
}

// HandleDenySearch POST /api/v1/sessions/{id}/council/search/deny
func (h *CouncilHandler) HandleDenySearch(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	h.runTurn(w, r, e, e.DenySearch)
}

// HandleAutoApprove POST /api/v1/sessions/{id}/council/search/auto-approve
func (h *CouncilHandler) HandleAutoApprove(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.ToggleRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := e.SetAutoApprove(req.Enabled); err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, e.Snapshot())
}

// HandleSummonExperts POST /api/v1/sessions/{id}/council/experts/summon
func (h *CouncilHandler) HandleSummonExperts(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.SummonExpertsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	ctx, cancel := h.turnContext(r)
	defer cancel()
	experts, err := e.SummonExperts(ctx, req.Topic, req.Count)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ExpertsResponse{Experts: experts})
}

// HandleConfirmExperts POST /api/v1/sessions/{id}/council/experts/confirm
func (h *CouncilHandler) HandleConfirmExperts(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req api.ConfirmExpertsRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	added, err := e.ConfirmExperts(req.IDs)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.ExpertsResponse{Experts: added})
}

// HandleDistillReport POST /api/v1/sessions/{id}/council/report
func (h *CouncilHandler) HandleDistillReport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	ctx, cancel := h.turnContext(r)
	defer cancel()
	report, err := e.DistillReport(ctx)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, report)
}

// HandleGetReport GET /api/v1/sessions/{id}/council/report
func (h *CouncilHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	report, ok := e.Report()
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "no report has been distilled yet", h.logger)
		return
	}
	WriteSuccess(w, report)
}

// =============================================================================
// 🔊 纪要朗读
// =============================================================================

// HandleNarrateReport POST /api/v1/sessions/{id}/council/report/narrate
// 开关语义：正在朗读时再次调用会停止朗读。
func (h *CouncilHandler) HandleNarrateReport(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	narrations := h.ws.Narrations()
	if narrations == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "narration is disabled", h.logger)
		return
	}
	var req api.NarrateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	report, ok := e.Report()
	if !ok {
		WriteDomainError(w, council.ErrNothingToReport, h.logger)
		return
	}
	category := req.Category
	if category == "" {
		category = types.CategoryAssistant
	}

	started, status := narrations.Speak(r.Context(), e.ID(), report.Markdown, narrations.KeyFor(e.AIConfig()), category)
	WriteSuccess(w, api.NarrateResponse{Started: started, Status: status})
}

// HandleNarrationStatus GET /api/v1/sessions/{id}/council/narration
func (h *CouncilHandler) HandleNarrationStatus(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	narrations := h.ws.Narrations()
	if narrations == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "narration is disabled", h.logger)
		return
	}
	WriteSuccess(w, narrations.Status(e.ID()))
}

// HandleNarrationAck POST /api/v1/sessions/{id}/council/narration/ack
func (h *CouncilHandler) HandleNarrationAck(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	narrations := h.ws.Narrations()
	if narrations == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "narration is disabled", h.logger)
		return
	}
	var req api.AckRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	WriteSuccess(w, map[string]any{
		"acknowledged": narrations.Ack(e.ID(), req.Index),
		"status":       narrations.Status(e.ID()),
	})
}
