package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/persistence"
	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 📜 运行日志 Handler
// =============================================================================

// LogHandler 工作流运行日志的查询、删除与重跑
type LogHandler struct {
	store persistence.LogStore
	runs  *WorkflowHandler
	ws    *Workspace

	logger *zap.Logger
}

// NewLogHandler 创建日志处理器；重跑复用 runs 的超时设置
func NewLogHandler(store persistence.LogStore, ws *Workspace, runs *WorkflowHandler, logger *zap.Logger) *LogHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogHandler{
		store:  store,
		runs:   runs,
		ws:     ws,
		logger: logger.With(zap.String("handler", "logs")),
	}
}

// HandleList GET /api/v1/logs?limit=&offset=
func (h *LogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts, ok := h.listOptions(w, r)
	if !ok {
		return
	}
	logs, err := h.store.List(r.Context(), opts)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	if logs == nil {
		logs = []*types.WorkflowLog{}
	}
	WriteSuccess(w, api.LogListResponse{Logs: logs, Count: total})
}

func (h *LogHandler) listOptions(w http.ResponseWriter, r *http.Request) (persistence.ListOptions, bool) {
	var opts persistence.ListOptions
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, name+" must be a non-negative integer", h.logger)
			return opts, false
		}
		*dst = v
	}
	return opts, true
}

// HandleGet GET /api/v1/logs/{id}
func (h *LogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	log, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, log)
}

// HandleDelete DELETE /api/v1/logs/{id}
func (h *LogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"id": id})
}

// HandleClear DELETE /api/v1/logs
func (h *LogHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Clear(r.Context())
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	h.logger.Info("workflow logs cleared", zap.Int("deleted", n))
	WriteSuccess(w, api.ClearLogsResponse{Deleted: n})
}

// HandleRerun POST /api/v1/logs/{id}/rerun
// 以日志的种子在指定会话当前的画板上再运行一次，产生一条新日志。
func (h *LogHandler) HandleRerun(w http.ResponseWriter, r *http.Request) {
	var req api.RerunRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "session_id is required", h.logger)
		return
	}
	prev, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	e, ok := h.ws.Engine(req.SessionID)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+req.SessionID, h.logger)
		return
	}
	b, ok := h.ws.Board(e.ID())
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+req.SessionID, h.logger)
		return
	}
	h.runs.run(w, r, b, e.AIConfig(), prev.Seed)
}
