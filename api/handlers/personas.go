package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🧑‍🚀 角色 Handler
// =============================================================================

// PersonaHandler 角色名册与单角色指令
type PersonaHandler struct {
	ws        *Workspace
	roster    *persona.Roster // 未指定会话时使用的固定名册
	commander *persona.Commander
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPersonaHandler 创建角色处理器
func NewPersonaHandler(ws *Workspace, roster *persona.Roster, commander *persona.Commander, timeout time.Duration, logger *zap.Logger) *PersonaHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &PersonaHandler{
		ws:        ws,
		roster:    roster,
		commander: commander,
		timeout:   timeout,
		logger:    logger.With(zap.String("handler", "personas")),
	}
}

// scope 解析会话：有 session_id 时使用该会话的名册（含已确认的专家）与模型配置
func (h *PersonaHandler) scope(w http.ResponseWriter, sessionID string) (*persona.Roster, types.AIConfig, bool) {
	if sessionID == "" {
		return h.roster, h.ws.Defaults(), true
	}
	e, ok := h.ws.Engine(sessionID)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+sessionID, h.logger)
		return nil, types.AIConfig{}, false
	}
	return e.Roster(), e.AIConfig(), true
}

// HandleList GET /api/v1/personas?session_id=
func (h *PersonaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roster, _, ok := h.scope(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	WriteSuccess(w, map[string]any{"personas": roster.All()})
}

// resolve 解析路径中的角色与请求体
func (h *PersonaHandler) resolve(w http.ResponseWriter, r *http.Request) (types.Persona, types.AIConfig, api.PersonaCommandRequest, bool) {
	var req api.PersonaCommandRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return types.Persona{}, types.AIConfig{}, req, false
	}
	roster, cfg, ok := h.scope(w, req.SessionID)
	if !ok {
		return types.Persona{}, types.AIConfig{}, req, false
	}
	id := r.PathValue("id")
	p, ok := roster.Get(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "persona not found: "+id, h.logger)
		return types.Persona{}, types.AIConfig{}, req, false
	}
	return p, cfg, req, true
}

func (h *PersonaHandler) callContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
}

// HandleCommand POST /api/v1/personas/{id}/command
func (h *PersonaHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	p, cfg, req, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	reply, err := h.commander.Command(ctx, cfg, p, req.Command)
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteSuccess(w, reply)
}

// HandleSpecialAction POST /api/v1/personas/{id}/special-action
func (h *PersonaHandler) HandleSpecialAction(w http.ResponseWriter, r *http.Request) {
	p, cfg, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	WriteSuccess(w, h.commander.SpecialAction(ctx, cfg, p))
}

// HandleStatus POST /api/v1/personas/{id}/status
func (h *PersonaHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	p, cfg, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	WriteSuccess(w, h.commander.StatusReport(ctx, cfg, p))
}

// HandleMissionLog POST /api/v1/personas/{id}/mission-log
func (h *PersonaHandler) HandleMissionLog(w http.ResponseWriter, r *http.Request) {
	p, cfg, _, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.callContext(r)
	defer cancel()
	WriteSuccess(w, h.commander.MissionLog(ctx, cfg, p))
}
