package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/agent/council"
	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🗂️ 会话与事件流 Handler
// =============================================================================

// SessionHandler 会话生命周期与 WebSocket 事件流
type SessionHandler struct {
	ws             *Workspace
	originPatterns []string
	pingInterval   time.Duration
	writeTimeout   time.Duration
	logger         *zap.Logger
}

// NewSessionHandler 创建会话处理器；originPatterns 为允许跨域建立 WebSocket 的来源
func NewSessionHandler(ws *Workspace, originPatterns []string, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		ws:             ws,
		originPatterns: originPatterns,
		pingInterval:   30 * time.Second,
		writeTimeout:   10 * time.Second,
		logger:         logger.With(zap.String("handler", "sessions")),
	}
}

func (h *SessionHandler) response(e *council.Engine) api.SessionResponse {
	return api.SessionResponse{
		ID:       e.ID(),
		AIConfig: e.AIConfig().Redacted(),
		Council:  e.Snapshot(),
		LastSeq:  h.ws.Hub().LastSeq(e.ID()),
	}
}

// HandleCreate POST /api/v1/sessions
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	e, err := h.ws.Open(req.AIConfig)
	if errors.Is(err, ErrTooManySessions) {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, err.Error(), h.logger)
		return
	}
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}
	WriteCreated(w, h.response(e))
}

// HandleList GET /api/v1/sessions
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, map[string]any{"sessions": h.ws.IDs()})
}

// HandleGet GET /api/v1/sessions/{id}
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	WriteSuccess(w, h.response(e))
}

// HandleDelete DELETE /api/v1/sessions/{id}
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.ws.Close(id) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "session not found: "+id, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"id": id})
}

// HandleSettings PUT /api/v1/sessions/{id}/settings
func (h *SessionHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var req types.AIConfig
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	switch req.ProviderOrDefault() {
	case types.ProviderGemini, types.ProviderOpenAI:
	default:
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown provider: "+string(req.Provider), h.logger)
		return
	}
	e.SetAIConfig(mergeAIConfig(e.AIConfig(), req))
	WriteSuccess(w, h.response(e))
}

// =============================================================================
// 📡 WebSocket 事件流
// =============================================================================

// HandleEvents GET /api/v1/sessions/{id}/events?since=<seq>
// 先回放缓冲中 seq 大于 since 的事件，再持续推送新事件。
func (h *SessionHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ws.lookup(w, r, h.logger)
	if !ok {
		return
	}
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "since must be a non-negative integer", h.logger)
			return
		}
		since = v
	}

	// 长连接不受服务器读写超时限制
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		// Accept 已写出错误响应
		h.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub, replay, err := h.ws.Hub().Subscribe(e.ID(), since)
	if err != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer sub.Close()

	logger := h.logger.With(zap.String("session_id", e.ID()), zap.Uint64("subscription", sub.ID))
	logger.Debug("event stream opened", zap.Uint64("since", since), zap.Int("replay", len(replay)))

	// 客户端只读；CloseRead 在对端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())

	for _, ev := range replay {
		if err := h.write(ctx, conn, ev); err != nil {
			logger.Debug("event replay aborted", zap.Error(err))
			return
		}
	}

	ping := time.NewTicker(h.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				// 落后太多或会话已关闭；客户端可带 since 重连
				conn.Close(websocket.StatusTryAgainLater, "subscription closed")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				logger.Debug("event write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *SessionHandler) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
