package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/api"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🔈 语音 Handler
// =============================================================================

// SpeechHandler 文本分段与单段合成，供自行控制播放的客户端使用
type SpeechHandler struct {
	tts     speech.TTSProvider
	cfg     NarrationConfig
	timeout time.Duration
	logger  *zap.Logger
}

// NewSpeechHandler 创建语音处理器；tts 为 nil 时合成接口返回 503
func NewSpeechHandler(tts speech.TTSProvider, cfg NarrationConfig, logger *zap.Logger) *SpeechHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkLimit <= 0 {
		cfg.ChunkLimit = speech.DefaultChunkLimit
	}
	return &SpeechHandler{
		tts:     tts,
		cfg:     cfg,
		timeout: time.Minute,
		logger:  logger.With(zap.String("handler", "speech")),
	}
}

// HandleChunks POST /api/v1/speech/chunks
func (h *SpeechHandler) HandleChunks(w http.ResponseWriter, r *http.Request) {
	var req api.ChunkRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = h.cfg.ChunkLimit
	}
	chunks := speech.Chunk(speech.StripMarkup(req.Text), limit)
	if chunks == nil {
		chunks = []string{}
	}
	WriteSuccess(w, api.ChunkResponse{Chunks: chunks, Count: len(chunks)})
}

// HandleSynthesize POST /api/v1/speech/synthesize
// 响应体为音频本身，Content-Type 取决于格式。
func (h *SpeechHandler) HandleSynthesize(w http.ResponseWriter, r *http.Request) {
	if h.tts == nil {
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "speech synthesis is disabled", h.logger)
		return
	}
	var req api.SynthesizeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "text is required", h.logger)
		return
	}
	if utf8.RuneCountInString(text) > h.cfg.ChunkLimit {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"text exceeds chunk limit of "+strconv.Itoa(h.cfg.ChunkLimit)+" characters; split it with /api/v1/speech/chunks", h.logger)
		return
	}
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = h.cfg.APIKey
	}
	format := req.Format
	if format == "" {
		format = h.cfg.Format
	}
	profile := speech.ProfileFor(req.Category)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	resp, err := h.tts.Synthesize(ctx, &speech.TTSRequest{
		APIKey:         apiKey,
		Text:           text,
		Model:          h.cfg.Model,
		Voice:          profile.Voice,
		Speed:          profile.Rate,
		ResponseFormat: format,
	})
	if err != nil {
		WriteDomainError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", audioContentType(resp.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.AudioData)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp.AudioData); err != nil {
		h.logger.Debug("failed to write audio", zap.Error(err))
	}
}

func audioContentType(format string) string {
	switch strings.ToLower(format) {
	case "mp3", "":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	case "opus":
		return "audio/ogg"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
