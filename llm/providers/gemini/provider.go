package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcouncil/internal/tlsutil"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/providers"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-3-flash-preview"
)

// Provider 实现 llm.Provider
type Provider struct {
	cfg    providers.GeminiConfig
	client *http.Client
	logger *zap.Logger
}

// NewProvider 创建 Gemini Provider
func NewProvider(cfg providers.GeminiConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.NewClient(timeout),
		logger: logger.With(zap.String("component", "gemini_provider")),
	}
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) DefaultModel() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return defaultModel
}

// Gemini 消息结构
type content struct {
	Role  string `json:"role,omitempty"` // user, model
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type tool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type request struct {
	Contents         []content         `json:"contents"`
	Tools            []tool            `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type groundingChunk struct {
	Web *struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	} `json:"web,omitempty"`
}

type candidate struct {
	Content           content `json:"content"`
	FinishReason      string  `json:"finishReason,omitempty"`
	GroundingMetadata *struct {
		GroundingChunks []groundingChunk `json:"groundingChunks,omitempty"`
	} `json:"groundingMetadata,omitempty"`
}

type response struct {
	Candidates     []candidate `json:"candidates"`
	ModelVersion   string      `json:"modelVersion,omitempty"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

func buildRequest(req *llm.GenerateRequest) request {
	user := content{Role: "user", Parts: []part{{Text: req.Prompt}}}
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		user.Parts = append(user.Parts, part{InlineData: &inlineData{
			MimeType: req.Attachment.MimeType,
			Data:     base64.StdEncoding.EncodeToString(req.Attachment.Data),
		}})
	}
	body := request{Contents: []content{user}}
	if req.WebSearch {
		body.Tools = []tool{{GoogleSearch: &struct{}{}}}
	}
	if req.JSONMode {
		body.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	return body
}

// Generate 发起一次 generateContent 调用
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = p.cfg.APIKey
	}
	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}

	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Provider: p.Name()}
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Debug("generateContent failed",
			zap.Int("status", resp.StatusCode),
			zap.String("model", model),
			zap.Bool("web_search", req.WebSearch))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}
	if len(out.Candidates) == 0 && out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, &llm.Error{
			Code:       llm.ErrForbidden,
			Message:    "prompt blocked: " + out.PromptFeedback.BlockReason,
			HTTPStatus: http.StatusForbidden,
			Provider:   p.Name(),
		}
	}
	return toGenerateResponse(out, model), nil
}

func toGenerateResponse(r response, model string) *llm.GenerateResponse {
	res := &llm.GenerateResponse{Model: model}
	if r.ModelVersion != "" {
		res.Model = r.ModelVersion
	}
	if len(r.Candidates) == 0 {
		return res
	}
	c := r.Candidates[0]

	var sb strings.Builder
	for _, pt := range c.Content.Parts {
		sb.WriteString(pt.Text)
	}
	res.Text = sb.String()

	if c.GroundingMetadata != nil {
		seen := make(map[string]struct{})
		for _, gc := range c.GroundingMetadata.GroundingChunks {
			if gc.Web == nil || gc.Web.URI == "" {
				continue
			}
			if _, dup := seen[gc.Web.URI]; dup {
				continue
			}
			seen[gc.Web.URI] = struct{}{}
			res.Sources = append(res.Sources, llm.Source{Title: gc.Web.Title, URL: gc.Web.URI})
		}
	}
	return res
}
