package openai

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
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o"
)

// Provider 实现 llm.Provider
type Provider struct {
	cfg    providers.OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewProvider 创建 OpenAI Provider
func NewProvider(cfg providers.OpenAIConfig, logger *zap.Logger) *Provider {
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
		logger: logger.With(zap.String("component", "openai_provider")),
	}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) DefaultModel() string {
	if p.cfg.Model != "" {
		return p.cfg.Model
	}
	return defaultModel
}

// --- Chat Completions ---

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string 或 []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// --- Responses API ---

type responsesTool struct {
	Type string `json:"type"`
}

type responsesText struct {
	Format responseFormat `json:"format"`
}

type responsesRequest struct {
	Model string          `json:"model"`
	Input string          `json:"input"`
	Tools []responsesTool `json:"tools,omitempty"`
	Text  *responsesText  `json:"text,omitempty"`
}

type annotation struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

type responsesResponse struct {
	Model  string `json:"model"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type        string       `json:"type"`
			Text        string       `json:"text"`
			Annotations []annotation `json:"annotations,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// Generate 根据是否需要联网搜索选择调用路径
func (p *Provider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = p.cfg.APIKey
	}
	if apiKey == "" {
		return nil, llm.MissingCredential(p.Name())
	}
	model := req.Model
	if model == "" {
		model = p.DefaultModel()
	}
	if req.WebSearch {
		return p.generateWithSearch(ctx, req, apiKey, model)
	}
	return p.generateChat(ctx, req, apiKey, model)
}

func (p *Provider) generateChat(ctx context.Context, req *llm.GenerateRequest, apiKey, model string) (*llm.GenerateResponse, error) {
	msgs := []chatMessage{{Role: "system", Content: req.Prompt}}
	if req.Attachment != nil && len(req.Attachment.Data) > 0 {
		dataURI := fmt.Sprintf("data:%s;base64,%s", req.Attachment.MimeType, base64.StdEncoding.EncodeToString(req.Attachment.Data))
		msgs = append(msgs, chatMessage{Role: "user", Content: []contentPart{
			{Type: "text", Text: "Attached file:"},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
		}})
	}
	body := chatRequest{Model: model, Messages: msgs}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var out chatResponse
	if err := p.post(ctx, "/v1/chat/completions", apiKey, body, &out); err != nil {
		return nil, err
	}
	res := &llm.GenerateResponse{Model: out.Model}
	if len(out.Choices) > 0 {
		res.Text = out.Choices[0].Message.Content
	}
	return res, nil
}

func (p *Provider) generateWithSearch(ctx context.Context, req *llm.GenerateRequest, apiKey, model string) (*llm.GenerateResponse, error) {
	if p.cfg.SearchModel != "" {
		model = p.cfg.SearchModel
	}
	body := responsesRequest{
		Model: model,
		Input: req.Prompt,
		Tools: []responsesTool{{Type: "web_search_preview"}},
	}
	if req.JSONMode {
		body.Text = &responsesText{Format: responseFormat{Type: "json_object"}}
	}

	var out responsesResponse
	if err := p.post(ctx, "/v1/responses", apiKey, body, &out); err != nil {
		return nil, err
	}

	res := &llm.GenerateResponse{Model: out.Model}
	var sb strings.Builder
	seen := make(map[string]struct{})
	for _, item := range out.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type != "output_text" {
				continue
			}
			sb.WriteString(c.Text)
			for _, a := range c.Annotations {
				if a.Type != "url_citation" || a.URL == "" {
					continue
				}
				if _, dup := seen[a.URL]; dup {
					continue
				}
				seen[a.URL] = struct{}{}
				res.Sources = append(res.Sources, llm.Source{Title: a.Title, URL: a.URL})
			}
		}
	}
	res.Text = sb.String()
	return res, nil
}

func (p *Provider) post(ctx context.Context, path, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Provider: p.Name()}
	}
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.Organization != "" {
		httpReq.Header.Set("OpenAI-Organization", p.cfg.Organization)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return providers.TransportError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.logger.Debug("request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.DecodeError(err, p.Name())
	}
	return nil
}
