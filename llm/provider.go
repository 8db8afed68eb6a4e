package llm

import "context"

// Attachment 随提示词发送的文件或图片
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Source 联网搜索返回的引用
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// GenerateRequest 是下发给具体 Provider 的单次请求
type GenerateRequest struct {
	APIKey     string
	Model      string
	Prompt     string
	Attachment *Attachment
	JSONMode   bool
	WebSearch  bool
}

// GenerateResponse 是 Provider 的统一响应
type GenerateResponse struct {
	Text    string
	Sources []Source
	Model   string
}

// Provider 由 llm/providers 下的服务商实现
type Provider interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}
