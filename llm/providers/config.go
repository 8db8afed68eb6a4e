package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
// 密钥按调用传入（来自 AIConfig），此处的 APIKey 仅作为 CLI 等场景的缺省值。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key" env:"API_KEY"`
	BaseURL string        `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty" env:"MODEL"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// GeminiConfig Gemini Provider 配置
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	TTSModel           string `json:"tts_model,omitempty" yaml:"tts_model,omitempty" env:"TTS_MODEL"`
}

// OpenAIConfig OpenAI Provider 配置
type OpenAIConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Organization       string `json:"organization,omitempty" yaml:"organization,omitempty" env:"ORGANIZATION"`
	SearchModel        string `json:"search_model,omitempty" yaml:"search_model,omitempty" env:"SEARCH_MODEL"` // Responses API 联网搜索使用的模型
}
