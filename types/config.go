package types

import "strings"

// ProviderName 模型提供方
type ProviderName string

const (
	ProviderGemini ProviderName = "gemini" // 默认提供方，允许使用隐式密钥
	ProviderOpenAI ProviderName = "openai"
)

// AIConfig 每次模型调用读取的会话级配置
type AIConfig struct {
	Provider     ProviderName `json:"provider" yaml:"provider"`
	APIKey       string       `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model        string       `json:"model,omitempty" yaml:"model,omitempty"`
	SearchAPIKey string       `json:"search_api_key,omitempty" yaml:"search_api_key,omitempty"`
}

// ProviderOrDefault returns the configured provider, falling back to gemini.
func (c AIConfig) ProviderOrDefault() ProviderName {
	p := ProviderName(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if p == "" {
		return ProviderGemini
	}
	return p
}

// Redacted 返回去除密钥后的副本，用于日志与 API 输出
func (c AIConfig) Redacted() AIConfig {
	out := c
	if out.APIKey != "" {
		out.APIKey = "***"
	}
	if out.SearchAPIKey != "" {
		out.SearchAPIKey = "***"
	}
	return out
}
