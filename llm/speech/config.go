package speech

import "time"

// OpenAITTSConfig 配置 OpenAI TTS
type OpenAITTSConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // tts-1, tts-1-hd
	Voice   string        `json:"voice,omitempty" yaml:"voice,omitempty"` // alloy, echo, fable, onyx, nova, shimmer
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GeminiTTSConfig 配置 Gemini TTS
type GeminiTTSConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Voice   string        `json:"voice,omitempty" yaml:"voice,omitempty"` // Kore, Puck, Charon ...
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAITTSConfig 返回默认 OpenAI TTS 配置
func DefaultOpenAITTSConfig() OpenAITTSConfig {
	return OpenAITTSConfig{
		BaseURL: "https://api.openai.com",
		Model:   "tts-1",
		Voice:   "alloy",
		Timeout: 60 * time.Second,
	}
}

// DefaultGeminiTTSConfig 返回默认 Gemini TTS 配置
func DefaultGeminiTTSConfig() GeminiTTSConfig {
	return GeminiTTSConfig{
		BaseURL: "https://generativelanguage.googleapis.com",
		Model:   "gemini-2.5-flash-preview-tts",
		Voice:   "Kore",
		Timeout: 60 * time.Second,
	}
}
