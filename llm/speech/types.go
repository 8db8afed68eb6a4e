package speech

import (
	"context"
	"time"
)

// TTSRequest 单个分段的合成请求
type TTSRequest struct {
	APIKey         string  `json:"-"`
	Text           string  `json:"text"`
	Model          string  `json:"model,omitempty"`
	Voice          string  `json:"voice,omitempty"`
	Speed          float64 `json:"speed,omitempty"`           // 0.25-4.0
	ResponseFormat string  `json:"response_format,omitempty"` // mp3, opus, wav, pcm
}

// TTSResponse 合成结果，音频已完整读入内存以便按下标缓存
type TTSResponse struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	AudioData []byte    `json:"-"`
	Format    string    `json:"format"`
	CharCount int       `json:"char_count"`
	CreatedAt time.Time `json:"created_at"`
}

// TTSProvider 文本转语音接口
type TTSProvider interface {
	Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	Name() string
}

// Voice 可用声音
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender,omitempty"` // male, female, neutral
	Description string `json:"description,omitempty"`
}

// Observer 接收每个分段的合成结果
type Observer interface {
	ObserveSynthesis(provider, status string, duration time.Duration)
}
