package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BaSui01/agentcouncil/internal/tlsutil"
	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/llm/providers"
)

// OpenAI 声音名到 Gemini 预置声音的映射，角色配置只需写一套声音名
var geminiVoiceFor = map[string]string{
	"alloy":   "Kore",
	"echo":    "Puck",
	"fable":   "Aoede",
	"onyx":    "Charon",
	"nova":    "Leda",
	"shimmer": "Zephyr",
}

// GeminiTTSProvider 通过 generateContent 的 AUDIO 模态合成语音，输出 WAV
type GeminiTTSProvider struct {
	cfg    GeminiTTSConfig
	client *http.Client
}

func NewGeminiTTSProvider(cfg GeminiTTSConfig) *GeminiTTSProvider {
	def := DefaultGeminiTTSConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Voice == "" {
		cfg.Voice = def.Voice
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &GeminiTTSProvider{cfg: cfg, client: tlsutil.NewClient(cfg.Timeout)}
}

func (p *GeminiTTSProvider) Name() string { return "gemini-tts" }

type geminiTTSRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       struct {
			VoiceConfig struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

type geminiTTSResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiTTSProvider) voice(requested string) string {
	if requested == "" {
		return p.cfg.Voice
	}
	if v, ok := geminiVoiceFor[strings.ToLower(requested)]; ok {
		return v
	}
	return requested
}

// Synthesize converts one chunk of text to WAV audio.
func (p *GeminiTTSProvider) Synthesize(ctx context.Context, req *TTSRequest) (*TTSResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	var body geminiTTSRequest
	body.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	body.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: req.Text}}
	body.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = p.voice(req.Voice)

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}

	var out geminiTTSResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, providers.DecodeError(err, p.Name())
	}
	for _, c := range out.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, providers.DecodeError(err, p.Name())
			}
			return &TTSResponse{
				Provider:  p.Name(),
				Model:     model,
				AudioData: wrapPCM(pcm, sampleRate(part.InlineData.MimeType)),
				Format:    "wav",
				CharCount: len([]rune(req.Text)),
				CreatedAt: time.Now(),
			}, nil
		}
	}
	return nil, &llm.Error{Code: llm.ErrUpstreamError, Message: "no audio in response", HTTPStatus: http.StatusBadGateway, Provider: p.Name()}
}

// ListVoices returns a subset of the Gemini prebuilt voices.
func (p *GeminiTTSProvider) ListVoices(context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "Kore", Name: "Kore", Description: "Firm"},
		{ID: "Puck", Name: "Puck", Description: "Upbeat"},
		{ID: "Aoede", Name: "Aoede", Description: "Breezy"},
		{ID: "Charon", Name: "Charon", Description: "Informative"},
		{ID: "Leda", Name: "Leda", Description: "Youthful"},
		{ID: "Zephyr", Name: "Zephyr", Description: "Bright"},
	}, nil
}

// sampleRate 解析 audio/L16;codec=pcm;rate=24000
func sampleRate(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && k == "rate" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return 24000
}

// wrapPCM 为 16-bit 单声道 PCM 加上 WAV 头
func wrapPCM(pcm []byte, rate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	var buf bytes.Buffer
	byteRate := rate * channels * bitsPerSample / 8
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVEfmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
