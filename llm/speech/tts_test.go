package speech

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcouncil/llm"
)

func TestOpenAITTS_Synthesize(t *testing.T) {
	var got openAITTSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	p := NewOpenAITTSProvider(OpenAITTSConfig{BaseURL: srv.URL})
	resp, err := p.Synthesize(context.Background(), &TTSRequest{APIKey: "sk-test", Text: "Hello.", Voice: "nova", Speed: 9})
	require.NoError(t, err)

	assert.Equal(t, "tts-1", got.Model)
	assert.Equal(t, "nova", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)
	assert.Equal(t, 4.0, got.Speed)
	assert.Equal(t, []byte("ID3-audio"), resp.AudioData)
	assert.Equal(t, 6, resp.CharCount)
}

func TestOpenAITTS_QuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	p := NewOpenAITTSProvider(OpenAITTSConfig{BaseURL: srv.URL})
	_, err := p.Synthesize(context.Background(), &TTSRequest{APIKey: "k", Text: "x"})
	require.Error(t, err)
	assert.True(t, llm.IsQuotaExceeded(err))
}

func TestGeminiTTS_WrapsPCM(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-preview-tts:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cfg := body["generationConfig"].(map[string]any)
		assert.Equal(t, []any{"AUDIO"}, cfg["responseModalities"])
		voice := cfg["speechConfig"].(map[string]any)["voiceConfig"].(map[string]any)["prebuiltVoiceConfig"].(map[string]any)
		assert.Equal(t, "Leda", voice["voiceName"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"inlineData": map[string]any{
						"mimeType": "audio/L16;codec=pcm;rate=16000",
						"data":     base64.StdEncoding.EncodeToString(pcm),
					},
				}}},
			}},
		})
	}))
	defer srv.Close()

	p := NewGeminiTTSProvider(GeminiTTSConfig{BaseURL: srv.URL})
	resp, err := p.Synthesize(context.Background(), &TTSRequest{APIKey: "g-key", Text: "Hi", Voice: "nova"})
	require.NoError(t, err)

	assert.Equal(t, "wav", resp.Format)
	require.Len(t, resp.AudioData, 44+len(pcm))
	assert.Equal(t, "RIFF", string(resp.AudioData[:4]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(resp.AudioData[24:28]))
	assert.Equal(t, pcm, resp.AudioData[44:])
}

func TestGeminiTTS_NoAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := NewGeminiTTSProvider(GeminiTTSConfig{BaseURL: srv.URL}).
		Synthesize(context.Background(), &TTSRequest{APIKey: "k", Text: "x"})
	assert.Equal(t, llm.ErrUpstreamError, llm.CodeOf(err))
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 24000, sampleRate("audio/L16;codec=pcm"))
	assert.Equal(t, 22050, sampleRate("audio/L16; rate=22050"))
	assert.Equal(t, 24000, sampleRate("audio/L16;rate=abc"))
}
