package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, ErrUpstreamError, GetErrorCode(wrapped))
	assert.True(t, errors.Is(wrapped, root))
	assert.Contains(t, err.Error(), "upstream failed")
	assert.Equal(t, ErrorCode(""), GetErrorCode(root))
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"coder", CategoryCoder, false},
		{" News ", CategoryNews, false},
		{"EXPERT", CategoryExpert, false},
		{"wizard", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, string(tt.want), string(got))
		})
	}
}

func TestAIConfig_ProviderOrDefaultAndRedacted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ProviderGemini, AIConfig{}.ProviderOrDefault())
	assert.Equal(t, ProviderOpenAI, AIConfig{Provider: " OpenAI "}.ProviderOrDefault())

	cfg := AIConfig{Provider: ProviderOpenAI, APIKey: "sk-1", SearchAPIKey: "serp"}
	red := cfg.Redacted()
	assert.Equal(t, "***", red.APIKey)
	assert.Equal(t, "***", red.SearchAPIKey)
	assert.Equal(t, "sk-1", cfg.APIKey)
}

func TestWorkflowLog_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &WorkflowLog{
		ID:     "log-1",
		Steps:  []StepSummary{{PersonaName: "Zetta", Role: "RESEARCHER", Status: "done"}},
		Output: &RunOutput{Type: OutputText, Content: "hello"},
	}
	cp := orig.Clone()
	cp.Steps[0].Status = "error"
	cp.Output.Content = "changed"

	assert.Equal(t, "done", orig.Steps[0].Status)
	assert.Equal(t, "hello", orig.Output.Content)
	assert.Nil(t, (*WorkflowLog)(nil).Clone())
}

func TestAvatarFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://api.dicebear.com/7.x/bottts/svg?seed=Sea+Otter", AvatarFor("bottts", "Sea Otter"))
}
