package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type reply struct {
	PersonaName string `json:"personaName"`
	Text        string `json:"text"`
}

func TestCleanOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"json fence", "```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"html fence", "```html\n<div>x</div>\n```", "<div>x</div>"},
		{"bare fence", "```\ncode\n```", "code"},
		{"surrounding space", "  \n text \n", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanOutput(tt.in))
		})
	}
}

func TestDecodeJSON_UnwrapsFirstArrayMember(t *testing.T) {
	t.Parallel()

	text := `{"meta":{"n":2},"replies":[{"personaName":"Nova","text":"hi"}],"other":[]}`
	var got []reply
	require.NoError(t, DecodeJSON(text, &got))
	assert.Equal(t, []reply{{PersonaName: "Nova", Text: "hi"}}, got)
}

func TestDecodeJSON_StructTargetIsNotUnwrapped(t *testing.T) {
	t.Parallel()

	var got struct {
		Steps []struct {
			Label string `json:"label"`
		} `json:"steps"`
	}
	require.NoError(t, DecodeJSON("```json\n{\"steps\":[{\"label\":\"Fetch\"}]}\n```", &got))
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "Fetch", got.Steps[0].Label)
}

func TestDecodeJSON_ExtractsFromProse(t *testing.T) {
	t.Parallel()

	var got []reply
	require.NoError(t, DecodeJSON(`Sure! Here you go: [{"personaName":"Zetta","text":"snacks"}] enjoy`, &got))
	assert.Equal(t, "Zetta", got[0].PersonaName)
}

func TestDecodeJSON_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not json at all", `{"replies": "nope"}`, `[{"personaName": }]`} {
		var got []reply
		err := DecodeJSON(in, &got)
		require.Error(t, err, in)
		assert.True(t, IsMalformedResponse(err), in)
	}
}

func TestDecodeJSON_WrapperProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "n")
		items := make([]reply, n)
		for i := range items {
			items[i] = reply{
				PersonaName: rapid.StringMatching(`[A-Za-z]{1,10}`).Draw(rt, "name"),
				Text:        rapid.String().Draw(rt, "text"),
			}
		}
		key := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "key")

		wrapped, err := json.Marshal(map[string]any{key: items})
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}

		var got []reply
		if err := DecodeJSON(string(wrapped), &got); err != nil {
			rt.Fatalf("decode %s: %v", wrapped, err)
		}
		if len(got) != len(items) {
			rt.Fatalf("got %d items, want %d", len(got), len(items))
		}
		for i := range items {
			if got[i] != items[i] {
				rt.Fatalf("item %d mismatch: %+v vs %+v", i, got[i], items[i])
			}
		}
	})
}

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsQuotaExceeded(&Error{Code: ErrRateLimited}))
	assert.True(t, IsQuotaExceeded(&Error{Code: ErrQuotaExceeded}))
	assert.False(t, IsQuotaExceeded(&Error{Code: ErrUpstreamError}))
	assert.True(t, IsMissingCredential(MissingCredential("openai")))
	assert.Equal(t, "missing openai API key", MissingCredential("openai").Error())
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}
