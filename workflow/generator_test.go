package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

func TestGenerator_Plan(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		err      error
		want     []StepSpec
		fallback bool
	}{
		{
			name:  "wrapped steps",
			reply: `{"steps":[{"agentType":"news","label":"Fetch News","instructions":"Find AI news."},{"agentType":"writer","label":"Summarize","instructions":"Summarize it."}]}`,
			want: []StepSpec{
				{Category: types.CategoryNews, Label: "Fetch News", Instructions: "Find AI news."},
				{Category: types.CategoryWriter, Label: "Summarize", Instructions: "Summarize it."},
			},
		},
		{
			name:  "bare array in fences",
			reply: "```json\n[{\"agentType\":\"Coder\",\"label\":\"Build\",\"instructions\":\"Code it.\"}]\n```",
			want:  []StepSpec{{Category: types.CategoryCoder, Label: "Build", Instructions: "Code it."}},
		},
		{
			name:  "unknown category and missing label",
			reply: `{"steps":[{"agentType":"wizard","instructions":"Do magic."}]}`,
			want:  []StepSpec{{Category: types.CategoryAssistant, Label: "Step 1", Instructions: "Do magic."}},
		},
		{
			name:     "malformed",
			reply:    "I cannot do that",
			want:     FallbackSteps("goal"),
			fallback: true,
		},
		{
			name:     "empty steps",
			reply:    `{"steps":[]}`,
			want:     FallbackSteps("goal"),
			fallback: true,
		},
		{
			name:     "invoke error",
			err:      errors.New("boom"),
			want:     FallbackSteps("goal"),
			fallback: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &scriptedInvoker{reply: func(int, llm.Invocation) string { return tt.reply }}
			if tt.err != nil {
				inv.failAt, inv.failErr = 1, tt.err
			}
			steps, fallback := NewGenerator(inv, nil).Plan(context.Background(), types.AIConfig{}, "goal", testRoster)
			assert.Equal(t, tt.want, steps)
			assert.Equal(t, tt.fallback, fallback)
			require.Len(t, inv.calls, 1)
			assert.True(t, inv.calls[0].JSONMode)
		})
	}
}

func TestGenerator_CapsSteps(t *testing.T) {
	reply := `{"steps":[` +
		`{"agentType":"news","label":"1"},{"agentType":"news","label":"2"},{"agentType":"news","label":"3"},` +
		`{"agentType":"news","label":"4"},{"agentType":"news","label":"5"},{"agentType":"news","label":"6"},` +
		`{"agentType":"news","label":"7"}]}`
	inv := &scriptedInvoker{reply: func(int, llm.Invocation) string { return reply }}
	steps, fallback := NewGenerator(inv, nil).Plan(context.Background(), types.AIConfig{}, "goal", nil)
	assert.False(t, fallback)
	assert.Len(t, steps, MaxGeneratedSteps)
}

func TestGenerator_PromptListsRoster(t *testing.T) {
	p := generationPrompt("Plan a launch", testRoster)
	assert.Contains(t, p, `Design a sequential workflow JSON for request: "Plan a launch"`)
	assert.Contains(t, p, "- Nova (Type: news)")
	assert.Contains(t, p, "Keep it under 5 steps.")
}

func TestBoard_GenerateBuildsLinearChain(t *testing.T) {
	inv := &scriptedInvoker{reply: func(int, llm.Invocation) string { return "garbage" }}
	b := newTestBoard(t, inv, nil)

	g, fallback, err := b.Generate(context.Background(), types.AIConfig{}, "Write a poem")
	require.NoError(t, err)
	assert.True(t, fallback)

	steps := g.Steps(DefaultMaxHops)
	require.Len(t, steps, 2)
	assert.Equal(t, "Analyze Request", steps[0].Label)
	assert.Equal(t, "Analyze this request: Write a poem", steps[0].Instructions)
	assert.Equal(t, "Draft Response", steps[1].Label)
	assert.Equal(t, "Write a poem", g.Trigger().Output)
	assert.Equal(t, KindTerminal, g.Next(steps[1].ID).Kind)
}

func TestTemplates(t *testing.T) {
	ids := []string{}
	for _, tpl := range Templates() {
		ids = append(ids, tpl.ID)
	}
	assert.Equal(t, []string{"code-factory", "creative-suite", "news-briefing", "premium-blog"}, ids)

	b := newTestBoard(t, &scriptedInvoker{}, nil)
	_, err := b.Run(context.Background(), types.AIConfig{}, "warm up")
	require.NoError(t, err)

	g, err := b.LoadTemplate("premium-blog", "")
	require.NoError(t, err)
	assert.Equal(t, "💎 Premium Blog", g.Name)
	assert.Equal(t, DefaultTemplateSeed, g.Trigger().Output)
	labels := []string{}
	for _, s := range g.Steps(DefaultMaxHops) {
		labels = append(labels, s.Label)
		assert.Equal(t, StatusIdle, s.Status)
		assert.Empty(t, s.Output)
	}
	assert.Equal(t, []string{"SEO Research", "Outline", "Drafting", "Formatting"}, labels)

	_, err = b.LoadTemplate("nope", "")
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestChainBuilder_Validation(t *testing.T) {
	_, err := NewChainBuilder("empty").Build()
	assert.Error(t, err)

	_, err = NewChainBuilder("bad").Step("wizard", "x", "y").Build()
	assert.Error(t, err)

	g, err := NewChainBuilder("ok").Step(types.CategoryWriter, "W", "").End("Done").Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "step-0", "end"}, []string{g.Nodes[0].ID, g.Nodes[1].ID, g.Nodes[2].ID})
	assert.Equal(t, DefaultInstructions, g.Node("step-0").Instructions)
	assert.Equal(t, "Done", g.Node("end").Label)
}
