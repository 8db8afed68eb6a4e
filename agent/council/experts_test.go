package council

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

const marineExperts = `{"experts":[
 {"name":"Coral","specialty":"Reef ecology","category":"researcher","color":"#FF7043","catchphrase":"Reefs are cities!","detailedPersona":"Talks about polyps a lot."},
 {"name":"Finn","specialty":"Shark behavior","category":"marine","color":"teal","catchphrase":"Jaws was slander.","detailedPersona":"Calm and precise."},
 {"name":"Abyssa","specialty":"Deep sea","category":"expert","color":"#1A237E","catchphrase":"Darker is better.","detailedPersona":"Whispers."},
 {"name":"Kelp","specialty":"Algae","category":"expert","color":"#2E7D32","catchphrase":"Photosynthesize!","detailedPersona":"Very green."}
]}`

func TestSummonExperts_MarineBiology(t *testing.T) {
	inv := newScript(marineExperts, `{"replies":[{"personaName":"Coral","text":"Reefs!"}]}`)
	e, _ := newTestEngine(t, inv)
	ctx := context.Background()

	candidates, err := e.SummonExperts(ctx, "Marine Biology", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 4)
	assert.Contains(t, inv.prompt(1), `"Marine Biology"`)
	assert.True(t, inv.calls[0].JSONMode)

	for _, c := range candidates {
		assert.True(t, c.Expert)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, types.CategoryResearcher, candidates[0].Category)
	assert.Equal(t, types.CategoryExpert, candidates[1].Category)
	assert.Equal(t, defaultExpertColor, candidates[1].Color)
	assert.Equal(t, 5, e.Roster().Len(), "candidates are not members until confirmed")

	added, err := e.ConfirmExperts([]string{candidates[0].ID, candidates[2].ID})
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, 7, e.Roster().Len())
	assert.Len(t, e.Roster().Experts(), 2)
	assert.Empty(t, e.Candidates())

	msg := lastMessage(e)
	assert.True(t, msg.IsSystem)
	assert.Contains(t, msg.Text, "Coral")
	assert.Contains(t, msg.Text, "Abyssa")

	// 专家优先发言，并带上详细人设
	require.NoError(t, e.Send(ctx, "tell me about reefs"))
	p := inv.prompt(2)
	assert.True(t, strings.Contains(p, "Talks about polyps a lot.") || strings.Contains(p, "Whispers."), p)
}

func TestSummonExperts_MalformedGivesEmptyList(t *testing.T) {
	e, _ := newTestEngine(t, newScript("the ocean is big"))
	candidates, err := e.SummonExperts(context.Background(), "Marine Biology", 4)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Len(t, e.Messages(), 1)
}

func TestSummonExperts_InvokeFailure(t *testing.T) {
	inv := newScript().failOn(1, &llm.Error{Code: llm.ErrQuotaExceeded, Message: "quota"})
	e, _ := newTestEngine(t, inv)
	candidates, err := e.SummonExperts(context.Background(), "Marine Biology", 4)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, QuotaFailureText, lastMessage(e).Text)
}

func TestSummonExperts_SkipsExistingAndLimits(t *testing.T) {
	raw := `[{"name":"Sparky","specialty":"dup"},{"name":"Coral","specialty":"a"},{"name":"coral","specialty":"b"},{"name":"","specialty":"c"},{"name":"Finn","specialty":"d"}]`
	e, _ := newTestEngine(t, newScript(raw))
	candidates, err := e.SummonExperts(context.Background(), "Marine Biology", 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Coral", candidates[0].Name)
}

func TestSummonExperts_EmptyTopic(t *testing.T) {
	e, _ := newTestEngine(t, newScript())
	_, err := e.SummonExperts(context.Background(), " ", 4)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestConfirmExperts_NoneSelected(t *testing.T) {
	e, _ := newTestEngine(t, newScript(marineExperts))
	_, err := e.SummonExperts(context.Background(), "Marine Biology", 4)
	require.NoError(t, err)

	added, err := e.ConfirmExperts(nil)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 5, e.Roster().Len())
	assert.Len(t, e.Messages(), 1)
}

func TestDistillReport(t *testing.T) {
	inv := newScript(sparkyReply, "```markdown\n# Reef Plan\n## Ideas\n💡 Key Insight: reefs matter\n---\n## Next Steps\n- dive\n```")
	e, _ := newTestEngine(t, inv)
	ctx := context.Background()

	_, err := e.DistillReport(ctx)
	assert.ErrorIs(t, err, ErrNothingToReport)

	require.NoError(t, e.Send(ctx, "plan a reef trip"))
	report, err := e.DistillReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Reef Plan", report.Title)
	assert.Equal(t, 2, report.MessageCount)
	assert.Contains(t, report.Markdown, "💡 Key Insight:")
	assert.NotContains(t, report.Markdown, "```")
	assert.False(t, inv.calls[1].JSONMode)
	assert.Contains(t, inv.prompt(2), "You: plan a reef trip")

	got, ok := e.Report()
	require.True(t, ok)
	assert.Equal(t, report.ID, got.ID)
}

func TestReportTitleFallback(t *testing.T) {
	assert.Equal(t, defaultReportTitle, reportTitle("no headings here"))
	assert.Equal(t, "Plan", reportTitle("intro\n### Plan\n"))
}

func TestSessions(t *testing.T) {
	inv := newScript()
	s := NewSessions(func(id string) *Engine {
		return NewEngine(id, inv, nil, nil, WithScheduler(&fakeScheduler{}))
	}, zaptest.NewLogger(t))
	a := s.Create()
	b := s.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, s.Len())

	got, ok := s.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)

	assert.True(t, s.Close(a.ID()))
	assert.False(t, s.Close(a.ID()))
	assert.ErrorIs(t, a.Send(context.Background(), "hi"), ErrClosed)
	assert.Equal(t, []string{b.ID()}, s.IDs())

	s.CloseAll()
	assert.Equal(t, 0, s.Len())
}
