package council

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentcouncil/agent/persona"
	"github.com/BaSui01/agentcouncil/types"
)

func TestSeededSelector_Deterministic(t *testing.T) {
	roster := persona.DefaultPersonas()
	a, b := NewSeededSelector(7), NewSeededSelector(7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.SelectSpeakers(roster, SpeakerRange{Min: 2, Max: 4}), b.SelectSpeakers(roster, SpeakerRange{Min: 2, Max: 4}))
	}
}

func TestSeededSelector_Empty(t *testing.T) {
	assert.Nil(t, NewSeededSelector(1).SelectSpeakers(nil, SpeakerRange{Min: 1, Max: 2}))
}

// fixedSelector 总是返回名册中的指定角色
type fixedSelector struct{ names []string }

func (f fixedSelector) SelectSpeakers(roster []types.Persona, _ SpeakerRange) []types.Persona {
	var out []types.Persona
	for _, name := range f.names {
		for _, p := range roster {
			if p.Name == name {
				out = append(out, p)
			}
		}
	}
	return out
}

func TestEngine_UsesSelector(t *testing.T) {
	inv := newScript(`{"replies":[{"personaName":"Nobody","text":"hm"}]}`)
	e, _ := newTestEngine(t, inv, WithSelector(fixedSelector{names: []string{"Nova"}}))

	require.NoError(t, e.Send(context.Background(), "hi"))
	// 未知发言人归到本回合的第一位发言人
	assert.Equal(t, "Nova", lastMessage(e).SenderName)
}

func TestSelectSpeakers_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		roster := persona.DefaultPersonas()
		nExperts := rapid.IntRange(0, 3).Draw(t, "experts")
		for i := 0; i < nExperts; i++ {
			roster = append(roster, types.Persona{
				ID:       string(rune('a' + i)),
				Name:     "Expert" + string(rune('A'+i)),
				Category: types.CategoryExpert,
				Expert:   true,
			})
		}
		lo := rapid.IntRange(1, 4).Draw(t, "min")
		hi := rapid.IntRange(lo, 6).Draw(t, "max")
		seed := rapid.Uint64().Draw(t, "seed")

		got := NewSeededSelector(seed).SelectSpeakers(roster, SpeakerRange{Min: lo, Max: hi})

		if len(got) < min(lo, len(roster)) || len(got) > min(hi, len(roster)) {
			t.Fatalf("picked %d speakers for range [%d,%d]", len(got), lo, hi)
		}
		seen := map[string]bool{}
		regularSeen := false
		for _, p := range got {
			if seen[p.ID] {
				t.Fatalf("duplicate speaker %s", p.Name)
			}
			seen[p.ID] = true
			if !p.Expert {
				regularSeen = true
			} else if regularSeen {
				t.Fatalf("expert %s after a regular speaker", p.Name)
			}
		}
	})
}
