package council

import (
	"math/rand/v2"
	"sync"

	"github.com/BaSui01/agentcouncil/types"
)

// SpeakerRange 每回合发言人数范围（含两端）
type SpeakerRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// SpeakerSelector 为一个回合挑选发言人
type SpeakerSelector interface {
	SelectSpeakers(roster []types.Persona, r SpeakerRange) []types.Persona
}

// SeededSelector 随机挑选发言人：召唤的专家优先，其余角色随机补足。
// 种子相同时挑选序列相同。
type SeededSelector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededSelector 固定种子的选择器
func NewSeededSelector(seed uint64) *SeededSelector {
	return &SeededSelector{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func newRandomSelector() *SeededSelector {
	return &SeededSelector{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (s *SeededSelector) SelectSpeakers(roster []types.Persona, r SpeakerRange) []types.Persona {
	if len(roster) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lo, hi := max(1, r.Min), max(1, r.Max)
	if hi < lo {
		hi = lo
	}
	n := min(lo+s.rng.IntN(hi-lo+1), len(roster))

	var experts, regulars []types.Persona
	for _, p := range roster {
		if p.Expert {
			experts = append(experts, p)
		} else {
			regulars = append(regulars, p)
		}
	}
	s.rng.Shuffle(len(experts), func(i, j int) { experts[i], experts[j] = experts[j], experts[i] })
	s.rng.Shuffle(len(regulars), func(i, j int) { regulars[i], regulars[j] = regulars[j], regulars[i] })

	return append(experts, regulars...)[:n]
}
