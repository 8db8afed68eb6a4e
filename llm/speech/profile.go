package speech

import "github.com/BaSui01/agentcouncil/types"

// VoiceProfile 角色化的声音参数。Rate/Pitch 以 1.0 为基准，
// 远程合成只使用 Voice 与 Rate，本地朗读两者都用。
type VoiceProfile struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

var categoryProfiles = map[types.Category]VoiceProfile{
	types.CategoryCoder:      {Voice: "echo", Rate: 1.1, Pitch: 1.0},
	types.CategoryNews:       {Voice: "nova", Rate: 1.15, Pitch: 1.05},
	types.CategoryWriter:     {Voice: "fable", Rate: 0.9, Pitch: 1.1},
	types.CategoryDesigner:   {Voice: "shimmer", Rate: 1.0, Pitch: 1.25},
	types.CategoryResearcher: {Voice: "onyx", Rate: 0.95, Pitch: 0.9},
	types.CategoryAssistant:  {Voice: "alloy", Rate: 1.0, Pitch: 1.0},
	types.CategoryExpert:     {Voice: "onyx", Rate: 0.9, Pitch: 0.85},
}

// DefaultProfile 未知类别时使用
var DefaultProfile = VoiceProfile{Voice: "alloy", Rate: 1.0, Pitch: 1.0}

// ProfileFor 返回类别对应的声音参数
func ProfileFor(c types.Category) VoiceProfile {
	if p, ok := categoryProfiles[c]; ok {
		return p
	}
	return DefaultProfile
}
