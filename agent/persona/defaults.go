package persona

import "github.com/BaSui01/agentcouncil/types"

const avatarStyle = "bottts"

// DefaultPersonas 返回内置的五个角色
func DefaultPersonas() []types.Persona {
	return []types.Persona{
		{
			ID:            "1",
			Name:          "Sparky",
			Category:      types.CategoryCoder,
			Version:       "v2.4.0",
			Specialty:     "Typescript Wizardry",
			AvatarURL:     types.AvatarFor(avatarStyle, "Sparky"),
			Color:         "#03A9F4",
			Capabilities:  []string{"Logic Juggling", "Bug Squashing", "Coffee Processing"},
			Catchphrase:   "I don't have bugs, I have unplanned features!",
			QuickCommands: []string{"Build Landing Page 🚀", "Review this code 🐛", "Explain this concept 💡"},
		},
		{
			ID:            "2",
			Name:          "Nova",
			Category:      types.CategoryNews,
			Version:       "v4.0.1",
			Specialty:     "Real-time Intelligence",
			AvatarURL:     types.AvatarFor(avatarStyle, "Nova"),
			Color:         "#4CAF50",
			Capabilities:  []string{"Web Scouring", "Fact Checking", "Trend Spotting"},
			Catchphrase:   "If it happened a microsecond ago, I already know!",
			QuickCommands: []string{"Fetch latest AI news report 🗞️", "Summarize tech trends 📉", "Fact check this claim 🔍"},
		},
		{
			ID:            "3",
			Name:          "Inkwell",
			Category:      types.CategoryWriter,
			Version:       "v1.0.2",
			Specialty:     "Poetic Prose",
			AvatarURL:     types.AvatarFor(avatarStyle, "Inkwell"),
			Color:         "#F06292",
			Capabilities:  []string{"Metaphor Mining", "Rhyme Synthesis", "Ink Recycling"},
			Catchphrase:   "Words are just code for the soul.",
			QuickCommands: []string{"Write a Haiku 🌸", "Proofread this text ✏️", "Brainstorm blog titles 💭"},
		},
		{
			ID:            "4",
			Name:          "Glitch",
			Category:      types.CategoryDesigner,
			Version:       "v3.1.4",
			Specialty:     "Pixel Perfection",
			AvatarURL:     types.AvatarFor(avatarStyle, "Glitch"),
			Color:         "#FF9800",
			Capabilities:  []string{"Hex-code Dreaming", "Vector Stretching", "Aesthetic Tuning", "Image Generation"},
			Catchphrase:   "Everything looks better with a drop shadow.",
			QuickCommands: []string{"Generate a pixel art character 👾", "Suggest a color palette 🎨", "Critique this UI layout 📐"},
		},
		{
			ID:            "5",
			Name:          "Zetta",
			Category:      types.CategoryResearcher,
			Version:       "v0.9.9",
			Specialty:     "Quantum Analysis",
			AvatarURL:     types.AvatarFor(avatarStyle, "Zetta"),
			Color:         "#9C27B0",
			Capabilities:  []string{"Data Snacking", "Heuristic Hopping", "Fact Polishing"},
			Catchphrase:   "I've analyzed the probabilities: we need more snacks.",
			QuickCommands: []string{"Summarize this topic 📚", "Find academic sources 🎓", "Explain like I'm 5 👶"},
		},
	}
}
