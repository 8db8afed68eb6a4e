package workflow

import (
	"fmt"
	"sort"

	"github.com/BaSui01/agentcouncil/types"
)

// DefaultTemplateSeed 加载模板且未提供种子时 trigger 的输出
const DefaultTemplateSeed = "General Topic"

// Template 内置的固定链路
type Template struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Steps []StepSpec `json:"steps"`
}

var templates = map[string]Template{
	"news-briefing": {
		ID:   "news-briefing",
		Name: "📰 News Briefing",
		Steps: []StepSpec{
			{Category: types.CategoryNews, Label: "Fetch Trends",
				Instructions: "Search for the top 3 trending news stories related to the input topic. Provide a concise summary for each."},
			{Category: types.CategoryWriter, Label: "Digest",
				Instructions: `Rewrite the provided news summaries into a fun, easy-to-read "Morning Digest" format. Use emojis.`},
		},
	},
	"code-factory": {
		ID:   "code-factory",
		Name: "🏭 Code Factory",
		Steps: []StepSpec{
			{Category: types.CategoryResearcher, Label: "Tech Spec",
				Instructions: "Analyze the user request and create a bulleted technical requirement list for a Typescript implementation."},
			{Category: types.CategoryCoder, Label: "Implementation",
				Instructions: "Write clean, commented Typescript code based on the technical requirements provided. Do not use markdown blocks, just raw code."},
		},
	},
	"creative-suite": {
		ID:   "creative-suite",
		Name: "🎨 Creative Suite",
		Steps: []StepSpec{
			{Category: types.CategoryDesigner, Label: "Visual Concept",
				Instructions: "Describe a visual style, color palette, and mood board for the input idea."},
			{Category: types.CategoryWriter, Label: "Copy",
				Instructions: "Write a catchy tagline and a short paragraph of marketing copy matching the visual style."},
		},
	},
	"premium-blog": {
		ID:   "premium-blog",
		Name: "💎 Premium Blog",
		Steps: []StepSpec{
			{Category: types.CategoryResearcher, Label: "SEO Research",
				Instructions: "Identify 5 high-traffic keywords and 3 sub-topics related to the input. Provide a target audience persona."},
			{Category: types.CategoryWriter, Label: "Outline",
				Instructions: "Create a detailed blog post outline with H2 and H3 headers based on the SEO research."},
			{Category: types.CategoryWriter, Label: "Drafting",
				Instructions: "Write the full blog post based on the outline. Ensure the tone is engaging and professional."},
			{Category: types.CategoryDesigner, Label: "Formatting",
				Instructions: "Wrap the blog post in beautiful HTML with Tailwind CSS classes for typography. Add <div> placeholders for images."},
		},
	},
}

// Templates 返回全部模板，按 ID 排序
func Templates() []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupTemplate 按 ID 查找模板
func LookupTemplate(id string) (Template, bool) {
	t, ok := templates[id]
	return t, ok
}

// Graph 构建模板对应的图
func (t Template) Graph(seed string) (*Graph, error) {
	if seed == "" {
		seed = DefaultTemplateSeed
	}
	g, err := NewChainBuilder(t.Name).Trigger("User Input", seed).Steps(t.Steps...).Build()
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	return g, nil
}
