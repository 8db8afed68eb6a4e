package workflow

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

// MaxGeneratedSteps 模型规划的步骤上限
const MaxGeneratedSteps = 5

// FallbackSteps 规划失败时使用的默认两步链
func FallbackSteps(goal string) []StepSpec {
	return []StepSpec{
		{Category: types.CategoryResearcher, Label: "Analyze Request", Instructions: "Analyze this request: " + goal},
		{Category: types.CategoryWriter, Label: "Draft Response", Instructions: "Write a response based on the analysis."},
	}
}

// Generator 让模型以 JSON 模式规划步骤
type Generator struct {
	invoker llm.Invoker
	logger  *zap.Logger
}

// NewGenerator 创建规划器
func NewGenerator(invoker llm.Invoker, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{invoker: invoker, logger: logger.With(zap.String("component", "workflow_generator"))}
}

type generatedSteps struct {
	Steps []generatedStep `json:"steps"`
}

type generatedStep struct {
	AgentType    string `json:"agentType"`
	Label        string `json:"label"`
	Instructions string `json:"instructions"`
}

// Plan 返回最多 MaxGeneratedSteps 个步骤；第二个返回值表示是否使用了默认链。
// 任何调用或解析失败都不会返回错误，而是退回默认链。
func (g *Generator) Plan(ctx context.Context, cfg types.AIConfig, goal string, roster []types.Persona) ([]StepSpec, bool) {
	res, err := g.invoker.Invoke(ctx, llm.Invocation{
		Config:   cfg,
		Prompt:   generationPrompt(goal, roster),
		JSONMode: true,
	})
	if err != nil {
		g.logger.Warn("workflow generation failed, using fallback chain", zap.Error(err))
		return FallbackSteps(goal), true
	}

	raw, err := decodeSteps(res.Text)
	if err != nil {
		g.logger.Warn("workflow generation returned malformed output", zap.Error(err))
		return FallbackSteps(goal), true
	}

	steps := make([]StepSpec, 0, MaxGeneratedSteps)
	for _, s := range raw {
		if len(steps) == MaxGeneratedSteps {
			break
		}
		cat, err := types.ParseCategory(s.AgentType)
		if err != nil {
			cat = types.CategoryAssistant
		}
		label := strings.TrimSpace(s.Label)
		if label == "" {
			label = fmt.Sprintf("Step %d", len(steps)+1)
		}
		steps = append(steps, StepSpec{Category: cat, Label: label, Instructions: strings.TrimSpace(s.Instructions)})
	}
	if len(steps) == 0 {
		return FallbackSteps(goal), true
	}
	return steps, false
}

// decodeSteps 接受 {"steps":[...]}、裸数组或其他键包裹的数组
func decodeSteps(text string) ([]generatedStep, error) {
	var wrapped generatedSteps
	if err := llm.DecodeJSON(text, &wrapped); err == nil && len(wrapped.Steps) > 0 {
		return wrapped.Steps, nil
	}
	var bare []generatedStep
	if err := llm.DecodeJSON(text, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func generationPrompt(goal string, roster []types.Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Design a sequential workflow JSON for request: %q using agents:\n", goal)
	for _, p := range roster {
		fmt.Fprintf(&b, "- %s (Type: %s)\n", p.Name, p.Category)
	}
	b.WriteString(`Format: { "steps": [{ "agentType": "news", "label": "Fetch News", "instructions": "..." }] }` + "\n")
	b.WriteString(`- "agentType" must be one of: coder, writer, designer, researcher, news.` + "\n")
	b.WriteString(`- "instructions" should be a detailed prompt for that specific agent step.` + "\n")
	fmt.Fprintf(&b, "- Keep it under %d steps.", MaxGeneratedSteps)
	return b.String()
}
