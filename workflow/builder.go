package workflow

import (
	"errors"
	"fmt"

	"github.com/BaSui01/agentcouncil/types"
)

// StepSpec 一个待构建的步骤
type StepSpec struct {
	Category     types.Category `json:"agentType"`
	Label        string         `json:"label"`
	Instructions string         `json:"instructions"`
}

// ChainBuilder 以 Fluent API 构建 trigger → step* → terminal 的线性链
type ChainBuilder struct {
	name         string
	triggerLabel string
	seed         string
	endLabel     string
	steps        []StepSpec
}

// NewChainBuilder 创建构建器
func NewChainBuilder(name string) *ChainBuilder {
	return &ChainBuilder{name: name, triggerLabel: "User Input", endLabel: "Complete"}
}

// Trigger 设置起点标签与种子输出
func (b *ChainBuilder) Trigger(label, seed string) *ChainBuilder {
	if label != "" {
		b.triggerLabel = label
	}
	b.seed = seed
	return b
}

// Step 追加一个步骤
func (b *ChainBuilder) Step(category types.Category, label, instructions string) *ChainBuilder {
	b.steps = append(b.steps, StepSpec{Category: category, Label: label, Instructions: instructions})
	return b
}

// Steps 批量追加步骤
func (b *ChainBuilder) Steps(specs ...StepSpec) *ChainBuilder {
	b.steps = append(b.steps, specs...)
	return b
}

// End 设置终点标签
func (b *ChainBuilder) End(label string) *ChainBuilder {
	if label != "" {
		b.endLabel = label
	}
	return b
}

// Build 校验并生成图，节点 ID 为 start、step-0..n、end
func (b *ChainBuilder) Build() (*Graph, error) {
	if len(b.steps) == 0 {
		return nil, errors.New("chain has no steps")
	}

	g := &Graph{Name: b.name}
	g.Nodes = append(g.Nodes, &Node{
		ID:     "start",
		Kind:   KindTrigger,
		Label:  b.triggerLabel,
		Status: StatusReady,
		Output: b.seed,
	})

	prev := "start"
	for i, s := range b.steps {
		if !s.Category.Valid() {
			return nil, fmt.Errorf("step %d: unknown category %q", i, s.Category)
		}
		id := fmt.Sprintf("step-%d", i)
		instr := s.Instructions
		if instr == "" {
			instr = DefaultInstructions
		}
		g.Nodes = append(g.Nodes, &Node{
			ID:           id,
			Kind:         KindAgentStep,
			Label:        s.Label,
			Category:     s.Category,
			Instructions: instr,
			Status:       StatusIdle,
		})
		g.Edges = append(g.Edges, Edge{ID: "e-" + prev + "-" + id, Source: prev, Target: id})
		prev = id
	}

	g.Nodes = append(g.Nodes, &Node{ID: "end", Kind: KindTerminal, Label: b.endLabel, Status: StatusIdle})
	g.Edges = append(g.Edges, Edge{ID: "e-" + prev + "-end", Source: prev, Target: "end"})
	return g, nil
}
