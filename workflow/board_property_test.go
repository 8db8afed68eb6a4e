package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

// 任意图（含环、断链、多出边）上的运行都会在跳数上限内结束，且只产出一条日志
func TestProperty_RunTerminatesWithOneLog(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("run terminates within hop limit and emits exactly one log", prop.ForAll(
		func(kinds []int, targets []int, failAt int) bool {
			g := &Graph{Nodes: []*Node{{ID: "n0", Kind: KindTrigger}}}
			for i, k := range kinds {
				kind := KindAgentStep
				if k == 1 {
					kind = KindTerminal
				}
				g.Nodes = append(g.Nodes, &Node{ID: fmt.Sprintf("n%d", i+1), Kind: kind, Category: types.CategoryWriter})
			}
			for i, target := range targets {
				src := i % len(g.Nodes)
				g.Edges = append(g.Edges, Edge{
					ID:     fmt.Sprintf("e%d", i),
					Source: fmt.Sprintf("n%d", src),
					Target: fmt.Sprintf("n%d", target),
				})
			}

			inv := &scriptedInvoker{failAt: failAt, failErr: llm.NewError(llm.ErrUpstreamError, "down")}
			sink := &memSink{}
			b := NewBoard("prop", inv, nil, nil, WithLogSink(sink))
			if err := b.replace(g); err != nil {
				return false
			}

			log, err := b.Run(context.Background(), types.AIConfig{}, "seed")
			if err != nil || log == nil {
				return false
			}
			if inv.count() > DefaultMaxHops {
				t.Logf("invoked %d times", inv.count())
				return false
			}
			if len(sink.logs) != 1 {
				return false
			}
			switch log.Status {
			case types.RunSuccess, types.RunFailed, types.RunPartial:
			default:
				return false
			}
			if failAt > 0 && failAt <= inv.count() && log.Status != types.RunFailed {
				return false
			}
			return !b.Running()
		},
		gen.SliceOfN(6, gen.IntRange(0, 2)),
		gen.SliceOfN(10, gen.IntRange(0, 6)),
		gen.IntRange(0, 12),
	))

	properties.TestingRun(t)
}

// 同一图、同一种子、确定性输出下，两次运行的结构完全相同
func TestProperty_RerunReproducesShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("rerun keeps node sequence and log shape", prop.ForAll(
		func(templateIdx int, seed string) bool {
			tpl := Templates()[templateIdx]
			b := NewBoard("shape", &scriptedInvoker{reply: func(_ int, inv llm.Invocation) string {
				return fmt.Sprintf("len=%d", len(inv.Prompt))
			}}, testRoster, nil)
			if _, err := b.LoadTemplate(tpl.ID, ""); err != nil {
				return false
			}
			first, _ := b.Run(context.Background(), types.AIConfig{}, seed)
			second, _ := b.Run(context.Background(), types.AIConfig{}, seed)
			if first.Status != second.Status || len(first.Steps) != len(second.Steps) {
				return false
			}
			for i := range first.Steps {
				if first.Steps[i] != second.Steps[i] {
					return false
				}
			}
			return *first.Output == *second.Output
		},
		gen.IntRange(0, 3),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
