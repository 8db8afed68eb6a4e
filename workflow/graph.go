package workflow

import "github.com/BaSui01/agentcouncil/types"

// NodeKind 节点类型
type NodeKind string

const (
	KindTrigger   NodeKind = "trigger"
	KindAgentStep NodeKind = "agent_step"
	KindTerminal  NodeKind = "terminal"
)

// NodeStatus 节点状态
type NodeStatus string

const (
	StatusIdle       NodeStatus = "idle"
	StatusReady      NodeStatus = "ready"
	StatusWaiting    NodeStatus = "waiting"
	StatusProcessing NodeStatus = "processing"
	StatusDone       NodeStatus = "done"
	StatusError      NodeStatus = "error"
)

// DefaultInstructions 节点未配置指令时使用
const DefaultInstructions = "Process the input."

// Node 画板节点
type Node struct {
	ID           string         `json:"id"`
	Kind         NodeKind       `json:"kind"`
	Label        string         `json:"label"`
	Category     types.Category `json:"category,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	Status       NodeStatus     `json:"status"`
	Input        string         `json:"input,omitempty"`
	Output       string         `json:"output,omitempty"`
}

// Edge 有向边，无权重
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph 画板图
type Graph struct {
	Name  string  `json:"name,omitempty"`
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// Node 按 ID 查找节点
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Trigger 返回第一个 trigger 节点
func (g *Graph) Trigger() *Node {
	for _, n := range g.Nodes {
		if n.Kind == KindTrigger {
			return n
		}
	}
	return nil
}

// Next 返回 id 的第一条出边指向的节点，没有出边或目标不存在时返回 nil
func (g *Graph) Next(id string) *Node {
	for _, e := range g.Edges {
		if e.Source == id {
			return g.Node(e.Target)
		}
	}
	return nil
}

// Reset 把 trigger 置为 ready 并写入种子，其余节点置为 waiting 并清空输入输出
func (g *Graph) Reset(seed string) {
	for _, n := range g.Nodes {
		n.Input, n.Output = "", ""
		if n.Kind == KindTrigger {
			n.Status = StatusReady
			n.Output = seed
			continue
		}
		n.Status = StatusWaiting
	}
}

// Clone 深拷贝
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{Name: g.Name, Nodes: make([]*Node, len(g.Nodes)), Edges: append([]Edge(nil), g.Edges...)}
	for i, n := range g.Nodes {
		cp := *n
		out.Nodes[i] = &cp
	}
	return out
}

// Steps 按链路顺序返回 agent_step 节点（最多 limit 跳）
func (g *Graph) Steps(limit int) []*Node {
	var steps []*Node
	cur := g.Trigger()
	for hop := 0; cur != nil && hop < limit; hop++ {
		cur = g.Next(cur.ID)
		if cur == nil || cur.Kind == KindTerminal {
			break
		}
		if cur.Kind == KindAgentStep {
			steps = append(steps, cur)
		}
	}
	return steps
}
