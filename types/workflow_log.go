package types

import "time"

// RunStatus 工作流运行的终止状态
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunPartial RunStatus = "partial"
)

// OutputType 最终输出的内容类型
type OutputType string

const (
	OutputHTML OutputType = "html"
	OutputText OutputType = "text"
	OutputJSON OutputType = "json"
)

// StepSummary 单个步骤的摘要
type StepSummary struct {
	PersonaName string `json:"persona_name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	Outcome     string `json:"outcome"`
}

// RunOutput 运行的最终输出
type RunOutput struct {
	Type    OutputType `json:"type"`
	Title   string     `json:"title,omitempty"`
	Content string     `json:"content"`
}

// WorkflowLog 每次运行产生的唯一持久化记录，创建后不可变
type WorkflowLog struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Seed      string        `json:"seed"`
	Timestamp time.Time     `json:"timestamp"`
	Status    RunStatus     `json:"status"`
	Steps     []StepSummary `json:"steps"`
	Output    *RunOutput    `json:"output,omitempty"`
}

// Clone 返回深拷贝，存储层用它避免调用方修改已保存的记录
func (l *WorkflowLog) Clone() *WorkflowLog {
	if l == nil {
		return nil
	}
	out := *l
	out.Steps = append([]StepSummary(nil), l.Steps...)
	if l.Output != nil {
		o := *l.Output
		out.Output = &o
	}
	return &out
}
