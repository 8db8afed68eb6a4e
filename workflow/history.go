package workflow

import (
	"sync"
	"time"

	"github.com/BaSui01/agentcouncil/types"
)

// StepState 单步执行状态
type StepState string

const (
	StepRunning   StepState = "running"
	StepCompleted StepState = "completed"
	StepFailed    StepState = "failed"
)

// StepExecution records the execution of a single agent step
type StepExecution struct {
	NodeID      string         `json:"node_id"`
	Label       string         `json:"label"`
	Category    types.Category `json:"category"`
	PersonaName string         `json:"persona_name"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    time.Duration  `json:"duration"`
	State       StepState      `json:"state"`
	Input       string         `json:"input,omitempty"`
	Output      string         `json:"output,omitempty"`
	Outcome     string         `json:"outcome,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RunHistory records the step sequence of one board run
type RunHistory struct {
	RunID     string           `json:"run_id"`
	BoardID   string           `json:"board_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Status    types.RunStatus  `json:"status,omitempty"`
	Steps     []*StepExecution `json:"steps"`
	mu        sync.RWMutex
}

// NewRunHistory creates a new run history
func NewRunHistory(runID, boardID string) *RunHistory {
	return &RunHistory{
		RunID:     runID,
		BoardID:   boardID,
		StartTime: time.Now(),
		Steps:     make([]*StepExecution, 0),
	}
}

// RecordStart records the start of a step
func (h *RunHistory) RecordStart(node Node, personaName string) *StepExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	step := &StepExecution{
		NodeID:      node.ID,
		Label:       node.Label,
		Category:    node.Category,
		PersonaName: personaName,
		StartTime:   time.Now(),
		State:       StepRunning,
		Input:       node.Input,
	}
	h.Steps = append(h.Steps, step)
	return step
}

// RecordEnd records the end of a step; outcome is the one-line summary kept in the log
func (h *RunHistory) RecordEnd(step *StepExecution, output, outcome string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	step.EndTime = time.Now()
	step.Duration = step.EndTime.Sub(step.StartTime)
	step.Output = output
	step.Outcome = outcome
	if err != nil {
		step.State = StepFailed
		step.Error = err.Error()
	} else {
		step.State = StepCompleted
	}
}

// Complete marks the run as closed with status
func (h *RunHistory) Complete(status types.RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	h.Status = status
}

// GetSteps returns a copy of the step executions
func (h *RunHistory) GetSteps() []StepExecution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	steps := make([]StepExecution, len(h.Steps))
	for i, s := range h.Steps {
		steps[i] = *s
	}
	return steps
}

// Summaries 转换为持久化日志中的步骤摘要
func (h *RunHistory) Summaries() []types.StepSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]types.StepSummary, 0, len(h.Steps))
	for _, s := range h.Steps {
		status := string(types.RunSuccess)
		if s.State == StepFailed {
			status = string(types.RunFailed)
		}
		out = append(out, types.StepSummary{
			PersonaName: s.PersonaName,
			Role:        s.Category.Role(),
			Status:      status,
			Outcome:     s.Outcome,
		})
	}
	return out
}
