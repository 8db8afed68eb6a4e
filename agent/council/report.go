package council

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
)

var ErrNothingToReport = errors.New("no discussion to report on")

const defaultReportTitle = "Council Report"

// DistillReport 把当前讨论提炼为 Markdown 纪要，成功后替换上一份
func (e *Engine) DistillReport(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	transcript := make([]Message, 0, len(e.messages))
	for _, m := range e.messages {
		if !m.IsSystem {
			transcript = append(transcript, m)
		}
	}
	cfg := e.aiConfig
	e.mu.Unlock()

	if len(transcript) == 0 {
		return nil, ErrNothingToReport
	}

	start := time.Now()
	res, err := e.invoker.Invoke(ctx, llm.Invocation{
		Config: cfg,
		Prompt: buildReportPrompt(transcript),
	})
	if err != nil {
		e.observeTurn("report", "error", time.Since(start))
		e.logger.Warn("report distillation failed", zap.Error(err))
		return nil, err
	}
	md := llm.CleanOutput(res.Text)
	if md == "" {
		e.observeTurn("report", "error", time.Since(start))
		return nil, llm.Malformed("empty report")
	}
	e.observeTurn("report", "success", time.Since(start))

	report := &Report{
		ID:           uuid.NewString(),
		Title:        reportTitle(md),
		Markdown:     md,
		MessageCount: len(transcript),
		CreatedAt:    time.Now(),
	}
	e.mu.Lock()
	e.report = report
	e.mu.Unlock()

	out := *report
	e.emit(EventReport, out)
	return &out, nil
}

// Report 返回最近一次生成的纪要
func (e *Engine) Report() (*Report, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.report == nil {
		return nil, false
	}
	r := *e.report
	return &r, true
}

// reportTitle 取第一个 Markdown 标题
func reportTitle(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(line, "#")); t != "" {
				return t
			}
		}
	}
	return defaultReportTitle
}
