package council

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

const defaultExpertColor = "#795548"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type expertJSON struct {
	Name            string `json:"name"`
	Specialty       string `json:"specialty"`
	Category        string `json:"category"`
	Color           string `json:"color"`
	Catchphrase     string `json:"catchphrase"`
	DetailedPersona string `json:"detailedPersona"`
}

// SummonExperts 为话题生成候选专家，等待 ConfirmExperts 选择。
// 模型返回无法解析时候选列表为空；调用失败时额外写入一条系统消息。
func (e *Engine) SummonExperts(ctx context.Context, topic string, n int) ([]types.Persona, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyInput
	}
	if n <= 0 {
		n = e.cfg.ExpertCandidates
	}
	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	cfg := e.aiConfig
	e.mu.Unlock()

	res, err := e.invoker.Invoke(ctx, llm.Invocation{
		Config:   cfg,
		Prompt:   buildSummonPrompt(topic, n),
		JSONMode: true,
	})
	var raw []expertJSON
	if err == nil {
		raw, err = parseExperts(res.Text)
		if err != nil {
			e.logger.Warn("expert candidates unreadable", zap.String("topic", topic), zap.Error(err))
		}
	} else {
		e.logger.Warn("expert summon failed", zap.String("topic", topic), zap.Error(err))
		e.append(errorMessage(FailureText(err)))
	}

	candidates := make([]types.Persona, 0, len(raw))
	seen := make(map[string]struct{})
	for _, x := range raw {
		name := strings.TrimSpace(x.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		if _, exists := e.roster.ByName(name); exists {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, expertPersona(x))
		if len(candidates) == n {
			break
		}
	}

	e.mu.Lock()
	e.candidates = candidates
	e.mu.Unlock()
	e.emit(EventExperts, candidates)
	return append([]types.Persona(nil), candidates...), nil
}

// Candidates 返回当前待确认的候选专家
func (e *Engine) Candidates() []types.Persona {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Persona(nil), e.candidates...)
}

// ConfirmExperts 把选中的候选加入名册，未选中的丢弃
func (e *Engine) ConfirmExperts(ids []string) ([]types.Persona, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	e.mu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	var added []types.Persona
	for _, c := range e.candidates {
		if _, ok := want[c.ID]; !ok {
			continue
		}
		if err := e.roster.Add(c); err != nil {
			e.logger.Warn("expert not added", zap.String("name", c.Name), zap.Error(err))
			continue
		}
		added = append(added, c)
	}
	e.candidates = nil
	state := e.stateLocked()
	e.mu.Unlock()

	if len(added) > 0 {
		names := make([]string, len(added))
		for i, p := range added {
			names[i] = p.Name
		}
		e.append(systemMessage("🎓 New experts have joined the council: " + strings.Join(names, ", ") + "!"))
	}
	e.emit(EventState, state)
	return added, nil
}

func parseExperts(text string) ([]expertJSON, error) {
	var wrapped struct {
		Experts []expertJSON `json:"experts"`
	}
	if err := llm.DecodeJSON(text, &wrapped); err == nil && len(wrapped.Experts) > 0 {
		return wrapped.Experts, nil
	}
	var bare []expertJSON
	if err := llm.DecodeJSON(text, &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func expertPersona(x expertJSON) types.Persona {
	name := strings.TrimSpace(x.Name)
	category, err := types.ParseCategory(x.Category)
	if err != nil {
		category = types.CategoryExpert
	}
	color := strings.TrimSpace(x.Color)
	if !hexColor.MatchString(color) {
		color = defaultExpertColor
	}
	return types.Persona{
		ID:              uuid.NewString(),
		Name:            name,
		Category:        category,
		Version:         "v1.0.0",
		Specialty:       strings.TrimSpace(x.Specialty),
		AvatarURL:       types.AvatarFor("bottts", name),
		Color:           color,
		Catchphrase:     strings.TrimSpace(x.Catchphrase),
		DetailedPersona: strings.TrimSpace(x.DetailedPersona),
		Expert:          true,
	}
}
