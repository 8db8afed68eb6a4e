package persona

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

// 兜底文案
const (
	QuotaReply        = "⚠️ QUOTA EXCEEDED ⚠️\n\nREPORT: My cloud brain is taking a nap. \n\nREPORT: I can still look cute while we wait!"
	AuthReply         = "⚠️ AUTH ERROR: Please enter your API key in Settings!"
	GlitchReply       = "Beep boop! My communication chip is glitched. (Check Settings)"
	OfflineStatus     = "*Offline Mode*: My cloud link is napping (Quota Exceeded), but I'm still operating at 100% cuteness! 💤✨"
	NominalStatus     = "Systems nominal! Just dreaming of electric sheep... 🤖⚡"
	DefaultMissionLog = "Just updated the wallpaper to high-def clouds."
)

var offlineMissions = []string{
	"Defragmenting my snack folder.",
	"Chasing a mouse cursor around the screen.",
	"Counting all the pixels in the universe.",
	"Optimizing the giggle-buffer.",
}

var ErrEmptyCommand = errors.New("command is empty")

// Reply 角色回复
type Reply struct {
	PersonaID string       `json:"persona_id"`
	Text      string       `json:"text"`
	Sources   []llm.Source `json:"sources,omitempty"`
	Fallback  bool         `json:"fallback"`
}

// Commander 单角色的指令执行
type Commander struct {
	invoker llm.Invoker
	logger  *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewCommander 创建 Commander；rng 为 nil 时使用随机种子
func NewCommander(invoker llm.Invoker, rng *rand.Rand, logger *zap.Logger) *Commander {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Commander{invoker: invoker, rng: rng, logger: logger.With(zap.String("component", "persona_commander"))}
}

// Command 以角色身份执行一条指令。news 角色使用联网搜索并按 REPORT: 行输出。
func (c *Commander) Command(ctx context.Context, cfg types.AIConfig, p types.Persona, command string) (*Reply, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}
	isNews := p.Category == types.CategoryNews
	style := "Respond in character, whimsically and shortly. No markdown."
	if isNews {
		style = "For news: Provide clear text with double line breaks between sections. For specific news items, start the line with 'REPORT:' followed by the news. Be playful and whimsical like a digital news-hound."
	}
	prompt := fmt.Sprintf("You are %s, a %s agent. Specialty: %s.\nCommand: %q.\n\n%s", p.Name, p.Category, p.Specialty, command, style)

	res, err := c.invoker.Invoke(ctx, llm.Invocation{Config: cfg, Prompt: prompt, WebSearch: isNews})
	if err != nil {
		c.logger.Warn("persona command failed", zap.String("persona", p.Name), zap.Error(err))
		return &Reply{PersonaID: p.ID, Text: commandFailure(err), Fallback: true}, nil
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "Command processed with 0 errors!"
	}
	return &Reply{PersonaID: p.ID, Text: text, Sources: res.Sources}, nil
}

func commandFailure(err error) string {
	switch {
	case llm.IsQuotaExceeded(err):
		return QuotaReply
	case llm.IsMissingCredential(err):
		return AuthReply
	default:
		return GlitchReply
	}
}

type specialAction struct {
	Action  string `json:"action"`
	Outcome string `json:"outcome"`
}

// SpecialAction 生成一个角色化的“特殊动作”，任何失败都返回模拟成功
func (c *Commander) SpecialAction(ctx context.Context, cfg types.AIConfig, p types.Persona) *Reply {
	prompt := fmt.Sprintf(`Generate a whimsical "Special Action" name and a 1-sentence outcome for %s (a %s).
Example: Action: "Quantum Zoomies", Outcome: "Accidentally accelerated the clock by 2 seconds while chasing a data-packet."
Format: JSON { "action": "...", "outcome": "..." }`, p.Name, p.Category)

	fallback := &Reply{
		PersonaID: p.ID,
		Text:      fmt.Sprintf("🌟 Turbo Cuddle Mode: %s hugged the server so hard it rebooted! (Simulated Success)", p.Name),
		Fallback:  true,
	}
	res, err := c.invoker.Invoke(ctx, llm.Invocation{Config: cfg, Prompt: prompt, JSONMode: true})
	if err != nil {
		c.logger.Debug("special action failed", zap.String("persona", p.Name), zap.Error(err))
		return fallback
	}
	var act specialAction
	if err := llm.DecodeJSON(res.Text, &act); err != nil || act.Action == "" || act.Outcome == "" {
		return fallback
	}
	return &Reply{PersonaID: p.ID, Text: fmt.Sprintf("🌟 %s: %s", act.Action, act.Outcome)}
}

// StatusReport 简短的状态报告（最多三句）
func (c *Commander) StatusReport(ctx context.Context, cfg types.AIConfig, p types.Persona) *Reply {
	prompt := fmt.Sprintf(`You are a whimsical, cute AI agent named %s. You are a %s specializing in %s. Give me a short, playful "System Status Report" (max 3 sentences). Mention something about your digital dreams or how many bytes you've snacked on today. Use emojis and be super adorable.`,
		p.Name, p.Category, p.Specialty)
	res, err := c.invoker.Invoke(ctx, llm.Invocation{Config: cfg, Prompt: prompt})
	if err != nil {
		return &Reply{PersonaID: p.ID, Text: OfflineStatus, Fallback: true}
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = NominalStatus
	}
	return &Reply{PersonaID: p.ID, Text: text}
}

// MissionLog 一句话的任务日志
func (c *Commander) MissionLog(ctx context.Context, cfg types.AIConfig, p types.Persona) *Reply {
	prompt := fmt.Sprintf(`Generate a single, very short (1 sentence), funny mission log for a cute AI agent named %s who works in %s. It should sound like a digital accomplishment or a silly mistake. Example: "Accidentally sorted the database by color instead of date."`,
		p.Name, p.Specialty)
	res, err := c.invoker.Invoke(ctx, llm.Invocation{Config: cfg, Prompt: prompt})
	if err != nil {
		return &Reply{PersonaID: p.ID, Text: c.offlineMission(), Fallback: true}
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = DefaultMissionLog
	}
	return &Reply{PersonaID: p.ID, Text: text}
}

func (c *Commander) offlineMission() string {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return offlineMissions[c.rng.IntN(len(offlineMissions))]
}
