package speech

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// LocalVoice 设备本地朗读器，作为远程合成不可用时的兜底。
type LocalVoice interface {
	Speak(ctx context.Context, text string, profile VoiceProfile) error
}

// CommandVoice 通过外部命令（默认 espeak-ng）朗读
type CommandVoice struct {
	Binary   string
	BaseWPM  int
	BaseTone int
}

// NewCommandVoice 创建本地朗读器，binary 为空时使用 espeak-ng
func NewCommandVoice(binary string) *CommandVoice {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &CommandVoice{Binary: binary, BaseWPM: 175, BaseTone: 50}
}

// Args 计算命令参数：语速按 Rate 缩放，音调按 Pitch 缩放并限制在 0-99
func (v *CommandVoice) Args(text string, profile VoiceProfile) []string {
	rate := profile.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := profile.Pitch
	if pitch <= 0 {
		pitch = 1
	}
	wpm := int(math.Round(float64(v.BaseWPM) * rate))
	tone := int(math.Round(float64(v.BaseTone) * pitch))
	tone = max(0, min(99, tone))
	return []string{"-s", strconv.Itoa(wpm), "-p", strconv.Itoa(tone), "--", text}
}

func (v *CommandVoice) Speak(ctx context.Context, text string, profile VoiceProfile) error {
	cmd := exec.CommandContext(ctx, v.Binary, v.Args(text, profile)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("local voice %s: %w: %s", v.Binary, err, out)
	}
	return nil
}
