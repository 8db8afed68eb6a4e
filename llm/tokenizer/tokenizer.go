package tokenizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Counter 最小 Token 计数接口
type Counter interface {
	CountTokens(text string) int
	Name() string
}

// Estimator 按字符估算，CJK ~1.5 字符/token，其它 ~4 字符/token
type Estimator struct{}

func (Estimator) Name() string { return "estimator" }

func (Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	n := int(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if n == 0 {
		n = 1
	}
	return n
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

// Tiktoken 基于 tiktoken 的计数器，初始化失败时退化为 Estimator
type Tiktoken struct {
	encoding string
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// NewTiktoken 创建计数器，encoding 为空时使用 o200k_base
func NewTiktoken(encoding string, logger *zap.Logger) *Tiktoken {
	if encoding == "" {
		encoding = "o200k_base"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiktoken{encoding: encoding, logger: logger.With(zap.String("component", "tokenizer"))}
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			t.logger.Warn("tiktoken unavailable, falling back to estimator", zap.Error(t.initErr))
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return Estimator{}.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// KeepNewest 返回应保留的起始下标，使 texts[start:] 的 token 总数不超过 budget。
// 最新一条总会被保留；budget <= 0 表示不限制。
func KeepNewest(texts []string, budget int, c Counter) int {
	if budget <= 0 || len(texts) == 0 {
		return 0
	}
	used := 0
	for i := len(texts) - 1; i >= 0; i-- {
		used += c.CountTokens(texts[i]) + 4 // per-message overhead
		if used > budget && i < len(texts)-1 {
			return i + 1
		}
	}
	return 0
}
