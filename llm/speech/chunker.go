package speech

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkLimit 单个分段的字符上限（按 rune 计）
const DefaultChunkLimit = 500

var (
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	bareURLRe    = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>()]*[^\s<>().,!?;:]`) // 句末标点不属于链接
	headerRe     = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s*`)
	quoteRe      = regexp.MustCompile(`(?m)^\s*>\s?`)
	bulletRe     = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	ruleRe       = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
	htmlTagRe    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	emphasisRe   = regexp.MustCompile(`[*_~]+`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// StripMarkup 去除 Markdown/HTML 结构，裸链接替换为 "link"，并折叠空白。
func StripMarkup(text string) string {
	s := codeFenceRe.ReplaceAllString(text, " ")
	s = inlineCodeRe.ReplaceAllString(s, "$1")
	s = imageRe.ReplaceAllString(s, "$1")
	s = linkRe.ReplaceAllString(s, "$1")
	s = bareURLRe.ReplaceAllString(s, "link")
	s = ruleRe.ReplaceAllString(s, " ")
	s = headerRe.ReplaceAllString(s, "")
	s = quoteRe.ReplaceAllString(s, "")
	s = bulletRe.ReplaceAllString(s, "")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = emphasisRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Chunk 按句子边界打包分段：句子累加到下一句会超过 limit 时另起一段；
// 超过 limit 的单句按 limit 硬切。不会产生空分段。
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLimit
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		curLen = 0
	}

	for _, sentence := range splitSentences(text) {
		n := utf8.RuneCountInString(sentence)
		if n > limit {
			flush()
			chunks = append(chunks, hardSplit(sentence, limit)...)
			continue
		}
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+n > limit {
			flush()
			sep = 0
		}
		if sep == 1 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
		curLen += sep + n
	}
	flush()
	return chunks
}

// splitSentences 在 . ! ? 之后紧跟空白或文本结尾处断句
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func hardSplit(s string, limit int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		n := limit
		if n > len(runes) {
			n = len(runes)
		}
		if part := strings.TrimSpace(string(runes[:n])); part != "" {
			out = append(out, part)
		}
		runes = runes[n:]
	}
	return out
}
