package llm

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```[a-z]*\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")
)

// CleanOutput 去除模型输出外层的 Markdown 代码块
func CleanOutput(text string) string {
	s := strings.TrimSpace(text)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// DecodeJSON 容错解析 JSON 模式的输出。
//
// 规则依次为：去除代码块；直接解析；若目标是切片而文本是对象，
// 取对象中按文档顺序出现的第一个数组成员（{"items":[...]} -> [...]）；
// 若文本前后夹带说明文字，截取第一个 { 或 [ 到对应结尾再试一次。
// 全部失败时返回 ErrMalformedResponse。
func DecodeJSON(text string, v any) error {
	cleaned := CleanOutput(text)
	if cleaned == "" {
		return Malformed("empty structured response")
	}

	err := decodeWithUnwrap([]byte(cleaned), v)
	if err == nil {
		return nil
	}
	if inner, ok := extractJSON(cleaned); ok && inner != cleaned {
		if err2 := decodeWithUnwrap([]byte(inner), v); err2 == nil {
			return nil
		}
	}
	return Malformed("malformed structured response: %v", err)
}

func decodeWithUnwrap(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if !targetIsSlice(v) || firstByte(data) != '{' {
		return err
	}
	raw, ok := firstArrayMember(data)
	if !ok {
		return err
	}
	return json.Unmarshal(raw, v)
}

func targetIsSlice(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Slice
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// firstArrayMember 按文档顺序查找对象的第一个数组成员
func firstArrayMember(data []byte) (json.RawMessage, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil { // key
			return nil, false
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, false
		}
		if firstByte(raw) == '[' {
			return raw, true
		}
	}
	return nil, false
}

func extractJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}
