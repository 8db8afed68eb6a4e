package types

import (
	"fmt"
	"net/url"
	"strings"
)

// Category 角色类别
type Category string

const (
	CategoryCoder      Category = "coder"
	CategoryWriter     Category = "writer"
	CategoryDesigner   Category = "designer"
	CategoryResearcher Category = "researcher"
	CategoryNews       Category = "news"
	CategoryAssistant  Category = "assistant"
	CategoryExpert     Category = "expert"
)

var knownCategories = map[Category]struct{}{
	CategoryCoder:      {},
	CategoryWriter:     {},
	CategoryDesigner:   {},
	CategoryResearcher: {},
	CategoryNews:       {},
	CategoryAssistant:  {},
	CategoryExpert:     {},
}

// ParseCategory 解析类别字符串，大小写不敏感
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownCategories[c]; !ok {
		return "", fmt.Errorf("unknown persona category %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// Role 返回提示词中使用的大写角色标签
func (c Category) Role() string {
	return strings.ToUpper(string(c))
}

// Persona 角色卡片
type Persona struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Category        Category `json:"category" yaml:"category"`
	Version         string   `json:"version,omitempty" yaml:"version,omitempty"`
	Specialty       string   `json:"specialty" yaml:"specialty"`
	AvatarURL       string   `json:"avatar_url" yaml:"avatar_url"`
	Color           string   `json:"color" yaml:"color"`
	Capabilities    []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Catchphrase     string   `json:"catchphrase,omitempty" yaml:"catchphrase,omitempty"`
	QuickCommands   []string `json:"quick_commands,omitempty" yaml:"quick_commands,omitempty"`
	DetailedPersona string   `json:"detailed_persona,omitempty" yaml:"detailed_persona,omitempty"` // 仅召唤专家使用
	Expert          bool     `json:"expert" yaml:"expert"`                                         // 由专家召唤流程加入
}

// Describe 返回用于提示词的一行角色描述
func (p Persona) Describe() string {
	return fmt.Sprintf("%s (%s, expert in %s)", p.Name, p.Category, p.Specialty)
}

// AvatarFor 生成 dicebear 头像地址
func AvatarFor(style, seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/%s/svg?seed=%s", style, url.QueryEscape(seed))
}
