package council

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agentcouncil/llm"
	"github.com/BaSui01/agentcouncil/types"
)

const (
	systemSender = "System"
	userSender   = "You"
	errorColor   = "#ff0000"
	systemColor  = "#607D8B"
	userColor    = "#2196F3"
)

// OpeningMessage 会话开场白
const OpeningMessage = "The Agent Academy Council is now in session! How can we help?"

// Message 议会消息，只追加
type Message struct {
	ID           string       `json:"id"`
	SenderName   string       `json:"sender_name"`
	SenderAvatar string       `json:"sender_avatar"`
	Text         string       `json:"text"`
	IsUser       bool         `json:"is_user"`
	IsSystem     bool         `json:"is_system,omitempty"`
	Color        string       `json:"color"`
	Timestamp    time.Time    `json:"timestamp"`
	Sources      []llm.Source `json:"sources,omitempty"`
}

// SearchRequest 模型提出的搜索请求，仅在审批期间存在
type SearchRequest struct {
	Query       string `json:"query"`
	PersonaName string `json:"personaName"`
	Rationale   string `json:"rationale"`
}

func newMessage(sender, avatar, color, text string) Message {
	return Message{
		ID:           uuid.NewString(),
		SenderName:   sender,
		SenderAvatar: avatar,
		Text:         text,
		Color:        color,
		Timestamp:    time.Now(),
	}
}

func userMessage(text string) Message {
	m := newMessage(userSender, "", userColor, text)
	m.IsUser = true
	return m
}

func personaMessage(p types.Persona, text string) Message {
	return newMessage(p.Name, p.AvatarURL, p.Color, text)
}

func systemMessage(text string) Message {
	m := newMessage(systemSender, types.AvatarFor("bottts", "System"), systemColor, text)
	m.IsSystem = true
	return m
}

func errorMessage(text string) Message {
	m := newMessage(systemSender, types.AvatarFor("bottts", "Error"), errorColor, text)
	m.IsSystem = true
	return m
}
