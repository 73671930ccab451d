// Package chat 提供携带情境上下文的语言模型对话层。
//
// 本包把上下文引擎的组装结果渲染为系统提示，
// 拼接用户消息后交给 OpenAI 兼容端点完成对话。
package chat

import "time"

// Role 表示消息的角色类型
type Role string

const (
	// RoleSystem 系统消息
	RoleSystem Role = "system"
	// RoleUser 用户消息
	RoleUser Role = "user"
	// RoleAssistant AI 助手消息
	RoleAssistant Role = "assistant"
)

// IsValid 检查 Role 是否为有效值
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Message 表示对话中的一条消息
type Message struct {
	// Role 消息角色
	Role Role `json:"role"`
	// Content 消息内容
	Content string `json:"content"`
	// Timestamp 时间戳
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// NewMessage 创建新消息
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage 创建系统消息
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage 创建用户消息
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage 创建助手消息
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// Reply 表示一次对话的应答
type Reply struct {
	// Content 应答内容
	Content string `json:"content"`
	// FinishReason 结束原因
	FinishReason string `json:"finish_reason"`
	// PromptTokens Prompt Token 数
	PromptTokens int `json:"prompt_tokens"`
	// CompletionTokens Completion Token 数
	CompletionTokens int `json:"completion_tokens"`
	// TotalTokens 总 Token 数
	TotalTokens int `json:"total_tokens"`
}
