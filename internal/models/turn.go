package models

import "time"

// SpeakerRole 定义了消息发送者的角色。
type SpeakerRole string

const (
	SpeakerUser      SpeakerRole = "user"      // 用户角色。
	SpeakerAssistant SpeakerRole = "assistant" // 助手角色。
	SpeakerTool      SpeakerRole = "tool"      // 工具角色。
)

// Turn 是会话中的一条不可变记录。一旦写入情景记忆，内容不再修改。
type Turn struct {
	// 发送者角色，取值为 user、assistant 或 tool。
	Role SpeakerRole `json:"role"`
	// 消息正文。
	Content string `json:"content"`
	// 可选。产生本条回复时工具调用的结构化结果，作为数值校验的基准数据。
	ToolResults ToolResults `json:"tool_results,omitempty"`
	// 消息时间戳。
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSlice 是一段待提取事实的会话片段，由智能体循环在回合结束后发布。
type ConversationSlice struct {
	SessionID string `json:"session_id"` // 会话ID。
	UserID    string `json:"user_id"`    // 用户ID。
	Turns     []Turn `json:"turns"`      // 按时间排序的回合列表。
}
