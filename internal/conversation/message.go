package conversation

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role tags who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a structured request from the drafting model naming one capability.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// StringArg returns a string argument by key.
func (c ToolCall) StringArg(key string) (string, bool) {
	v, ok := c.Args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ArgsJSON encodes the argument mapping the way chat APIs transport it.
func (c ToolCall) ArgsJSON() string {
	if len(c.Args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(c.Args)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ToolResult is the textual outcome of satisfying a ToolCall.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Message is a single entry of a Conversation.
// Supersedes holds the ID of an earlier assistant message this one replaces.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	Result     *ToolResult `json:"result,omitempty"`
	Supersedes string      `json:"supersedes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func NewSystem(content string) Message { return newMessage(RoleSystem, content) }

func NewHuman(content string) Message { return newMessage(RoleHuman, content) }

// NewAssistant builds an assistant message, optionally carrying tool calls.
func NewAssistant(content string, calls ...ToolCall) Message {
	m := newMessage(RoleAssistant, content)
	if len(calls) > 0 {
		m.ToolCalls = calls
	}
	return m
}

// NewToolResult answers call with content.
func NewToolResult(call ToolCall, content string, isError bool) Message {
	m := newMessage(RoleTool, content)
	m.Result = &ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
		IsError: isError,
	}
	return m
}

// NewCallID returns a fresh tool call identifier.
func NewCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsTerminal reports whether m ends a session: an assistant message with
// content and nothing left to execute.
func (m Message) IsTerminal() bool {
	return m.Role == RoleAssistant && !m.HasToolCalls() && strings.TrimSpace(m.Content) != ""
}
