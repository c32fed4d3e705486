package engine

import "encoding/json"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Turn is one message of a conversation.
type Turn struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Name      string     `json:"name,omitempty"`
}

// MarshalJSON writes content as null when the turn only invokes tools.
func (t Turn) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role      Role       `json:"role"`
		Content   *string    `json:"content"`
		ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		Name      string     `json:"name,omitempty"`
	}
	w := wire{Role: t.Role, ToolCalls: t.ToolCalls, Name: t.Name}
	if t.Content != "" || len(t.ToolCalls) == 0 {
		content := t.Content
		w.Content = &content
	}
	return json.Marshal(w)
}
