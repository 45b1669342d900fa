package core

import "encoding/json"

// Role identifies which party produced a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the closed set of chat message variants.
// Each variant carries its own payload shape; consumers dispatch with a
// type switch rather than inspecting a shared struct.
//
// The sealed role() method keeps the set closed: only the four variants
// below satisfy Message.
type Message interface {
	Role() Role

	sealed()
}

// SystemMessage sets or extends the conversation's system prompt.
type SystemMessage struct {
	Content string `json:"content"`
}

// UserMessage is a message authored by the end user.
type UserMessage struct {
	Content string `json:"content"`
}

// AssistantMessage is a reply produced by the text-generation collaborator.
// ToolCalls is non-empty when the collaborator requested backend operations;
// dispatching those calls happens outside this module.
type AssistantMessage struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolMessage carries the result of a dispatched tool call back into the
// conversation.
type ToolMessage struct {
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id"`
}

// ToolCall is a request from the assistant to invoke a named operation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (SystemMessage) Role() Role    { return RoleSystem }
func (UserMessage) Role() Role      { return RoleUser }
func (AssistantMessage) Role() Role { return RoleAssistant }
func (ToolMessage) Role() Role      { return RoleTool }

func (SystemMessage) sealed()    {}
func (UserMessage) sealed()      {}
func (AssistantMessage) sealed() {}
func (ToolMessage) sealed()      {}
