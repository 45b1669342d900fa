package server

import (
	"fmt"

	"github.com/kindredlabs/kindred/core"
)

// wireMessage is the JSON shape of one chat message. Role selects the
// variant; absent optional fields are nil, not zero sentinels.
type wireMessage struct {
	Role       core.Role       `json:"role"`
	Content    string          `json:"content"`
	ToolCallID *string         `json:"tool_call_id,omitempty"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
}

func (w wireMessage) toMessage() (core.Message, error) {
	switch w.Role {
	case core.RoleSystem:
		return core.SystemMessage{Content: w.Content}, nil
	case core.RoleUser:
		return core.UserMessage{Content: w.Content}, nil
	case core.RoleAssistant:
		return core.AssistantMessage{Content: w.Content, ToolCalls: w.ToolCalls}, nil
	case core.RoleTool:
		var id string
		if w.ToolCallID != nil {
			id = *w.ToolCallID
		}
		return core.ToolMessage{Content: w.Content, ToolCallID: id}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", w.Role)
	}
}

func decodeHistory(raw []wireMessage) ([]core.Message, error) {
	out := make([]core.Message, 0, len(raw))
	for i, w := range raw {
		msg, err := w.toMessage()
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error string `json:"error"`
}
