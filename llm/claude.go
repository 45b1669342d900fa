package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kindredlabs/kindred/core"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096

	maxRetries = 3
	baseDelay  = 2 * time.Second
)

// Claude generates replies through the Anthropic Messages API.
type Claude struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaude creates a generator. An empty model selects the default.
func NewClaude(apiKey, model string) *Claude {
	if model == "" {
		model = defaultModel
	}
	return &Claude{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

// Generate sends the history and returns the text reply. Overloaded and
// gateway errors are retried with exponential backoff.
func (c *Claude) Generate(ctx context.Context, system string, history []core.Message) (string, error) {
	messages, extraSystem := convertHistory(history)
	if extraSystem != "" {
		if system != "" {
			system += "\n\n"
		}
		system += extraSystem
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	var resp *anthropic.Message
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err = c.client.Messages.New(ctx, params)
		if err == nil {
			break
		}
		if !isRetryableError(err) {
			return "", fmt.Errorf("claude API error: %w", err)
		}
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(baseDelay * time.Duration(1<<attempt)):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	return reply.String(), nil
}

// convertHistory maps the message variants onto API params. System
// messages are folded into the system prompt rather than the message
// list; the API rejects a system role inside messages.
func convertHistory(history []core.Message) ([]anthropic.MessageParam, string) {
	var out []anthropic.MessageParam
	var system []string

	for _, msg := range history {
		switch m := msg.(type) {
		case core.SystemMessage:
			system = append(system, m.Content)

		case core.UserMessage:
			if m.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}

		case core.AssistantMessage:
			if len(m.ToolCalls) == 0 {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
				continue
			}
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				var input map[string]any
				json.Unmarshal(tc.Arguments, &input)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case core.ToolMessage:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	return out, strings.Join(system, "\n\n")
}

func isRetryableError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "529") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "Overloaded") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "502")
}
