// Package llm is the text-generation boundary. The core retrieves
// context and builds prompts; producing the actual reply is delegated to
// a Generator.
package llm

import (
	"context"

	"github.com/kindredlabs/kindred/core"
)

// Generator produces a reply from a system prompt and message history.
type Generator interface {
	Generate(ctx context.Context, system string, history []core.Message) (string, error)
}
