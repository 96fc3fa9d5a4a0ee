// Package ai wraps the language model that answers venue questions.
package ai

import "context"

// TextGenerator turns a system prompt plus a user prompt into a reply.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
