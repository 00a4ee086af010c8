package ai

import "context"

// Model is a text-in, text-out LLM endpoint.
type Model interface {
	Name() string
	HandleText(ctx context.Context, msg string) (string, error)
}
