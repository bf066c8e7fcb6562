package adapter

import "context"

// LLM is the single-prompt completion surface used by the query and answer generators
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
