// Package router picks the collection a question is about.
package router

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// ErrCollectionUnresolved is returned when no collection can be chosen for a question
var ErrCollectionUnresolved = goerr.New("collection unspecified")

// Router resolves a question to a collection name
type Router interface {
	Route(ctx context.Context, question string) (string, error)
}

// Completer is the text generation surface the LLM router needs
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder is the embedding surface the similarity router needs
type Embedder interface {
	Embedding(ctx context.Context, text string) ([]float32, error)
}
