package router

import (
	"context"
	"math"
	"sync"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultThreshold is the minimum cosine similarity for a match
const DefaultThreshold = 0.5

// Similarity compares the question embedding with an embedding of each collection's
// description. A collection name that literally appears in the question always wins.
type Similarity struct {
	embedder    Embedder
	collections []model.Collection
	keyword     *Keyword
	threshold   float64

	mu      sync.Mutex
	vectors [][]float32
}

type SimilarityOption func(*Similarity)

func WithThreshold(threshold float64) SimilarityOption {
	return func(s *Similarity) {
		s.threshold = threshold
	}
}

func NewSimilarity(embedder Embedder, collections []model.Collection, opts ...SimilarityOption) *Similarity {
	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}

	s := &Similarity{
		embedder:    embedder,
		collections: collections,
		keyword:     NewKeyword(names...),
		threshold:   DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Similarity) Route(ctx context.Context, question string) (string, error) {
	if name, ok := s.keyword.match(question); ok {
		return name, nil
	}

	vectors, err := s.collectionVectors(ctx)
	if err != nil {
		return "", err
	}

	q, err := s.embedder.Embedding(ctx, question)
	if err != nil {
		return "", goerr.Wrap(err, "failed to embed question")
	}

	best, bestScore := -1, s.threshold
	for i, v := range vectors {
		score, err := cosine(q, v)
		if err != nil {
			return "", goerr.Wrap(err, "failed to compare embeddings", goerr.V("collection", s.collections[i].Name))
		}
		if score >= bestScore && (best < 0 || score > bestScore) {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return "", ErrCollectionUnresolved
	}

	logging.From(ctx).Debug("routed by similarity", "collection", s.collections[best].Name, "score", bestScore)
	return s.collections[best].Name, nil
}

func (s *Similarity) collectionVectors(ctx context.Context) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectors != nil {
		return s.vectors, nil
	}

	vectors := make([][]float32, len(s.collections))
	for i, c := range s.collections {
		text := c.Name
		if c.Description != "" {
			text += ": " + c.Description
		}
		v, err := s.embedder.Embedding(ctx, text)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to embed collection", goerr.V("collection", c.Name))
		}
		vectors[i] = v
	}

	s.vectors = vectors
	return vectors, nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.New("embedding dimensions differ", goerr.V("a", len(a)), goerr.V("b", len(b)))
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
