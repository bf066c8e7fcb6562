package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestGeminiComplete(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	resp, err := client.Complete(ctx, "Hello, what is the capital of France? Answer in one word.")
	gt.NoError(t, err)
	gt.S(t, resp).Contains("Paris")

	t.Log("response:", resp)
}

func TestGeminiEmbedding(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	client, err := adapter.NewGemini(ctx, projectID, "us-central1")
	gt.NoError(t, err)

	vec, err := client.Embedding(ctx, "movies released in 1999")
	gt.NoError(t, err)
	gt.True(t, len(vec) > 0)
}
