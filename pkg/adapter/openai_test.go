package adapter_test

import (
	"context"
	"os"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/m-mizutani/gt"
)

func TestOpenAIComplete(t *testing.T) {
	apiKey := os.Getenv("TEST_GROQ_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_GROQ_API_KEY is not set")
	}

	client := adapter.NewOpenAI(apiKey)
	resp, err := client.Complete(context.Background(), "Reply with the single word: pong")
	gt.NoError(t, err)
	gt.S(t, resp).Contains("pong")
}
