package chat

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/query.md
var queryPromptRaw string

var queryPromptTmpl = template.Must(template.New("query").Parse(queryPromptRaw))

// queryGenerator asks the model for a filter that answers the question
type queryGenerator struct {
	llm     adapter.LLM
	schema  string
	timeout time.Duration
}

func newQueryGenerator(llm adapter.LLM, schema *model.Schema, timeout time.Duration) *queryGenerator {
	return &queryGenerator{
		llm:     llm,
		schema:  schema.Render(),
		timeout: timeout,
	}
}

// Generate returns the model output verbatim
func (g *queryGenerator) Generate(ctx context.Context, question string, history []*model.Turn) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	var buf bytes.Buffer
	if err := queryPromptTmpl.Execute(&buf, map[string]any{
		"Schema":   g.schema,
		"History":  history,
		"Question": question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute query prompt template")
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.llm.Complete(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate query", goerr.T(TagModelInvocation))
	}
	return text, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
