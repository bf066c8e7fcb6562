package chat

import (
	"bytes"
	"context"
	_ "embed"
	"text/template"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/answer.md
var answerPromptRaw string

var answerPromptTmpl = template.Must(template.New("answer").Parse(answerPromptRaw))

// answerGenerator turns the executed query and its outcome into a natural language answer.
// The prompt carries only the schema summary, not the full descriptor.
type answerGenerator struct {
	llm     adapter.LLM
	schema  string
	timeout time.Duration
}

func newAnswerGenerator(llm adapter.LLM, schema *model.Schema, timeout time.Duration) *answerGenerator {
	return &answerGenerator{
		llm:     llm,
		schema:  schema.Summary(),
		timeout: timeout,
	}
}

func (g *answerGenerator) Generate(ctx context.Context, question string, history []*model.Turn, queryText string, outcome *model.Outcome) (string, error) {
	var buf bytes.Buffer
	if err := answerPromptTmpl.Execute(&buf, map[string]any{
		"Schema":   g.schema,
		"History":  history,
		"Query":    queryText,
		"Question": question,
		"Response": outcome.Render(),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute answer prompt template")
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.llm.Complete(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate answer", goerr.T(TagModelInvocation))
	}
	return text, nil
}
