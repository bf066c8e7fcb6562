package router

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/route.md
var routePromptRaw string

var routePromptTmpl = template.Must(template.New("route").Parse(routePromptRaw))

// LLM asks the model to classify the question. The reply must name one of the known collections.
type LLM struct {
	llm         Completer
	collections []model.Collection
}

func NewLLM(llm Completer, collections []model.Collection) *LLM {
	return &LLM{llm: llm, collections: collections}
}

func (r *LLM) Route(ctx context.Context, question string) (string, error) {
	var buf bytes.Buffer
	if err := routePromptTmpl.Execute(&buf, struct {
		Collections []model.Collection
		Question    string
	}{
		Collections: r.collections,
		Question:    question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to render route prompt")
	}

	reply, err := r.llm.Complete(ctx, buf.String())
	if err != nil {
		return "", goerr.Wrap(err, "failed to classify question")
	}

	name := strings.ToLower(strings.Trim(strings.TrimSpace(reply), "`'\"."))
	for _, c := range r.collections {
		if strings.EqualFold(c.Name, name) {
			return c.Name, nil
		}
	}

	logging.From(ctx).Debug("model did not name a known collection", "reply", reply)
	return "", ErrCollectionUnresolved
}
