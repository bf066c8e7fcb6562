package chat

import (
	"context"
	"errors"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/filter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/policy"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/router"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// dispatcher routes a question to a collection, parses the synthesized query and runs it.
// Every failure becomes a Failure outcome; nothing here aborts the turn.
type dispatcher struct {
	db           adapter.MongoDB
	router       router.Router
	policy       *policy.Filter
	timeout      time.Duration
	maxDocuments int64
}

func (d *dispatcher) Execute(ctx context.Context, queryText, question string) *model.Outcome {
	logger := logging.From(ctx)

	collection, err := d.router.Route(ctx, question)
	if err != nil {
		if errors.Is(err, router.ErrCollectionUnresolved) {
			logger.Info("no collection matched the question")
			return model.Failed(model.FailureCollectionUnresolved, model.MessageCollectionUnspecified)
		}
		err = goerr.Wrap(err, "failed to route question", goerr.T(TagModelInvocation))
		logger.Warn("failed to route question", "error", err)
		return model.Failed(model.FailureRouting, err.Error())
	}
	logger = logger.With("collection", collection)

	q, err := filter.Parse(queryText)
	if err != nil {
		logger.Info("failed to parse query", "error", err)
		return model.Failed(model.FailureFilterParse, err.Error())
	}
	if q.Collection != "" && q.Collection != collection {
		logger.Debug("query names another collection, keeping routed one", "query_collection", q.Collection)
	}

	if err := d.policy.Evaluate(ctx, policy.Input{
		Collection: collection,
		Filter:     q.Filter,
		Question:   question,
	}); err != nil {
		logger.Warn("query rejected by policy", "error", err)
		return model.Failed(model.FailureFilterParse, err.Error())
	}

	limit := int64(0)
	if d.maxDocuments > 0 {
		limit = d.maxDocuments + 1
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	docs, err := d.db.Find(ctx, collection, q.Filter, q.Projection, limit)
	if err != nil {
		logger.Warn("failed to execute query", "error", err)
		return model.Failed(model.FailureQueryExecution, err.Error())
	}

	truncated := false
	if d.maxDocuments > 0 && int64(len(docs)) > d.maxDocuments {
		docs = docs[:d.maxDocuments]
		truncated = true
	}

	logger.Info("query executed", "documents", len(docs), "truncated", truncated)
	return model.Succeeded(collection, docs, truncated)
}
