package chat

import (
	"context"
	"encoding/json"
	"io"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

func historyKey(id model.HistoryID) string {
	return "histories/" + string(id) + ".json"
}

// loadHistory loads conversation metadata from the repository and turns from Cloud Storage
func loadHistory(ctx context.Context, repo repository.Repository, storage adapter.Storage, historyID model.HistoryID) (*model.History, error) {
	history, err := repo.GetHistory(ctx, historyID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get history from repository")
	}

	reader, err := storage.Get(ctx, historyKey(historyID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get history from storage")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read history data")
	}

	var turns []*model.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal history turns")
	}

	history.Turns = turns
	if err := history.Validate(); err != nil {
		return nil, err
	}
	return history, nil
}

// saveHistory writes turns to Cloud Storage first, then the metadata document
func saveHistory(ctx context.Context, repo repository.Repository, storage adapter.Storage, history *model.History) error {
	data, err := json.Marshal(history.Turns)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal history turns")
	}

	writer, err := storage.Put(ctx, historyKey(history.ID))
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer")
	}

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write history to storage")
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer")
	}

	if err := repo.PutHistory(ctx, history); err != nil {
		return goerr.Wrap(err, "failed to put history to repository")
	}

	return nil
}
