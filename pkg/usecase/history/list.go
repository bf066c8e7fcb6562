package history

import (
	"context"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/repository"
	"github.com/m-mizutani/goerr/v2"
)

const DefaultLimit = 20

// List returns stored conversations, newest first
func List(
	ctx context.Context,
	repo repository.Repository,
	offset, limit int,
) ([]*model.History, error) {
	if offset < 0 {
		return nil, goerr.New("offset must not be negative", goerr.V("offset", offset))
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	histories, err := repo.ListHistory(ctx, offset, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list histories")
	}
	return histories, nil
}
