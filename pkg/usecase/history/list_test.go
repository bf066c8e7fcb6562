package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/repository"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/history"
	"github.com/m-mizutani/gt"
)

type mockRepository struct {
	repository.Repository
	listFunc func(ctx context.Context, offset, limit int) ([]*model.History, error)
}

func (m *mockRepository) ListHistory(ctx context.Context, offset, limit int) ([]*model.History, error) {
	return m.listFunc(ctx, offset, limit)
}

func TestList(t *testing.T) {
	var gotOffset, gotLimit int
	repo := &mockRepository{listFunc: func(ctx context.Context, offset, limit int) ([]*model.History, error) {
		gotOffset, gotLimit = offset, limit
		return []*model.History{model.NewHistory("sample_mflix", "Hello!")}, nil
	}}

	histories, err := history.List(context.Background(), repo, 5, 0)
	gt.NoError(t, err)
	gt.A(t, histories).Length(1)
	gt.Equal(t, gotOffset, 5)
	gt.Equal(t, gotLimit, history.DefaultLimit)
}

func TestListErrors(t *testing.T) {
	repo := &mockRepository{listFunc: func(ctx context.Context, offset, limit int) ([]*model.History, error) {
		return nil, errors.New("unavailable")
	}}

	_, err := history.List(context.Background(), repo, 0, 10)
	gt.Error(t, err)

	_, err = history.List(context.Background(), repo, -1, 10)
	gt.Error(t, err)
}
