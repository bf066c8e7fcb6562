package repository

import (
	"context"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = goerr.New("not found")

// Repository defines the interface for conversation metadata persistence.
// Turns themselves live in object storage; see chat.Session.
type Repository interface {
	// PutHistory saves a conversation history to the repository
	PutHistory(ctx context.Context, history *model.History) error

	// GetHistory retrieves a conversation history by ID
	GetHistory(ctx context.Context, id model.HistoryID) (*model.History, error)

	// ListHistory retrieves conversation histories, newest first
	ListHistory(ctx context.Context, offset, limit int) ([]*model.History, error)
}
