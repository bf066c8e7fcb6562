package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// TagTranscriptInvariant marks errors raised when an append would break the transcript shape
	TagTranscriptInvariant = goerr.NewTag("transcript_invariant")

	ErrTranscriptInvariant = goerr.New("transcript invariant violation", goerr.T(TagTranscriptInvariant))
)

const maxTitleLength = 64

type HistoryID string

// NewHistoryID generates a new unique HistoryID
func NewHistoryID() HistoryID {
	return HistoryID(uuid.New().String())
}

// History is an append-only conversation transcript. The first turn is always a system greeting.
type History struct {
	ID        HistoryID
	Title     string
	Database  string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Turns are stored in object storage, not in the metadata document
	Turns []*Turn `firestore:"-"`
}

// NewHistory starts a transcript with the given greeting as its first system turn
func NewHistory(database, greeting string) *History {
	now := time.Now()
	return &History{
		ID:        NewHistoryID(),
		Database:  database,
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     []*Turn{NewTurn(RoleSystem, greeting)},
	}
}

// Append adds a turn to the end of the transcript
func (h *History) Append(turn *Turn) error {
	if turn == nil {
		return goerr.Wrap(ErrTranscriptInvariant, "turn is nil")
	}
	if len(h.Turns) == 0 && turn.Role != RoleSystem {
		return goerr.Wrap(ErrTranscriptInvariant, "first turn must be system-origin", goerr.V("role", turn.Role))
	}
	switch turn.Role {
	case RoleSystem, RoleUser:
	default:
		return goerr.Wrap(ErrTranscriptInvariant, "unknown turn role", goerr.V("role", turn.Role))
	}

	if h.Title == "" && turn.Role == RoleUser {
		h.Title = truncateTitle(turn.Content)
	}

	h.Turns = append(h.Turns, turn)
	h.UpdatedAt = time.Now()
	return nil
}

// Validate checks the transcript shape of a history loaded from storage
func (h *History) Validate() error {
	if len(h.Turns) == 0 {
		return goerr.Wrap(ErrTranscriptInvariant, "history has no turns", goerr.V("history_id", h.ID))
	}
	if h.Turns[0].Role != RoleSystem {
		return goerr.Wrap(ErrTranscriptInvariant, "first turn must be system-origin",
			goerr.V("history_id", h.ID),
			goerr.V("role", h.Turns[0].Role))
	}
	return nil
}

// Snapshot returns a copy of the turn list that is safe to hand to prompt builders
func (h *History) Snapshot() []*Turn {
	turns := make([]*Turn, len(h.Turns))
	copy(turns, h.Turns)
	return turns
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTitleLength {
		return s
	}
	return string(runes[:maxTitleLength]) + "..."
}
