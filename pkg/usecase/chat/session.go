package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/policy"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/repository"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/router"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Greeting returns the first system turn of a new conversation
func Greeting(database string) string {
	return fmt.Sprintf("Hello! I'm a MongoDB assistant. Ask me anything about the %s database.", database)
}

// Session runs the question pipeline for one conversation. Turns are serialized.
type Session struct {
	mu sync.Mutex

	db      adapter.MongoDB
	repo    repository.Repository
	storage adapter.Storage

	query      *queryGenerator
	dispatcher *dispatcher
	answer     *answerGenerator

	history *model.History
}

// NewInput contains parameters for creating a new chat session
type NewInput struct {
	LLM    adapter.LLM
	DB     adapter.MongoDB // nil until connected; questions are refused without it
	Schema *model.Schema

	// Router defaults to keyword routing over the schema's collection names
	Router router.Router
	// Policy is optional
	Policy *policy.Filter

	// Repo and Storage enable history persistence when both are set
	Repo    repository.Repository
	Storage adapter.Storage

	HistoryID *model.HistoryID // Optional: specify to continue existing conversation

	LLMTimeout   time.Duration
	DBTimeout    time.Duration
	MaxDocuments int64
}

func New(ctx context.Context, input NewInput) (*Session, error) {
	if input.LLM == nil {
		return nil, goerr.New("LLM is required")
	}
	if input.Schema == nil {
		return nil, goerr.New("schema is required")
	}
	if err := input.Schema.Validate(); err != nil {
		return nil, err
	}

	rt := input.Router
	if rt == nil {
		rt = router.NewKeyword(input.Schema.Names()...)
	}

	s := &Session{
		db:      input.DB,
		repo:    input.Repo,
		storage: input.Storage,

		query: newQueryGenerator(input.LLM, input.Schema, input.LLMTimeout),
		dispatcher: &dispatcher{
			db:           input.DB,
			router:       rt,
			policy:       input.Policy,
			timeout:      input.DBTimeout,
			maxDocuments: input.MaxDocuments,
		},
		answer: newAnswerGenerator(input.LLM, input.Schema, input.LLMTimeout),
	}

	if input.HistoryID != nil {
		if !s.persistent() {
			return nil, goerr.New("repository and storage are required to resume a conversation",
				goerr.V("history_id", *input.HistoryID))
		}
		history, err := loadHistory(ctx, s.repo, s.storage, *input.HistoryID)
		if err != nil {
			return nil, err
		}
		s.history = history
	} else {
		s.history = model.NewHistory(input.Schema.Database, Greeting(input.Schema.Database))
	}

	return s, nil
}

// History returns a copy of the transcript
func (s *Session) History() *model.History {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := *s.history
	h.Turns = s.history.Snapshot()
	return &h
}

// Send runs one turn: synthesize a query, execute it, synthesize the answer.
// An empty question is a Go error; every other failure is reported as an error reply.
func (s *Session) Send(ctx context.Context, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logging.From(ctx).With("history_id", s.history.ID)
	ctx = logging.With(ctx, logger)

	if err := s.history.Append(model.NewTurn(model.RoleUser, question)); err != nil {
		return nil, err
	}
	defer s.save(ctx)

	if s.db == nil {
		return errorReply(nil, MessageNotConnected), nil
	}

	turns := s.history.Snapshot()

	queryText, err := s.query.Generate(ctx, question, turns)
	if err != nil {
		logger.Error("failed to synthesize query", "error", err)
		return errorReply(err, failureText(err)), nil
	}
	logger.Debug("generated mongodb query", "query", queryText)

	outcome := s.dispatcher.Execute(ctx, queryText, question)
	if !outcome.Success {
		logger.Debug("query failed", "kind", outcome.Kind, "message", outcome.Message)
	}

	answer, err := s.answer.Generate(ctx, question, turns, queryText, outcome)
	if err != nil {
		logger.Error("failed to synthesize answer", "error", err)
		reply := errorReply(err, failureText(err))
		reply.Query = queryText
		reply.Outcome = outcome
		return reply, nil
	}

	if err := s.history.Append(model.NewTurn(model.RoleSystem, answer)); err != nil {
		return nil, err
	}

	return &Reply{
		Kind:    ReplyAnswer,
		Text:    answer,
		Query:   queryText,
		Outcome: outcome,
	}, nil
}

func (s *Session) persistent() bool {
	return s.repo != nil && s.storage != nil
}

func (s *Session) save(ctx context.Context) {
	if !s.persistent() {
		return
	}
	if err := saveHistory(ctx, s.repo, s.storage, s.history); err != nil {
		logging.From(ctx).Warn("failed to save history", "error", err)
	}
}

func failureText(err error) string {
	if goerr.HasTag(err, TagModelInvocation) {
		return "Sorry, the language model could not be reached: " + err.Error()
	}
	return "Sorry, something went wrong: " + err.Error()
}
