package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/chat"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		historyID string
		showQuery bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "history-id",
			Aliases:     []string{"id"},
			Usage:       "Conversation ID to resume",
			Sources:     cli.EnvVars("INSIGHTDB_HISTORY_ID"),
			Destination: &historyID,
		},
		&cli.BoolFlag{
			Name:        "show-query",
			Usage:       "Print the synthesized MongoDB query before each answer",
			Destination: &showQuery,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, databaseFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, persistenceFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive conversation with the database",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}
			w := c.Root().Writer

			// A failed connection does not stop the session; questions are refused until restart
			fmt.Fprintf(w, "Connecting to MongoDB...\n")
			var db adapter.MongoDB
			if conn, err := cfg.newMongoDB(ctx); err != nil {
				logging.From(ctx).Error("failed to connect to MongoDB", "error", err)
				fmt.Fprintf(w, "Connection failed: %v\n", err)
			} else {
				db = conn
				defer func() {
					if err := db.Close(context.Background()); err != nil {
						logging.From(ctx).Warn("failed to close MongoDB connection", "error", err)
					}
				}()
				fmt.Fprintf(w, "Connected to MongoDB!\n")
			}

			var resume *model.HistoryID
			if historyID != "" {
				id := model.HistoryID(historyID)
				resume = &id
			}

			sessions, err := cfg.newSessionFactory(ctx, db)
			if err != nil {
				return err
			}
			defer sessions.Close(ctx)

			session, err := sessions.New(ctx, resume)
			if err != nil {
				return err
			}

			history := session.History()
			for _, turn := range history.Turns {
				printTurn(w, turn)
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			fmt.Fprintf(w, "Type 'exit' to quit.\n")
			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					if line == "" {
						break
					}
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				reply, err := ask(ctx, w, session, message)
				if err != nil {
					return err
				}

				if showQuery && reply.Query != "" {
					fmt.Fprintf(w, "MongoDB query: %s\n", reply.Query)
				}
				if reply.Kind == chat.ReplyError {
					fmt.Fprintf(w, "❌ %s\n", reply.Text)
					continue
				}
				fmt.Fprintf(w, "%s\n", reply.Text)
			}

			fmt.Fprintf(w, "\nChat session completed (history: %s)\n", session.History().ID)
			return nil
		},
	}
}

// ask runs one turn with a spinner on w
func ask(ctx context.Context, w io.Writer, session *chat.Session, question string) (*chat.Reply, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " thinking..."
	s.Start()
	defer s.Stop()

	reply, err := session.Send(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send message")
	}
	return reply, nil
}

func printTurn(w io.Writer, turn *model.Turn) {
	switch turn.Role {
	case model.RoleSystem:
		fmt.Fprintf(w, "AI: %s\n", turn.Content)
	case model.RoleUser:
		fmt.Fprintf(w, "You: %s\n", turn.Content)
	}
}
