package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/chat"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		showQuery bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "show-query",
			Usage:       "Print the synthesized MongoDB query to stderr",
			Destination: &showQuery,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, databaseFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, persistenceFlags(&cfg)...)

	return &cli.Command{
		Name:      "ask",
		Usage:     "Answer a single question and exit",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if question == "" {
				return goerr.New("question is required")
			}

			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			db, err := cfg.newMongoDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			sessions, err := cfg.newSessionFactory(ctx, db)
			if err != nil {
				return err
			}
			defer sessions.Close(ctx)

			session, err := sessions.New(ctx, nil)
			if err != nil {
				return err
			}

			reply, err := session.Send(ctx, question)
			if err != nil {
				return goerr.Wrap(err, "failed to answer question")
			}

			if showQuery && reply.Query != "" {
				fmt.Fprintf(os.Stderr, "MongoDB query: %s\n", reply.Query)
			}
			if reply.Kind == chat.ReplyError {
				if reply.Err == nil {
					return goerr.New(reply.Text)
				}
				return goerr.Wrap(reply.Err, reply.Text)
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", reply.Text)
			return nil
		},
	}
}
