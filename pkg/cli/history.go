package cli

import (
	"context"
	"fmt"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/history"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Offset for pagination",
			Value:       0,
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"l"},
			Usage:       "Maximum number of conversations to list",
			Value:       history.DefaultLimit,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, persistenceFlags(&cfg)...)

	return &cli.Command{
		Name:  "history",
		Usage: "List stored conversations",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}
			defer closeRepository(ctx, repo)

			histories, err := history.List(ctx, repo, int(offset), int(limit))
			if err != nil {
				return err
			}

			if len(histories) == 0 {
				fmt.Fprintf(c.Root().Writer, "No conversation histories found\n")
				return nil
			}

			for _, h := range histories {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%s\t%s\n",
					h.ID,
					h.Database,
					h.Title,
					h.CreatedAt.Format("2006-01-02 15:04:05"),
					h.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}

			return nil
		},
	}
}
