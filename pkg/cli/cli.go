package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "insightdb",
		Usage:   "Ask questions about a MongoDB database in natural language",
		Version: version,
		Commands: []*cli.Command{
			chatCommand(),
			askCommand(),
			schemaCommand(),
			historyCommand(),
			serveCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
