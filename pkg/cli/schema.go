package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func schemaCommand() *cli.Command {
	var (
		cfg   config
		check bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check",
			Usage:       "Connect to the database and verify every described collection exists",
			Destination: &check,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, databaseFlags(&cfg)...)

	return &cli.Command{
		Name:  "schema",
		Usage: "Print the schema descriptor used to prompt the model",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx)
			if err != nil {
				return err
			}

			schema, err := cfg.loadSchema()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "%s\n", schema.Render())

			if !check {
				return nil
			}

			db, err := cfg.newMongoDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close(context.Background())

			names, err := db.ListCollectionNames(ctx)
			if err != nil {
				return err
			}

			var missing []string
			for _, name := range schema.Names() {
				if !slices.Contains(names, name) {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				return goerr.New("collections not found in database",
					goerr.V("database", db.Name()),
					goerr.V("missing", missing))
			}

			fmt.Fprintf(w, "\nAll %d collections exist in %s\n", len(schema.Names()), db.Name())
			return nil
		},
	}
}
