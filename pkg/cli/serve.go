package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/service/mcp"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg       config
		transport string
		addr      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "transport",
			Usage:       "MCP transport (stdio, http)",
			Value:       "stdio",
			Sources:     cli.EnvVars("INSIGHTDB_MCP_TRANSPORT"),
			Destination: &transport,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address for the http transport",
			Value:       "127.0.0.1:8080",
			Sources:     cli.EnvVars("INSIGHTDB_MCP_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, databaseFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, persistenceFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the assistant as MCP tools",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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

			server := mcp.NewServer(sessions.asker, sessions.schema, version)

			switch transport {
			case "stdio":
				logging.From(ctx).Info("serving MCP over stdio", "database", sessions.schema.Database)
				return server.Run(ctx)

			case "http":
				return serveHTTP(ctx, addr, server.Handler())

			default:
				return goerr.New("unsupported transport",
					goerr.V("transport", transport),
					goerr.V("supported", []string{"stdio", "http"}))
			}
		},
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.From(ctx).Info("serving MCP over http", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return goerr.Wrap(err, "http server stopped", goerr.V("addr", addr))

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shutdown http server")
		}
		return nil
	}
}
