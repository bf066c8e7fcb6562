package cli

import (
	"context"
	"os"
	"time"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/policy"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/repository"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/router"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/service/mcp"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/chat"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	project       string
	firestoreDB   string
	historyBucket string

	// Database
	mongoURI     string
	database     string
	schemaFile   string
	policyDir    string
	routerKind   string
	dbTimeout    time.Duration
	maxDocuments int64

	// Adapters
	llmProvider    string
	llmTimeout     time.Duration
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string
	openaiBaseURL  string
	openaiModel    string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("INSIGHTDB_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("INSIGHTDB_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// persistenceFlags returns flags for conversation history storage
func persistenceFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDB,
		},
		&cli.StringFlag{
			Name:        "history-bucket",
			Usage:       "Cloud Storage bucket for conversation transcripts. Persistence is off when empty",
			Sources:     cli.EnvVars("INSIGHTDB_HISTORY_BUCKET"),
			Destination: &cfg.historyBucket,
		},
	}
}

// databaseFlags returns flags for the MongoDB connection and query execution
func databaseFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "mongodb-uri",
			Usage:       "MongoDB connection string",
			Sources:     cli.EnvVars("INSIGHTDB_MONGODB_URI", "MONGODB_CONNECTION_STRING"),
			Destination: &cfg.mongoURI,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "MongoDB database name",
			Value:       "sample_mflix",
			Sources:     cli.EnvVars("INSIGHTDB_DATABASE"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "schema-file",
			Usage:       "YAML schema descriptor. The built-in sample_mflix schema is used when empty",
			Sources:     cli.EnvVars("INSIGHTDB_SCHEMA_FILE"),
			Destination: &cfg.schemaFile,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego files defining data.insightdb.filter.deny",
			Sources:     cli.EnvVars("INSIGHTDB_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "router",
			Usage:       "Collection router (keyword, llm, similarity)",
			Value:       "keyword",
			Sources:     cli.EnvVars("INSIGHTDB_ROUTER"),
			Destination: &cfg.routerKind,
		},
		&cli.DurationFlag{
			Name:        "db-timeout",
			Usage:       "Timeout of a single database query (0 disables)",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("INSIGHTDB_DB_TIMEOUT"),
			Destination: &cfg.dbTimeout,
		},
		&cli.IntFlag{
			Name:        "max-documents",
			Usage:       "Maximum number of documents passed to the answer (0 means unbounded)",
			Value:       0,
			Sources:     cli.EnvVars("INSIGHTDB_MAX_DOCUMENTS"),
			Destination: &cfg.maxDocuments,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("INSIGHTDB_LLM_PROVIDER"),
			Destination: &cfg.llmProvider,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Timeout of a single LLM call (0 disables)",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("INSIGHTDB_LLM_TIMEOUT"),
			Destination: &cfg.llmTimeout,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "API key of the OpenAI-compatible endpoint",
			Sources:     cli.EnvVars("INSIGHTDB_OPENAI_API_KEY", "GROQ_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of the OpenAI-compatible endpoint",
			Value:       adapter.DefaultOpenAIBaseURL,
			Sources:     cli.EnvVars("INSIGHTDB_OPENAI_BASE_URL"),
			Destination: &cfg.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "Model name on the OpenAI-compatible endpoint",
			Value:       adapter.DefaultOpenAIModel,
			Sources:     cli.EnvVars("INSIGHTDB_OPENAI_MODEL"),
			Destination: &cfg.openaiModel,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) (context.Context, error) {
	logger, err := logging.NewWithFormat(cfg.logLevel, cfg.logFormat, os.Stderr)
	if err != nil {
		return ctx, err
	}
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

// newPersistence returns the repository and storage, or nils when no bucket is configured
func (cfg *config) newPersistence(ctx context.Context) (*repository.Firestore, adapter.Storage, error) {
	if cfg.historyBucket == "" {
		return nil, nil, nil
	}

	repo, err := cfg.newRepository()
	if err != nil {
		return nil, nil, err
	}

	storage, err := cfg.newStorage(ctx, cfg.historyBucket)
	if err != nil {
		closeRepository(ctx, repo)
		return nil, nil, err
	}

	return repo, storage, nil
}

// newRepository creates a new repository instance. The caller closes it.
func (cfg *config) newRepository() (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.firestoreDB == "" {
		return nil, goerr.New("firestore-database is required")
	}

	repo, err := repository.New(cfg.project, cfg.firestoreDB)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

func closeRepository(ctx context.Context, repo *repository.Firestore) {
	if repo == nil {
		return
	}
	if err := repo.Close(); err != nil {
		logging.From(ctx).Warn("failed to close repository", "error", err)
	}
}

// newStorage creates a new Storage adapter instance
func (cfg *config) newStorage(ctx context.Context, bucketName string) (adapter.Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	storage, err := adapter.NewStorage(ctx, bucketName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini client")
	}
	return gemini, nil
}

// newLLM creates the completion client selected by llm-provider
func (cfg *config) newLLM(ctx context.Context) (adapter.LLM, error) {
	switch cfg.llmProvider {
	case "gemini":
		return cfg.newGemini(ctx)

	case "openai":
		if cfg.openaiAPIKey == "" {
			return nil, goerr.New("openai-api-key is required")
		}
		return adapter.NewOpenAI(cfg.openaiAPIKey,
			adapter.WithOpenAIBaseURL(cfg.openaiBaseURL),
			adapter.WithOpenAIModel(cfg.openaiModel),
		), nil

	default:
		return nil, goerr.New("unsupported llm-provider",
			goerr.V("provider", cfg.llmProvider),
			goerr.V("supported", []string{"gemini", "openai"}))
	}
}

// newMongoDB connects to the configured database
func (cfg *config) newMongoDB(ctx context.Context) (adapter.MongoDB, error) {
	if cfg.mongoURI == "" {
		return nil, goerr.New("mongodb-uri is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := adapter.NewMongoDB(ctx, cfg.mongoURI, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to MongoDB", goerr.V("database", cfg.database))
	}
	return db, nil
}

// loadSchema reads the schema file, or returns the built-in schema renamed to the configured database
func (cfg *config) loadSchema() (*model.Schema, error) {
	if cfg.schemaFile == "" {
		schema := model.DefaultSchema()
		if cfg.database != "" {
			schema.Database = cfg.database
		}
		return schema, nil
	}

	return model.LoadSchema(cfg.schemaFile)
}

// newPolicy loads Rego rules from policy-dir. nil means no policy.
func (cfg *config) newPolicy(ctx context.Context) (*policy.Filter, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}
	f, err := policy.Load(ctx, cfg.policyDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load policy", goerr.V("dir", cfg.policyDir))
	}
	return f, nil
}

// newRouter builds the collection router selected by the router flag
func (cfg *config) newRouter(ctx context.Context, llm adapter.LLM, schema *model.Schema) (router.Router, error) {
	switch cfg.routerKind {
	case "", "keyword":
		return router.NewKeyword(schema.Names()...), nil

	case "llm":
		return router.NewLLM(llm, schema.Collections), nil

	case "similarity":
		embedder, ok := llm.(router.Embedder)
		if !ok {
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return nil, goerr.Wrap(err, "similarity router needs Gemini embeddings")
			}
			embedder = gemini
		}
		return router.NewSimilarity(embedder, schema.Collections), nil

	default:
		return nil, goerr.New("unsupported router",
			goerr.V("router", cfg.routerKind),
			goerr.V("supported", []string{"keyword", "llm", "similarity"}))
	}
}

// sessionFactory holds the dependencies shared by every chat session of one command.
// Each session it creates owns its own conversation history.
type sessionFactory struct {
	cfg     *config
	db      adapter.MongoDB
	schema  *model.Schema
	llm     adapter.LLM
	router  router.Router
	policy  *policy.Filter
	repo    *repository.Firestore
	storage adapter.Storage
}

// newSessionFactory wires the shared dependencies of chat sessions. db may be nil.
func (cfg *config) newSessionFactory(ctx context.Context, db adapter.MongoDB) (*sessionFactory, error) {
	schema, err := cfg.loadSchema()
	if err != nil {
		return nil, err
	}

	llm, err := cfg.newLLM(ctx)
	if err != nil {
		return nil, err
	}

	rt, err := cfg.newRouter(ctx, llm, schema)
	if err != nil {
		return nil, err
	}

	filterPolicy, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, err
	}

	repo, storage, err := cfg.newPersistence(ctx)
	if err != nil {
		return nil, err
	}

	return &sessionFactory{
		cfg:     cfg,
		db:      db,
		schema:  schema,
		llm:     llm,
		router:  rt,
		policy:  filterPolicy,
		repo:    repo,
		storage: storage,
	}, nil
}

// Close releases the persistence clients
func (f *sessionFactory) Close(ctx context.Context) {
	closeRepository(ctx, f.repo)
}

// asker creates a fresh conversation for one MCP client session
func (f *sessionFactory) asker(ctx context.Context) (mcp.Asker, error) {
	session, err := f.New(ctx, nil)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// New creates a chat session, resuming historyID when it is set
func (f *sessionFactory) New(ctx context.Context, historyID *model.HistoryID) (*chat.Session, error) {
	input := chat.NewInput{
		LLM:          f.llm,
		DB:           f.db,
		Schema:       f.schema,
		Router:       f.router,
		Policy:       f.policy,
		HistoryID:    historyID,
		LLMTimeout:   f.cfg.llmTimeout,
		DBTimeout:    f.cfg.dbTimeout,
		MaxDocuments: f.cfg.maxDocuments,
	}
	if f.repo != nil {
		input.Repo = f.repo
		input.Storage = f.storage
	}

	session, err := chat.New(ctx, input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat session")
	}
	return session, nil
}
