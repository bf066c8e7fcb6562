package mcp

import (
	"context"
	"net/http"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/chat"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolAskDatabase    = "ask_database"
	ToolDescribeSchema = "describe_schema"
)

// Asker runs one conversation turn. *chat.Session satisfies it.
type Asker interface {
	Send(ctx context.Context, question string) (*chat.Reply, error)
}

// AskerFactory creates the conversation backing one MCP client session
type AskerFactory func(ctx context.Context) (Asker, error)

// Server exposes chat sessions as MCP tools. Every client session gets its own Asker.
type Server struct {
	newAsker AskerFactory
	schema   *model.Schema
	version  string
}

type askDatabaseParams struct {
	Question string `json:"question" jsonschema:"Natural language question about the database"`
}

type describeSchemaParams struct{}

// NewServer creates an MCP server with the ask_database and describe_schema tools
func NewServer(newAsker AskerFactory, schema *model.Schema, version string) *Server {
	return &Server{
		newAsker: newAsker,
		schema:   schema,
		version:  version,
	}
}

// build creates an SDK server whose tools are bound to asker
func (s *Server) build(asker Asker) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "insightdb",
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAskDatabase,
		Description: "Answer a natural language question about the " + s.schema.Database + " MongoDB database",
	}, func(ctx context.Context, req *mcp.CallToolRequest, params *askDatabaseParams) (*mcp.CallToolResult, any, error) {
		return askDatabase(ctx, asker, params)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolDescribeSchema,
		Description: "Describe the collections and fields of the " + s.schema.Database + " MongoDB database",
	}, s.describeSchema)

	return server
}

func (s *Server) session(ctx context.Context) (*mcp.Server, error) {
	asker, err := s.newAsker(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat session")
	}
	return s.build(asker), nil
}

// Run serves a single client over stdio until it disconnects or ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	server, err := s.session(ctx)
	if err != nil {
		return err
	}
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Handler returns a streamable HTTP handler. The SDK asks for a server once per new
// MCP session, so each client conversation keeps its own history.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		server, err := s.session(r.Context())
		if err != nil {
			logging.From(r.Context()).Error("failed to start mcp session", "error", err)
			return nil
		}
		return server
	}, nil)
}

// Connect attaches a new client session to an arbitrary transport
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	server, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	session, err := server.Connect(ctx, t, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect mcp server")
	}
	return session, nil
}

func askDatabase(ctx context.Context, asker Asker, params *askDatabaseParams) (*mcp.CallToolResult, any, error) {
	reply, err := asker.Send(ctx, params.Question)
	if err != nil {
		logging.From(ctx).Info("ask_database rejected", "error", err)
		return textResult(err.Error(), true), nil, nil
	}

	result := textResult(reply.Text, reply.Kind == chat.ReplyError)
	if reply.Query != "" {
		result.Content = append(result.Content, &mcp.TextContent{Text: "MongoDB query: " + reply.Query})
	}
	return result, nil, nil
}

func (s *Server) describeSchema(ctx context.Context, req *mcp.CallToolRequest, params *describeSchemaParams) (*mcp.CallToolResult, any, error) {
	return textResult(s.schema.Render(), false), nil, nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: isError,
	}
}
