package mcp_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/adapter"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/model"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/service/mcp"
	"github.com/21kNabeelUddin/InsightDB-Conversational-SQL-Assistant/pkg/usecase/chat"
	"github.com/m-mizutani/gt"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.mongodb.org/mongo-driver/bson"
)

type mockAsker struct {
	questions []string
	sendFunc  func(ctx context.Context, question string) (*chat.Reply, error)
}

func (m *mockAsker) Send(ctx context.Context, question string) (*chat.Reply, error) {
	m.questions = append(m.questions, question)
	return m.sendFunc(ctx, question)
}

func single(asker mcp.Asker) mcp.AskerFactory {
	return func(ctx context.Context) (mcp.Asker, error) {
		return asker, nil
	}
}

func connect(t *testing.T, server *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func textOf(t *testing.T, result *mcpsdk.CallToolResult, i int) string {
	t.Helper()
	gt.True(t, len(result.Content) > i)
	text, ok := result.Content[i].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text
}

func TestListTools(t *testing.T) {
	asker := &mockAsker{}
	session := connect(t, mcp.NewServer(single(asker), model.DefaultSchema(), "test"))

	tools, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, tools.Tools).Length(2)

	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	gt.True(t, names[mcp.ToolAskDatabase])
	gt.True(t, names[mcp.ToolDescribeSchema])
}

func TestAskDatabase(t *testing.T) {
	asker := &mockAsker{sendFunc: func(ctx context.Context, question string) (*chat.Reply, error) {
		return &chat.Reply{
			Kind:  chat.ReplyAnswer,
			Text:  "Robert Baratheon's email is robert.baratheon@example.com.",
			Query: `{"name": "Robert Baratheon"}`,
		}, nil
	}}
	session := connect(t, mcp.NewServer(single(asker), model.DefaultSchema(), "test"))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolAskDatabase,
		Arguments: map[string]any{"question": "What is the email of Robert Baratheon in users?"},
	})
	gt.NoError(t, err)
	gt.False(t, result.IsError)
	gt.S(t, textOf(t, result, 0)).Contains("robert.baratheon@example.com")
	gt.Equal(t, textOf(t, result, 1), `MongoDB query: {"name": "Robert Baratheon"}`)
	gt.Equal(t, asker.questions, []string{"What is the email of Robert Baratheon in users?"})
}

func TestAskDatabaseErrorReply(t *testing.T) {
	asker := &mockAsker{sendFunc: func(ctx context.Context, question string) (*chat.Reply, error) {
		return &chat.Reply{Kind: chat.ReplyError, Text: chat.MessageNotConnected}, nil
	}}
	session := connect(t, mcp.NewServer(single(asker), model.DefaultSchema(), "test"))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolAskDatabase,
		Arguments: map[string]any{"question": "List movies"},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)
	gt.Equal(t, textOf(t, result, 0), chat.MessageNotConnected)
	gt.A(t, result.Content).Length(1)
}

func TestAskDatabaseEmptyQuestion(t *testing.T) {
	asker := &mockAsker{sendFunc: func(ctx context.Context, question string) (*chat.Reply, error) {
		return nil, chat.ErrEmptyQuestion
	}}
	session := connect(t, mcp.NewServer(single(asker), model.DefaultSchema(), "test"))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolAskDatabase,
		Arguments: map[string]any{"question": "  "},
	})
	gt.NoError(t, err)
	gt.True(t, result.IsError)
	gt.S(t, textOf(t, result, 0)).Contains("question is empty")
}

func TestDescribeSchema(t *testing.T) {
	schema := model.DefaultSchema()
	session := connect(t, mcp.NewServer(single(&mockAsker{}), schema, "test"))

	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      mcp.ToolDescribeSchema,
		Arguments: map[string]any{},
	})
	gt.NoError(t, err)
	gt.Equal(t, textOf(t, result, 0), schema.Render())
}

func TestHTTPHandler(t *testing.T) {
	ctx := context.Background()
	schema := model.DefaultSchema()
	server := mcp.NewServer(single(&mockAsker{}), schema, "test")

	testServer := httptest.NewServer(server.Handler())
	defer testServer.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: testServer.URL}, nil)
	gt.NoError(t, err)
	defer session.Close()

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolDescribeSchema,
		Arguments: map[string]any{},
	})
	gt.NoError(t, err)
	gt.S(t, textOf(t, result, 0)).Contains("Collections in sample_mflix")
}

type recordingLLM struct {
	mu      sync.Mutex
	prompts []string
}

func (m *recordingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return "{}", nil
}

func (m *recordingLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

type emptyMongoDB struct {
	adapter.MongoDB
}

func (m *emptyMongoDB) Find(ctx context.Context, collection string, filter, projection bson.D, limit int64) ([]bson.D, error) {
	return nil, nil
}

func TestHTTPClientsHaveSeparateConversations(t *testing.T) {
	ctx := context.Background()
	schema := model.DefaultSchema()
	llm := &recordingLLM{}
	db := &emptyMongoDB{}

	var mu sync.Mutex
	created := 0
	factory := func(ctx context.Context) (mcp.Asker, error) {
		mu.Lock()
		created++
		mu.Unlock()
		session, err := chat.New(ctx, chat.NewInput{LLM: llm, DB: db, Schema: schema})
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	testServer := httptest.NewServer(mcp.NewServer(factory, schema, "test").Handler())
	defer testServer.Close()

	ask := func(question string) {
		client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
		session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: testServer.URL}, nil)
		gt.NoError(t, err)
		defer session.Close()

		result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
			Name:      mcp.ToolAskDatabase,
			Arguments: map[string]any{"question": question},
		})
		gt.NoError(t, err)
		gt.False(t, result.IsError)
	}

	ask("alice secret: list users with password hunter2")
	ask("bob: list movies")

	mu.Lock()
	gt.Equal(t, created, 2)
	mu.Unlock()

	bobPrompts := 0
	for _, prompt := range llm.Prompts() {
		if strings.Contains(prompt, "bob: list movies") {
			bobPrompts++
			gt.S(t, prompt).NotContains("hunter2")
		}
	}
	gt.Equal(t, bobPrompts, 2)
}

func TestConnectCreatesSessionPerClient(t *testing.T) {
	created := 0
	factory := func(ctx context.Context) (mcp.Asker, error) {
		created++
		return &mockAsker{}, nil
	}
	server := mcp.NewServer(factory, model.DefaultSchema(), "test")

	connect(t, server)
	connect(t, server)
	gt.Equal(t, created, 2)
}
