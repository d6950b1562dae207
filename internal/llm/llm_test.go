package llm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/comigor/nl2sql-go/internal/config"
	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

type mockLLM struct {
	calls []openai.ChatCompletionResponse
	err   error
	reqs  []openai.ChatCompletionRequest
}

func (m *mockLLM) CreateChatCompletion(_ context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.reqs = append(m.reqs, r)
	if m.err != nil {
		return openai.ChatCompletionResponse{}, m.err
	}
	if len(m.calls) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}
	resp := m.calls[0]
	m.calls = m.calls[1:]
	return resp, nil
}

var queryDef = tools.Definition{
	Name:        tools.QueryToolName,
	Description: "run a query",
	Parameters:  tools.GenerateSchema(&tools.QueryArgs{}),
}

func sampleHistory() []conversation.Message {
	call := conversation.ToolCall{ID: "abc123", Name: tools.ListTablesToolName, Args: map[string]any{}}
	return []conversation.Message{
		conversation.NewSystem("you write sql"),
		conversation.NewHuman("how many customers?"),
		conversation.NewAssistant("", call),
		conversation.NewToolResult(call, "customers, invoices", false),
	}
}

func TestOpenAIGenerator_ToolCall(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ToolCall{{
				ID:       "call_1",
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: tools.QueryToolName, Arguments: `{"query":"SELECT count(*) FROM customers"}`},
			}},
		}}},
	}}}
	g := NewOpenAIGenerator(mock, "llama3-70b-8192", 0)

	msg, err := g.Generate(context.Background(), sampleHistory(), []tools.Definition{queryDef})
	require.NoError(t, err)
	require.Equal(t, conversation.RoleAssistant, msg.Role)
	require.Len(t, msg.ToolCalls, 1)
	require.Equal(t, "call_1", msg.ToolCalls[0].ID)
	q, _ := msg.ToolCalls[0].StringArg("query")
	require.Equal(t, "SELECT count(*) FROM customers", q)

	require.Len(t, mock.reqs, 1)
	req := mock.reqs[0]
	require.Equal(t, "llama3-70b-8192", req.Model)
	require.Equal(t, float32(math.SmallestNonzeroFloat32), req.Temperature)
	require.Len(t, req.Tools, 1)
	require.Equal(t, tools.QueryToolName, req.Tools[0].Function.Name)

	require.Len(t, req.Messages, 4)
	require.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	require.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	require.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
	require.Equal(t, "abc123", req.Messages[2].ToolCalls[0].ID)
	require.Equal(t, "{}", req.Messages[2].ToolCalls[0].Function.Arguments)
	require.Equal(t, openai.ChatMessageRoleTool, req.Messages[3].Role)
	require.Equal(t, "abc123", req.Messages[3].ToolCallID)
	require.Equal(t, "customers, invoices", req.Messages[3].Content)
}

func TestOpenAIGenerator_ContentAndMalformedArgs(t *testing.T) {
	mock := &mockLLM{calls: []openai.ChatCompletionResponse{
		{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "There are 59 customers."}}}},
		{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{
			ToolCalls: []openai.ToolCall{{Function: openai.FunctionCall{Name: tools.QueryToolName, Arguments: `{"query": SELECT`}}},
		}}}},
	}}
	g := NewOpenAIGenerator(mock, "m", 0.2)

	msg, err := g.Generate(context.Background(), sampleHistory(), nil)
	require.NoError(t, err)
	require.True(t, msg.IsTerminal())
	require.Empty(t, mock.reqs[0].Tools)
	require.Equal(t, float32(0.2), mock.reqs[0].Temperature)

	msg, err = g.Generate(context.Background(), sampleHistory(), nil)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	require.NotEmpty(t, msg.ToolCalls[0].ID)
	require.Empty(t, msg.ToolCalls[0].Args)
}

func TestOpenAIGenerator_Errors(t *testing.T) {
	g := NewOpenAIGenerator(&mockLLM{err: context.DeadlineExceeded}, "m", 0)
	_, err := g.Generate(context.Background(), sampleHistory(), nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	g = NewOpenAIGenerator(&mockLLM{}, "m", 0)
	_, err = g.Generate(context.Background(), sampleHistory(), nil)
	require.Error(t, err)
}

type mockModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (m *mockModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func TestOllamaGenerator(t *testing.T) {
	mock := &mockModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: tools.QueryToolName, Arguments: `{"query":"SELECT 1"}`},
		}},
	}}}}
	g := NewOllamaGenerator(mock, "llama3.2", 0)

	msg, err := g.Generate(context.Background(), sampleHistory(), []tools.Definition{queryDef})
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	require.NotEmpty(t, msg.ToolCalls[0].ID)
	q, _ := msg.ToolCalls[0].StringArg("query")
	require.Equal(t, "SELECT 1", q)

	require.Equal(t, "llama3.2", mock.opts.Model)
	require.Len(t, mock.opts.Tools, 1)
	require.Equal(t, tools.QueryToolName, mock.opts.Tools[0].Function.Name)

	require.Len(t, mock.messages, 4)
	require.Equal(t, llms.ChatMessageTypeSystem, mock.messages[0].Role)
	require.Equal(t, llms.ChatMessageTypeAI, mock.messages[2].Role)
	require.Equal(t, llms.ChatMessageTypeTool, mock.messages[3].Role)
	resp, ok := mock.messages[3].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	require.Equal(t, "abc123", resp.ToolCallID)
}

func TestOllamaGenerator_Errors(t *testing.T) {
	g := NewOllamaGenerator(&mockModel{err: errors.New("connection refused")}, "m", 0)
	_, err := g.Generate(context.Background(), sampleHistory(), nil)
	require.ErrorContains(t, err, "connection refused")

	g = NewOllamaGenerator(&mockModel{resp: &llms.ContentResponse{}}, "m", 0)
	_, err = g.Generate(context.Background(), sampleHistory(), nil)
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	g, err := New(config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "k", Model: "m"})
	require.NoError(t, err)
	require.IsType(t, &OpenAIGenerator{}, g)

	g, err = New(config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.2", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	require.IsType(t, &OllamaGenerator{}, g)

	_, err = New(config.LLMConfig{Provider: "bard"})
	require.Error(t, err)
}

func TestOpenAIBaseURL(t *testing.T) {
	require.Equal(t, DefaultOpenAIBaseURL, openAIBaseURL(config.LLMConfig{Provider: config.ProviderOpenAI}))
	require.Equal(t, "https://api.openai.com/v1", openAIBaseURL(config.LLMConfig{BaseURL: "https://api.openai.com/v1"}))
}

func TestNew_OllamaWithoutBaseURL(t *testing.T) {
	g, err := New(config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.2"})
	require.NoError(t, err)
	require.IsType(t, &OllamaGenerator{}, g)
}

