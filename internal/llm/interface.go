package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"

	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

// Generator is the generation capability the agent drives: given the
// conversation so far and the tools allowed in this step, produce the next
// assistant message. Provider types never cross this boundary.
type Generator interface {
	Generate(ctx context.Context, messages []conversation.Message, allowed []tools.Definition) (conversation.Message, error)
}

// Client is minimal subset of openai.Client used by the agent; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ContentGenerator is the subset of a langchaingo model used by OllamaGenerator.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}
