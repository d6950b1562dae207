package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/logger"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

// OpenAIGenerator generates through any OpenAI-compatible chat completion API.
type OpenAIGenerator struct {
	client      Client
	model       string
	temperature float32
}

func NewOpenAIGenerator(client Client, model string, temperature float32) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: model, temperature: temperature}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, messages []conversation.Message, allowed []tools.Definition) (conversation.Message, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: g.temperature,
	}
	// A zero temperature is dropped by omitempty; send the smallest positive value instead.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}
	for _, def := range allowed {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return conversation.Message{}, errors.New("chat completion returned no choices")
	}

	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(messages []conversation.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case conversation.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case conversation.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgsJSON(),
					},
				})
			}
			out = append(out, msg)
		case conversation.RoleTool:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool, Content: m.Content}
			if m.Result != nil {
				msg.ToolCallID = m.Result.CallID
				msg.Name = m.Result.Name
			}
			out = append(out, msg)
		}
	}
	return out
}

func fromOpenAIMessage(m openai.ChatCompletionMessage) conversation.Message {
	calls := make([]conversation.ToolCall, 0, len(m.ToolCalls))
	for _, tc := range m.ToolCalls {
		calls = append(calls, conversation.ToolCall{
			ID:   callID(tc.ID),
			Name: tc.Function.Name,
			Args: parseArgs(tc.Function.Name, tc.Function.Arguments),
		})
	}
	return conversation.NewAssistant(m.Content, calls...)
}

func callID(id string) string {
	if id == "" {
		return conversation.NewCallID()
	}
	return id
}

// parseArgs decodes a JSON argument object. Malformed arguments become an
// empty mapping; the tool then reports the missing argument to the model.
func parseArgs(tool, raw string) map[string]any {
	args := map[string]any{}
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logger.L.Warn("could not parse tool arguments", "tool", tool, "arguments", raw, "error", err)
		return map[string]any{}
	}
	return args
}
