package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

// OllamaGenerator generates through a langchaingo model, typically a local Ollama server.
type OllamaGenerator struct {
	client      ContentGenerator
	model       string
	temperature float32
}

func NewOllamaGenerator(client ContentGenerator, model string, temperature float32) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model, temperature: temperature}
}

func (g *OllamaGenerator) Generate(ctx context.Context, messages []conversation.Message, allowed []tools.Definition) (conversation.Message, error) {
	opts := []llms.CallOption{
		llms.WithModel(g.model),
		llms.WithTemperature(float64(g.temperature)),
	}
	if len(allowed) > 0 {
		defs := make([]llms.Tool, 0, len(allowed))
		for _, def := range allowed {
			defs = append(defs, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        def.Name,
					Description: def.Description,
					Parameters:  def.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(defs))
	}

	resp, err := g.client.GenerateContent(ctx, toMessageContent(messages), opts...)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return conversation.Message{}, errors.New("empty response from model")
	}

	choice := resp.Choices[0]
	calls := make([]conversation.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		calls = append(calls, conversation.ToolCall{
			ID:   callID(tc.ID),
			Name: tc.FunctionCall.Name,
			Args: parseArgs(tc.FunctionCall.Name, tc.FunctionCall.Arguments),
		})
	}
	return conversation.NewAssistant(choice.Content, calls...), nil
}

func toMessageContent(messages []conversation.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case conversation.RoleHuman:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case conversation.RoleAssistant:
			var parts []llms.ContentPart
			if m.Content != "" {
				parts = append(parts, llms.TextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgsJSON(),
					},
				})
			}
			// Empty AI turns are rejected by some backends.
			if len(parts) == 0 {
				parts = append(parts, llms.TextPart(" "))
			}
			out = append(out, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case conversation.RoleTool:
			resp := llms.ToolCallResponse{Content: m.Content}
			if m.Result != nil {
				resp.ToolCallID = m.Result.CallID
				resp.Name = m.Result.Name
			}
			out = append(out, llms.MessageContent{Role: llms.ChatMessageTypeTool, Parts: []llms.ContentPart{resp}})
		}
	}
	return out
}
