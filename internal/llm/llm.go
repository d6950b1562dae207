package llm

import (
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/comigor/nl2sql-go/internal/config"
)

// DefaultOpenAIBaseURL is used by the openai provider when llm.base_url is unset.
// The ollama provider falls back to langchaingo's local server default instead.
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

func openAIBaseURL(cfg config.LLMConfig) string {
	if cfg.BaseURL == "" {
		return DefaultOpenAIBaseURL
	}
	return cfg.BaseURL
}

// NewClient creates a new OpenAI-compatible client (OpenAI, Groq, ...)
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = openAIBaseURL(cfg)
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return openai.NewClientWithConfig(config)
}

// New builds the Generator selected by cfg.Provider.
func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		return NewOpenAIGenerator(NewClient(cfg), cfg.Model, cfg.Temperature), nil
	case config.ProviderOllama:
		var opts []ollama.Option
		opts = append(opts, ollama.WithModel(cfg.Model))
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return NewOllamaGenerator(client, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
