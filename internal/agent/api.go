package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	oshared "github.com/openai/openai-go/shared"

	"github.com/Iron-Ham/roundtable/internal/config"
)

// AnthropicBackend answers each invocation with one Messages API call. The
// agent's role framing is the system prompt.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicBackend creates an AnthropicBackend. The key is read from
// cfg.APIKeyEnv, or ANTHROPIC_API_KEY when that is empty.
func NewAnthropicBackend(cfg config.BackendConfig) (*AnthropicBackend, error) {
	key, err := apiKey(cfg.APIKeyEnv, "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []aoption.RequestOption{aoption.WithAPIKey(key)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, aoption.WithBaseURL(base))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicBackend{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(max(cfg.MaxTokens, 1)),
	}, nil
}

// Invoke sends the prompt and returns the concatenated text blocks of the reply.
func (b *AnthropicBackend) Invoke(ctx context.Context, req Request) (string, error) {
	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt(req.Agent)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(req))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// OpenAIBackend answers each invocation with one Chat Completions call.
type OpenAIBackend struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAIBackend creates an OpenAIBackend. The key is read from
// cfg.APIKeyEnv, or OPENAI_API_KEY when that is empty.
func NewOpenAIBackend(cfg config.BackendConfig) (*OpenAIBackend, error) {
	key, err := apiKey(cfg.APIKeyEnv, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []ooption.RequestOption{ooption.WithAPIKey(key)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, ooption.WithBaseURL(base))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIBackend{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: int64(max(cfg.MaxTokens, 1)),
	}, nil
}

// Invoke sends the prompt and returns the first choice's content.
func (b *OpenAIBackend) Invoke(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: oshared.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(req.Agent)),
			openai.UserMessage(BuildPrompt(req)),
		},
		MaxCompletionTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
