package llm

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/trialscout/platform/pkg/common/apperrors"
)

// Caller is the single-turn text oracle behind entity extraction and
// report generation. The provider's output is untrusted and must be
// validated by the caller.
type Caller interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

type AnthropicCaller struct {
	messages anthropicMessager
	model    anthropic.Model
}

type anthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// NewAnthropicCaller fails with a config error when the key is absent so
// only the operation needing it fails, never the process.
func NewAnthropicCaller(apiKey, model string) (*AnthropicCaller, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperrors.New(apperrors.KindConfig, "extraction provider API key not configured")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicCaller{messages: &client.Messages, model: anthropic.Model(model)}, nil
}

func (a *AnthropicCaller) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   4096,
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindUpstreamAPI, "llm request failed", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
