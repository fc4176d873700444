package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lazarus-engine/lazarus/retry"
)

const OpenAIProviderName = "openai"

var DefaultOpenAIModel = openai.ChatModelGPT4o

var _ Client = &OpenAIProvider{}

// OpenAIProvider generates text with the OpenAI chat completions API. It is
// an alternative backend selected by configuration; the retry policy matches
// the Gemini provider.
type OpenAIProvider struct {
	client        openai.Client
	model         openai.ChatModel
	maxRetries    int
	retryBaseWait time.Duration
}

func NewOpenAI(apiKey, model string) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	p := &OpenAIProvider{
		model:         DefaultOpenAIModel,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
	}
	if model != "" {
		p.model = openai.ChatModel(model)
	}
	p.client = openai.NewClient(option.WithAPIKey(apiKey))
	return p
}

func (p *OpenAIProvider) Name() string {
	return OpenAIProviderName
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := retry.Do(ctx, func() error {
		completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: p.model,
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
		})
		if err != nil {
			if isRecoverableOpenAIError(err) {
				return retry.NewRecoverableError(err)
			}
			return fmt.Errorf("openai generate: %w", err)
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("empty response from openai")
		}
		text = completion.Choices[0].Message.Content
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))

	if err != nil {
		return "", err
	}
	return text, nil
}

func isRecoverableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
