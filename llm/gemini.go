package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/lazarus-engine/lazarus/retry"
)

const GeminiProviderName = "gemini"

var (
	DefaultGeminiModel   = "gemini-2.0-flash"
	DefaultMaxRetries    = 5
	DefaultRetryBaseWait = 2 * time.Second
)

var _ Client = &GeminiProvider{}

// GeminiProvider generates text with the Google Gemini API. Rate-limit and
// server errors are retried with exponential backoff.
type GeminiProvider struct {
	client        *genai.Client
	apiKey        string
	model         string
	maxRetries    int
	retryBaseWait time.Duration
	mutex         sync.Mutex
}

type GeminiOption func(*GeminiProvider)

func WithGeminiAPIKey(apiKey string) GeminiOption {
	return func(p *GeminiProvider) { p.apiKey = apiKey }
}

func WithGeminiModel(model string) GeminiOption {
	return func(p *GeminiProvider) { p.model = model }
}

func WithGeminiMaxRetries(maxRetries int) GeminiOption {
	return func(p *GeminiProvider) { p.maxRetries = maxRetries }
}

func WithGeminiRetryBaseWait(baseWait time.Duration) GeminiOption {
	return func(p *GeminiProvider) { p.retryBaseWait = baseWait }
}

func NewGemini(opts ...GeminiOption) *GeminiProvider {
	var apiKey string
	if value := os.Getenv("GEMINI_API_KEY"); value != "" {
		apiKey = value
	} else if value := os.Getenv("GOOGLE_API_KEY"); value != "" {
		apiKey = value
	}
	p := &GeminiProvider{
		apiKey:        apiKey,
		model:         DefaultGeminiModel,
		maxRetries:    DefaultMaxRetries,
		retryBaseWait: DefaultRetryBaseWait,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *GeminiProvider) Name() string {
	return GeminiProviderName
}

func (p *GeminiProvider) initClient(ctx context.Context) (*genai.Client, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("gemini api key is missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.client = client
	return p.client, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := p.initClient(ctx)
	if err != nil {
		return "", err
	}

	var text string
	err = retry.Do(ctx, func() error {
		resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
		if err != nil {
			if isRecoverableGenAIError(err) {
				return retry.NewRecoverableError(err)
			}
			return fmt.Errorf("gemini generate: %w", err)
		}
		text, err = extractText(resp)
		if err != nil {
			return err
		}
		return nil
	}, retry.WithMaxRetries(p.maxRetries), retry.WithBaseWait(p.retryBaseWait))

	if err != nil {
		return "", err
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return "", fmt.Errorf("no content in gemini response")
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text parts in gemini response")
	}
	return b.String(), nil
}

func isRecoverableGenAIError(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}
	return false
}
