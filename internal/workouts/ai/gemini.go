package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

// GeminiProvider has no system role in its message list: system content goes into the model's
// system instruction and the remaining messages are merged into one user turn.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return config.AIProviderGemini
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) GenerateCompletion(ctx context.Context, messages []Message) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ai.gemini.completion")
	defer tracing.EndSpanWithErrCheck(span, &err)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	system, conversation := splitMessages(messages)
	if conversation == "" {
		return "", NormalizeError(p.Name(), errors.New("no user content to send"))
	}

	model := p.client.GenerativeModel(p.model)
	model.ResponseMIMEType = "application/json"
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(conversation))
	if err != nil {
		return "", NormalizeError(p.Name(), err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", NormalizeError(p.Name(), errors.New("no content generated"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
