package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/2beens/runcoach/internal/config"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

// OpenAIProvider talks to any OpenAI compatible chat completion endpoint and forces a JSON
// object response.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAIProvider(apiKey, baseURL, model string, timeout time.Duration, httpClient *http.Client) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}
}

func (p *OpenAIProvider) Name() string {
	return config.AIProviderOpenAI
}

func (p *OpenAIProvider) GenerateCompletion(ctx context.Context, messages []Message) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "ai.openai.completion")
	defer tracing.EndSpanWithErrCheck(span, &err)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: chatMessages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", NormalizeError(p.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return "", NormalizeError(p.Name(), errors.New("completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}
