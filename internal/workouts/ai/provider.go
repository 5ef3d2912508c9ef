// Package ai wraps the chat completion APIs used to generate workouts.
package ai

import (
	"context"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/config"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Provider interface {
	Name() string
	GenerateCompletion(ctx context.Context, messages []Message) (string, error)
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Provider = (*GeminiProvider)(nil)
	_ Provider = (*unconfiguredProvider)(nil)
)

// NewProvider selects the provider named in cfg. A missing API key does not stop the service,
// the returned provider fails every call with a configuration error naming the key instead.
func NewProvider(ctx context.Context, cfg *config.Config, secrets *config.Secrets, httpClient *http.Client) (Provider, error) {
	apiKey, envName := secrets.AIKey(cfg.AIProvider)
	if apiKey == "" {
		log.Errorf("%s is not set, workout generation with %s is disabled", envName, cfg.AIProvider)
		return &unconfiguredProvider{name: cfg.AIProvider, envName: envName}, nil
	}

	switch cfg.AIProvider {
	case config.AIProviderGemini:
		return NewGeminiProvider(ctx, apiKey, cfg.GeminiModel, cfg.AITimeout())
	default:
		return NewOpenAIProvider(apiKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.AITimeout(), httpClient), nil
	}
}

type unconfiguredProvider struct {
	name    string
	envName string
}

func (p *unconfiguredProvider) Name() string {
	return p.name
}

func (p *unconfiguredProvider) GenerateCompletion(context.Context, []Message) (string, error) {
	return "", apperror.Configuration("AI provider is not configured, set "+p.envName, nil).WithSource(p.name)
}

// splitMessages separates system content from the conversation, for APIs that take the system
// instruction apart from the message list.
func splitMessages(messages []Message) (system, conversation string) {
	var systemParts, userParts []string
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role == RoleSystem {
			systemParts = append(systemParts, content)
		} else {
			userParts = append(userParts, content)
		}
	}
	return strings.Join(systemParts, "\n\n"), strings.Join(userParts, "\n\n")
}
