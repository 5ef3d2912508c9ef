package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSplitMessages(t *testing.T) {
	system, conversation := splitMessages([]Message{
		{Role: RoleSystem, Content: "be a coach"},
		{Role: RoleUser, Content: "profile: {}"},
		{Role: RoleSystem, Content: "  "},
		{Role: RoleAssistant, Content: "ok"},
		{Role: RoleUser, Content: "give me a tempo run"},
	})
	assert.Equal(t, "be a coach", system)
	assert.Equal(t, "profile: {}\n\nok\n\ngive me a tempo run", conversation)
}

func TestNewProvider_MissingKey(t *testing.T) {
	cfg := &config.Config{AIProvider: config.AIProviderGemini}
	provider, err := NewProvider(context.Background(), cfg, &config.Secrets{}, nil)
	require.NoError(t, err)
	assert.Equal(t, config.AIProviderGemini, provider.Name())

	_, err = provider.GenerateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindConfiguration, appErr.Kind)
	assert.Contains(t, appErr.Message, config.EnvGeminiAPIKey)
}

func TestNewProvider_OpenAI(t *testing.T) {
	cfg := &config.Config{AIProvider: config.AIProviderOpenAI, OpenAIModel: "gpt-4o-mini"}
	provider, err := NewProvider(context.Background(), cfg, &config.Secrets{OpenAIAPIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, provider)
}

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenAIProvider("sk-test", server.URL+"/v1", "gpt-4o-mini", 200*time.Millisecond, server.Client())
}

func TestOpenAIProvider_GenerateCompletion(t *testing.T) {
	var captured map[string]any
	provider := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"workoutName\":\"Tempo\"}"}, "finish_reason": "stop"}]
		}`)
	})

	out, err := provider.GenerateCompletion(context.Background(), []Message{
		{Role: RoleSystem, Content: "be a coach"},
		{Role: RoleUser, Content: "tempo please"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"workoutName":"Tempo"}`, out)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, captured["response_format"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAIProvider_Errors(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		provider := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
		})
		_, err := provider.GenerateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
		assert.Equal(t, apperror.KindRateLimit, apperror.KindOf(err))
	})

	t.Run("bad key", func(t *testing.T) {
		provider := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
		})
		_, err := provider.GenerateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
		status, msg := apperror.StatusAndMessage(err)
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Contains(t, msg, config.EnvOpenAIAPIKey)
	})

	t.Run("timeout", func(t *testing.T) {
		provider := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		_, err := provider.GenerateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
		status, _ := apperror.StatusAndMessage(err)
		assert.Equal(t, http.StatusGatewayTimeout, status)
	})

	t.Run("no choices", func(t *testing.T) {
		provider := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"x","choices":[]}`)
		})
		_, err := provider.GenerateCompletion(context.Background(), []Message{{Role: RoleUser, Content: "x"}})
		assert.Equal(t, apperror.KindUnknown, apperror.KindOf(err))
	})
}
