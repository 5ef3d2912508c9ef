package config

import (
	"encoding/hex"
	"strings"

	"github.com/2beens/runcoach/internal/apperror"
)

const (
	EnvEncryptionKey = "RUNCOACH_ENCRYPTION_KEY"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvGeminiAPIKey  = "GEMINI_API_KEY"
	EnvRedisPassword = "RUNCOACH_REDIS_PASS"
	EnvDBPassword    = "RUNCOACH_DB_PASS"
	EnvMCPSecretHash = "RUNCOACH_MCP_SECRET_HASH"
	EnvSentryDSN     = "SENTRY_DSN"
)

// Secrets are read from the environment once, at process start.
type Secrets struct {
	EncryptionKey string // 64 hex characters
	OpenAIAPIKey  string
	GeminiAPIKey  string
	RedisPassword string
	DBPassword    string
	MCPSecretHash string
	SentryDSN     string
}

// LoadSecrets resolves all secrets through getenv (os.Getenv in production). Placeholder-looking values
// count as absent. A missing or malformed encryption key is a configuration error.
func LoadSecrets(getenv func(string) string) (*Secrets, error) {
	s := &Secrets{
		EncryptionKey: cleanSecret(getenv(EnvEncryptionKey)),
		OpenAIAPIKey:  cleanSecret(getenv(EnvOpenAIAPIKey)),
		GeminiAPIKey:  cleanSecret(getenv(EnvGeminiAPIKey)),
		RedisPassword: strings.TrimSpace(getenv(EnvRedisPassword)),
		DBPassword:    strings.TrimSpace(getenv(EnvDBPassword)),
		MCPSecretHash: cleanSecret(getenv(EnvMCPSecretHash)),
		SentryDSN:     cleanSecret(getenv(EnvSentryDSN)),
	}

	if s.EncryptionKey == "" {
		return nil, apperror.Configuration(EnvEncryptionKey+" is not set", nil)
	}
	if err := ValidateEncryptionKey(s.EncryptionKey); err != nil {
		return nil, err
	}
	return s, nil
}

func ValidateEncryptionKey(hexKey string) error {
	if len(hexKey) != 64 {
		return apperror.Configuration(EnvEncryptionKey+" must be 64 hex characters (32 bytes)", nil)
	}
	if _, err := hex.DecodeString(hexKey); err != nil {
		return apperror.Configuration(EnvEncryptionKey+" is not valid hex", err)
	}
	return nil
}

// AIKey returns the API key and its env variable name for the given provider.
func (s *Secrets) AIKey(provider string) (key, envName string) {
	if provider == AIProviderGemini {
		return s.GeminiAPIKey, EnvGeminiAPIKey
	}
	return s.OpenAIAPIKey, EnvOpenAIAPIKey
}

func AIKeyEnvName(provider string) string {
	_, envName := (&Secrets{}).AIKey(provider)
	return envName
}

// IsPlaceholder reports whether a configured value looks like an unfilled template value.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return true
	}
	if (strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">")) ||
		(strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]")) {
		return true
	}
	return strings.Contains(v, "your-key") || strings.Contains(v, "your_api_key")
}

func cleanSecret(value string) string {
	if IsPlaceholder(value) {
		return ""
	}
	return strings.TrimSpace(value)
}
