package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/api/googleapi"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/config"
)

// NormalizeError maps a provider failure onto the error taxonomy, tagged with the provider.
func NormalizeError(provider string, err error) *apperror.Error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperror.As(err); ok {
		return appErr
	}

	status, detail := inspect(err)
	text := strings.ToLower(detail + " " + err.Error())

	var appErr *apperror.Error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		strings.Contains(text, "authentication") || strings.Contains(text, "api key"):
		appErr = apperror.Configuration("AI provider rejected the API key, check "+config.AIKeyEnvName(provider), err)
	case status == http.StatusTooManyRequests || strings.Contains(text, "rate limit") || strings.Contains(text, "quota"):
		appErr = apperror.New(apperror.KindRateLimit, http.StatusServiceUnavailable,
			"AI provider is rate limiting requests, try again later", err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(text, "timeout") ||
		strings.Contains(text, "timed out") || strings.Contains(text, "deadline exceeded"):
		appErr = apperror.New(apperror.KindNetwork, http.StatusGatewayTimeout,
			"AI provider timed out, try again later", err)
	default:
		appErr = apperror.New(apperror.KindUnknown, http.StatusInternalServerError,
			"workout generation failed at the AI provider", err)
	}
	return appErr.WithSource(provider)
}

// inspect digs the HTTP status and provider message out of the known client error types.
func inspect(err error) (int, string) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		detail := apiErr.Message
		if code, ok := apiErr.Code.(string); ok {
			detail += " " + code
		}
		return apiErr.HTTPStatusCode, detail
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := ""
		if reqErr.Err != nil {
			detail = reqErr.Err.Error()
		}
		return reqErr.HTTPStatusCode, detail
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code, gErr.Message
	}

	return 0, ""
}
