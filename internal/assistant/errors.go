package assistant

import (
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
)

var (
	ErrMissingKey = errors.New("OpenAI API key is required. Please add it in settings or set OPENAI_API_KEY environment variable.")
	ErrKeyFormat  = errors.New("Invalid OpenAI API key format. Key must start with 'sk-'")
)

// ProviderError is an LLM failure with a message fit for the end user.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

type failure int

const (
	failureUnknown failure = iota
	failureAuth
	failureRateLimit
	failureQuota
	failureModel
	failureMissing
)

// classify inspects the status code of SDK errors first and falls back to
// the message text for everything else.
func classify(err error) failure {
	msg := err.Error()
	lower := strings.ToLower(msg)

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return failureAuth
		case http.StatusTooManyRequests:
			if strings.Contains(lower, "quota") {
				return failureQuota
			}
			return failureRateLimit
		}
	}

	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "Unauthorized"):
		return failureAuth
	case strings.Contains(msg, "429") || strings.Contains(lower, "rate limit"):
		return failureRateLimit
	case strings.Contains(lower, "quota"):
		return failureQuota
	case strings.Contains(lower, "model"):
		return failureModel
	case strings.Contains(lower, "missing"):
		return failureMissing
	}
	return failureUnknown
}

// CommandErrorMessage is the guidance shown when a command fails at the LLM.
func CommandErrorMessage(err error) string {
	switch classify(err) {
	case failureAuth:
		return "Invalid OpenAI API key. Please check your key in settings."
	case failureRateLimit:
		return "OpenAI rate limit exceeded. Please try again later."
	case failureQuota:
		return "OpenAI quota exceeded. Please check your billing."
	case failureModel:
		return "Model access denied. Try using gpt-3.5-turbo instead."
	}
	return "OpenAI API error"
}

// KeyTestErrorMessage is the shorter variant used by the key checker.
func KeyTestErrorMessage(err error) string {
	switch classify(err) {
	case failureAuth:
		return "Invalid API key - check your key format"
	case failureRateLimit:
		return "Rate limit exceeded"
	case failureQuota:
		return "Quota exceeded - check billing"
	case failureModel:
		return "Model access issue - try gpt-3.5-turbo"
	case failureMissing:
		return "API key not properly configured"
	}
	return "Connection failed"
}
