package assistant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeCommand(t *testing.T) {
	cases := []struct {
		command string
		want    []string
	}{
		{"hello there", []string{ToolGPT}},
		{"What is the capital of France", []string{ToolSearchWeb, ToolGPT}},
		{"read the system log", []string{ToolReadFile, ToolGPT}},
		{"execute the backup script", []string{ToolRunScript, ToolGPT}},
		{"tell me a joke", []string{ToolSpeak, ToolGPT}},
		{"search the news and read the file then run it", []string{ToolSearchWeb, ToolReadFile, ToolRunScript, ToolGPT}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AnalyzeCommand(tc.command), tc.command)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	cases := map[string]string{
		"401 Unauthorized":                   "Invalid OpenAI API key. Please check your key in settings.",
		"status 429":                         "OpenAI rate limit exceeded. Please try again later.",
		"hit the rate limit":                 "OpenAI rate limit exceeded. Please try again later.",
		"You exceeded your current quota":    "OpenAI quota exceeded. Please check your billing.",
		"The model `gpt-4o` does not exist":  "Model access denied. Try using gpt-3.5-turbo instead.",
		"connection reset by peer":           "OpenAI API error",
	}
	for in, want := range cases {
		assert.Equal(t, want, CommandErrorMessage(errors.New(in)), in)
	}
}

func TestKeyTestErrorMessage(t *testing.T) {
	assert.Equal(t, "Invalid API key - check your key format", KeyTestErrorMessage(errors.New("Unauthorized")))
	assert.Equal(t, "Quota exceeded - check billing", KeyTestErrorMessage(errors.New("quota reached")))
	assert.Equal(t, "API key not properly configured", KeyTestErrorMessage(errors.New("key missing")))
	assert.Equal(t, "Connection failed", KeyTestErrorMessage(errors.New("eof")))
}
