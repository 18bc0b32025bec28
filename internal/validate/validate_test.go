package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRequest(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := CommandRequest{Command: "what is the weather", APIKeys: &APIKeys{OpenAI: "sk-test"}}
		assert.NoError(t, Struct(req))
	})

	t.Run("empty keys are fine", func(t *testing.T) {
		req := CommandRequest{Command: "hi", APIKeys: &APIKeys{}}
		assert.NoError(t, Struct(req))
	})

	t.Run("empty command", func(t *testing.T) {
		err := Struct(CommandRequest{APIKeys: &APIKeys{}})
		require.Error(t, err)
		assert.Equal(t, "Validation error: Command cannot be empty", err.Error())
		assert.True(t, IsValidation(err))
	})

	t.Run("too long", func(t *testing.T) {
		err := Struct(CommandRequest{Command: strings.Repeat("a", 1001), APIKeys: &APIKeys{}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Command too long")
	})

	t.Run("bad openai prefix", func(t *testing.T) {
		err := Struct(CommandRequest{Command: "hi", APIKeys: &APIKeys{OpenAI: "pk-123"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OpenAI API key must start with 'sk-'")
	})

	t.Run("missing apiKeys", func(t *testing.T) {
		err := Struct(CommandRequest{Command: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "apiKeys is required")
	})

	t.Run("issues are joined", func(t *testing.T) {
		err := Struct(CommandRequest{APIKeys: &APIKeys{OpenAI: "bad"}})
		var verr *Error
		require.True(t, errors.As(err, &verr))
		assert.Len(t, verr.Issues, 2)
		assert.Equal(t, "Validation error: Command cannot be empty, OpenAI API key must start with 'sk-'", err.Error())
	})
}

func TestFileRequest(t *testing.T) {
	assert.NoError(t, Struct(FileRequest{FilePath: "logs/system-2024.log"}))

	for _, p := range []string{"", "../etc/passwd;rm", "my file.txt", "a\\b", strings.Repeat("a", 501)} {
		assert.Error(t, Struct(FileRequest{FilePath: p}), "path %q", p)
	}
}

func TestScriptRequest(t *testing.T) {
	no := false
	assert.NoError(t, Struct(ScriptRequest{ScriptPath: "diag.sh", Confirmed: &no}))

	err := Struct(ScriptRequest{ScriptPath: "diag.sh"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirmed must be a boolean")
}
