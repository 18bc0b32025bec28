package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spai/internal/audio"
	"spai/internal/tts"
)

type fakeLLM struct {
	reply Reply
	err   error

	calls []Completion
	keys  []string
}

func (f *fakeLLM) Complete(_ context.Context, apiKey string, c Completion) (Reply, error) {
	f.calls = append(f.calls, c)
	f.keys = append(f.keys, apiKey)
	return f.reply, f.err
}

type fakeSpeech struct {
	data []byte
	err  error
	n    int
}

func (f *fakeSpeech) Synthesize(context.Context, string, string) ([]byte, error) {
	f.n++
	return f.data, f.err
}

type fakeChecker struct{ err error }

func (f fakeChecker) CheckKey(context.Context, string) error { return f.err }

func quietLogger() *log.Logger {
	return log.New(log.NewTextHandler(io.Discard, nil))
}

func newService(t *testing.T, llm Completer, speech Synthesizer, fallback Keys) *Service {
	t.Helper()
	store, err := audio.NewStore(8, "/api/audio/")
	require.NoError(t, err)
	return New(llm, speech, store, Options{MaxTokens: 1000, Temperature: 0.7, Keys: fallback}, quietLogger())
}

func TestProcess_MissingKey(t *testing.T) {
	svc := newService(t, &fakeLLM{}, nil, Keys{})
	_, err := svc.Process(context.Background(), Request{Command: "hello"})
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestProcess_BadKeyFormatFromEnvironment(t *testing.T) {
	svc := newService(t, &fakeLLM{}, nil, Keys{OpenAI: "pk-env"})
	_, err := svc.Process(context.Background(), Request{Command: "hello"})
	assert.ErrorIs(t, err, ErrKeyFormat)
}

func TestProcess_TextOnly(t *testing.T) {
	llm := &fakeLLM{reply: Reply{Text: "It is sunny."}}
	svc := newService(t, llm, &fakeSpeech{}, Keys{})

	resp, err := svc.Process(context.Background(), Request{
		Command: "what is the weather",
		Keys:    Keys{OpenAI: "sk-user"},
	})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", resp.Response)
	assert.Empty(t, resp.AudioURL)
	assert.Equal(t, []string{ToolSearchWeb, ToolGPT}, resp.ToolsUsed)
	assert.Equal(t, APIStatus{OpenAI: true}, resp.APIStatus)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, "sk-user", llm.keys[0])
	assert.Equal(t, systemPrompt, llm.calls[0].System)
	assert.Contains(t, llm.calls[0].Prompt, `User command: "what is the weather"`)
	assert.Contains(t, llm.calls[0].Prompt, "Available tools: search_web, openai_gpt")
	assert.EqualValues(t, 1000, llm.calls[0].MaxTokens)
	require.NotNil(t, llm.calls[0].Temperature)
	assert.Equal(t, 0.7, *llm.calls[0].Temperature)
}

func TestProcess_WithSpeech(t *testing.T) {
	llm := &fakeLLM{reply: Reply{Text: "Hello."}}
	speech := &fakeSpeech{data: []byte("mpeg")}
	svc := newService(t, llm, speech, Keys{ElevenLabs: "el-env"})

	resp, err := svc.Process(context.Background(), Request{Command: "say hi", Keys: Keys{OpenAI: "sk-user"}})
	require.NoError(t, err)
	assert.Equal(t, 1, speech.n)
	assert.Regexp(t, `^/api/audio/[0-9a-f-]{36}$`, resp.AudioURL)
	assert.True(t, resp.APIStatus.ElevenLabs)
}

func TestProcess_SpeechFailureKeepsText(t *testing.T) {
	llm := &fakeLLM{reply: Reply{Text: "Hello."}}
	speech := &fakeSpeech{err: &tts.APIError{StatusCode: 500}}
	svc := newService(t, llm, speech, Keys{})

	resp, err := svc.Process(context.Background(), Request{
		Command: "hi",
		Keys:    Keys{OpenAI: "sk-user", ElevenLabs: "el"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello.", resp.Response)
	assert.Empty(t, resp.AudioURL)
}

func TestProcess_ProviderErrorIsClassified(t *testing.T) {
	llm := &fakeLLM{err: errors.New(`POST "https://api.openai.com/v1/chat/completions": 401 Unauthorized`)}
	svc := newService(t, llm, nil, Keys{})

	_, err := svc.Process(context.Background(), Request{Command: "hi", Keys: Keys{OpenAI: "sk-user"}})
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid OpenAI API key. Please check your key in settings.", perr.Message)
	assert.Contains(t, err.Error(), "Invalid OpenAI API key. Please check your key in settings.: POST")
}

func TestKeysMerge(t *testing.T) {
	got := Keys{OpenAI: "sk-a", SerpAPI: " "}.Merge(Keys{OpenAI: "sk-b", ElevenLabs: "el", SerpAPI: "serp"})
	assert.Equal(t, Keys{OpenAI: "sk-a", ElevenLabs: "el", SerpAPI: "serp"}, got)
}

func TestDebug(t *testing.T) {
	llm := &fakeLLM{reply: Reply{Text: "Test successful", Usage: Usage{TotalTokens: 12}}}
	svc := newService(t, llm, nil, Keys{})

	reply, err := svc.Debug(context.Background(), "sk-debug")
	require.NoError(t, err)
	assert.Equal(t, "Test successful", reply.Text)
	assert.Equal(t, debugPrompt, llm.calls[0].Prompt)
	assert.EqualValues(t, 10, llm.calls[0].MaxTokens)
}

func TestTestKeys(t *testing.T) {
	t.Run("all missing", func(t *testing.T) {
		svc := newService(t, &fakeLLM{}, nil, Keys{})
		res := svc.TestKeys(context.Background(), Keys{}, fakeChecker{})
		assert.Equal(t, StatusMissing, res.OpenAI.Status)
		assert.Equal(t, "No API key provided in settings or environment", res.OpenAI.Message)
		assert.Equal(t, StatusMissing, res.ElevenLabs.Status)
		assert.Equal(t, StatusMissing, res.SerpAPI.Status)
	})

	t.Run("all good", func(t *testing.T) {
		svc := newService(t, &fakeLLM{reply: Reply{Text: "API test successful."}}, nil, Keys{})
		res := svc.TestKeys(context.Background(), Keys{OpenAI: "sk-a", ElevenLabs: "el", SerpAPI: "serp"}, fakeChecker{})
		assert.Equal(t, KeyResult{StatusSuccess, "OpenAI connection verified"}, res.OpenAI)
		assert.Equal(t, KeyResult{StatusSuccess, "ElevenLabs connection verified"}, res.ElevenLabs)
		assert.Equal(t, KeyResult{StatusSuccess, "SerpAPI key configured"}, res.SerpAPI)
	})

	t.Run("unexpected openai answer", func(t *testing.T) {
		svc := newService(t, &fakeLLM{reply: Reply{Text: "Hi!"}}, nil, Keys{})
		res := svc.TestKeys(context.Background(), Keys{OpenAI: "sk-a"}, nil)
		assert.Equal(t, KeyResult{StatusWarning, "OpenAI responded: Hi!"}, res.OpenAI)
	})

	t.Run("failures", func(t *testing.T) {
		svc := newService(t, &fakeLLM{err: errors.New("429 Too Many Requests")}, nil, Keys{})
		res := svc.TestKeys(context.Background(), Keys{OpenAI: "sk-a", ElevenLabs: "el"},
			fakeChecker{err: &tts.APIError{StatusCode: 401}})
		assert.Equal(t, StatusError, res.OpenAI.Status)
		assert.Equal(t, "Rate limit exceeded: 429 Too Many Requests", res.OpenAI.Message)
		assert.Equal(t, KeyResult{StatusError, "Invalid API key"}, res.ElevenLabs)
	})

	t.Run("elevenlabs transport and server errors", func(t *testing.T) {
		svc := newService(t, &fakeLLM{}, nil, Keys{})
		res := svc.TestKeys(context.Background(), Keys{ElevenLabs: "el"}, fakeChecker{err: fmt.Errorf("dial: refused")})
		assert.Equal(t, KeyResult{StatusError, "Network error"}, res.ElevenLabs)

		res = svc.TestKeys(context.Background(), Keys{ElevenLabs: "el"}, fakeChecker{err: &tts.APIError{StatusCode: 503}})
		assert.Equal(t, KeyResult{StatusError, "Connection failed"}, res.ElevenLabs)
	})
}
