// Package assistant turns a spoken or typed command into a reply: it picks
// the tools the command hints at, asks the LLM, and optionally renders the
// answer to speech.
package assistant

import (
	"context"
	"errors"
	log "log/slog"
	"strings"
	"time"

	"spai/internal/audio"
	"spai/internal/metrics"
	"spai/internal/tts"
	"spai/pkg/util"
)

// Keys are provider credentials. Empty fields fall back to the server's
// own keys.
type Keys struct {
	OpenAI     string `json:"openai"`
	ElevenLabs string `json:"elevenlabs"`
	SerpAPI    string `json:"serpapi"`
}

func (k Keys) Merge(fallback Keys) Keys {
	return Keys{
		OpenAI:     util.FirstNonEmpty(k.OpenAI, fallback.OpenAI),
		ElevenLabs: util.FirstNonEmpty(k.ElevenLabs, fallback.ElevenLabs),
		SerpAPI:    util.FirstNonEmpty(k.SerpAPI, fallback.SerpAPI),
	}
}

type APIStatus struct {
	OpenAI     bool `json:"openai"`
	ElevenLabs bool `json:"elevenlabs"`
	SerpAPI    bool `json:"serpapi"`
}

func (k Keys) Status() APIStatus {
	return APIStatus{
		OpenAI:     k.OpenAI != "",
		ElevenLabs: k.ElevenLabs != "",
		SerpAPI:    k.SerpAPI != "",
	}
}

type Request struct {
	Command string
	Keys    Keys
}

type Response struct {
	Response        string    `json:"response"`
	AudioURL        string    `json:"audioUrl"`
	AudioDurationMs int64     `json:"audioDurationMs,omitempty"`
	ToolsUsed       []string  `json:"toolsUsed"`
	APIStatus       APIStatus `json:"apiStatus"`
}

// Synthesizer renders text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, apiKey string) ([]byte, error)
}

// KeyChecker verifies a TTS key without synthesizing anything.
type KeyChecker interface {
	CheckKey(ctx context.Context, apiKey string) error
}

// Clips stores synthesized audio and hands out URLs for it.
type Clips interface {
	Put(data []byte) audio.Clip
	URL(c audio.Clip) string
}

type Options struct {
	MaxTokens   int64
	Temperature float64
	// Fallback keys from the server environment.
	Keys Keys
}

type Service struct {
	llm    Completer
	speech Synthesizer
	clips  Clips
	opts   Options
	logger *log.Logger
}

func New(llm Completer, speech Synthesizer, clips Clips, opts Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Service{
		llm:    llm,
		speech: speech,
		clips:  clips,
		opts:   opts,
		logger: logger,
	}
}

// ResolveKeys merges request keys with the server fallbacks.
func (s *Service) ResolveKeys(k Keys) Keys {
	return k.Merge(s.opts.Keys)
}

// Process answers one command. Errors are ErrMissingKey, ErrKeyFormat,
// *ProviderError, or a context error.
func (s *Service) Process(ctx context.Context, req Request) (Response, error) {
	s.logger.Info("Processing command", "command", util.Preview(req.Command, 50))

	keys := s.ResolveKeys(req.Keys)
	s.logger.Debug("API keys status",
		"openai", util.MaskKey(keys.OpenAI, 6),
		"elevenlabs", keys.ElevenLabs != "",
		"serpapi", keys.SerpAPI != "",
	)

	if keys.OpenAI == "" {
		s.logger.Warn("Missing OpenAI API key")
		return Response{}, ErrMissingKey
	}
	if !strings.HasPrefix(keys.OpenAI, "sk-") {
		return Response{}, ErrKeyFormat
	}

	tools := AnalyzeCommand(req.Command)
	s.logger.Debug("Tools needed", "tools", tools)

	temp := s.opts.Temperature
	reply, err := s.llm.Complete(ctx, keys.OpenAI, Completion{
		System:      systemPrompt,
		Prompt:      commandPrompt(req.Command, tools),
		MaxTokens:   s.opts.MaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Response{}, err
		}
		s.logger.Error("OpenAI API error", "err", err)
		return Response{}, &ProviderError{Message: CommandErrorMessage(err), Err: err}
	}

	s.logger.Info("Generated response", "responseLength", len(reply.Text))

	out := Response{
		Response:  reply.Text,
		ToolsUsed: tools,
		APIStatus: keys.Status(),
	}

	if keys.ElevenLabs != "" && s.speech != nil && s.clips != nil {
		data, err := s.speech.Synthesize(ctx, reply.Text, keys.ElevenLabs)
		if err != nil {
			// the text answer is still worth returning
			metrics.ProviderErrors.WithLabelValues("elevenlabs").Inc()
			s.logger.Error("Speech generation failed", "err", err)
		} else {
			clip := s.clips.Put(data)
			out.AudioURL = s.clips.URL(clip)
			out.AudioDurationMs = clip.Duration.Milliseconds()
			s.logger.Debug("Generated speech", "bytes", len(data), "duration", clip.Duration)
		}
	}

	return out, nil
}

// Debug sends the fixed debug prompt with testKey.
func (s *Service) Debug(ctx context.Context, testKey string) (Reply, error) {
	s.logger.Debug("Testing key", "key", util.MaskKey(testKey, 10))
	return s.llm.Complete(ctx, testKey, Completion{
		Prompt:    debugPrompt,
		MaxTokens: 10,
	})
}

const (
	StatusSuccess   = "success"
	StatusWarning   = "warning"
	StatusError     = "error"
	StatusMissing   = "missing"
	StatusNotTested = "not_tested"
)

type KeyResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type KeyResults struct {
	OpenAI     KeyResult `json:"openai"`
	ElevenLabs KeyResult `json:"elevenlabs"`
	SerpAPI    KeyResult `json:"serpapi"`
}

// TestKeys probes each configured provider once.
func (s *Service) TestKeys(ctx context.Context, k Keys, checker KeyChecker) KeyResults {
	keys := s.ResolveKeys(k)
	res := KeyResults{
		OpenAI:     KeyResult{Status: StatusNotTested},
		ElevenLabs: KeyResult{Status: StatusNotTested},
		SerpAPI:    KeyResult{Status: StatusNotTested},
	}

	if keys.OpenAI == "" {
		res.OpenAI = KeyResult{StatusMissing, "No API key provided in settings or environment"}
	} else {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		reply, err := s.llm.Complete(ctx, keys.OpenAI, Completion{Prompt: keyTestPrompt, MaxTokens: 10})
		cancel()
		switch {
		case err != nil:
			s.logger.Error("OpenAI test error", "err", err)
			res.OpenAI = KeyResult{StatusError, KeyTestErrorMessage(err) + ": " + util.Preview(err.Error(), 100)}
		case strings.Contains(strings.ToLower(reply.Text), keyTestExpected):
			res.OpenAI = KeyResult{StatusSuccess, "OpenAI connection verified"}
		default:
			res.OpenAI = KeyResult{StatusWarning, "OpenAI responded: " + reply.Text}
		}
	}

	if keys.ElevenLabs == "" {
		res.ElevenLabs = KeyResult{StatusMissing, "No API key provided"}
	} else if checker != nil {
		err := checker.CheckKey(ctx, keys.ElevenLabs)
		var apiErr *tts.APIError
		switch {
		case err == nil:
			res.ElevenLabs = KeyResult{StatusSuccess, "ElevenLabs connection verified"}
		case errors.As(err, &apiErr) && apiErr.StatusCode == 401:
			res.ElevenLabs = KeyResult{StatusError, "Invalid API key"}
		case errors.As(err, &apiErr):
			res.ElevenLabs = KeyResult{StatusError, "Connection failed"}
		default:
			res.ElevenLabs = KeyResult{StatusError, "Network error"}
		}
	}

	if keys.SerpAPI == "" {
		res.SerpAPI = KeyResult{StatusMissing, "No API key provided"}
	} else {
		res.SerpAPI = KeyResult{StatusSuccess, "SerpAPI key configured"}
	}

	return res
}
