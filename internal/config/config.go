// Package config holds the server configuration. Values are layered:
// built-in defaults, an optional YAML file, then the environment. Command
// line flags are applied on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Keys struct {
	OpenAI     string `yaml:"openai" json:"openai"`
	ElevenLabs string `yaml:"elevenlabs" json:"elevenlabs"`
	SerpAPI    string `yaml:"serpapi" json:"serpapi"`
}

type RateLimit struct {
	Max       int           `yaml:"max"`
	Window    time.Duration `yaml:"window"`
	Backend   string        `yaml:"backend"` // memory | redis
	RedisAddr string        `yaml:"redis_addr"`
	Sweep     string        `yaml:"sweep"` // cron spec
}

type Session struct {
	WakeWord            string        `yaml:"wake_word"`
	Debounce            time.Duration `yaml:"debounce"`
	Inactivity          time.Duration `yaml:"inactivity"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	MinCommandLen       int           `yaml:"min_command_len"`
	MaxReconnect        int           `yaml:"max_reconnect"`
	ReconnectDelay      time.Duration `yaml:"reconnect_delay"`
	StartRetryDelay     time.Duration `yaml:"start_retry_delay"`
	StopPhrases         []string      `yaml:"stop_phrases"`
}

type LLM struct {
	Model       string  `yaml:"model"`
	MaxTokens   int64   `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	BaseURL     string  `yaml:"base_url"`
}

type TTS struct {
	VoiceID    string  `yaml:"voice_id"`
	ModelID    string  `yaml:"model_id"`
	Stability  float64 `yaml:"stability"`
	Similarity float64 `yaml:"similarity_boost"`
	BaseURL    string  `yaml:"base_url"`
}

type Config struct {
	Env         string        `yaml:"env"`
	Version     string        `yaml:"version"`
	Addr        string        `yaml:"addr"`
	LogLevel    string        `yaml:"log_level"`
	Proxy       string        `yaml:"proxy"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	AudioCache  int           `yaml:"audio_cache"`
	Socket      string        `yaml:"socket"`

	Keys      Keys      `yaml:"keys"`
	RateLimit RateLimit `yaml:"ratelimit"`
	Session   Session   `yaml:"session"`
	LLM       LLM       `yaml:"llm"`
	TTS       TTS       `yaml:"tts"`
}

func Default() Config {
	return Config{
		Env:         "development",
		Version:     "1.0.0",
		Addr:        ":3000",
		HTTPTimeout: 120 * time.Second,
		AudioCache:  128,
		Socket:      "/tmp/spai.sock",
		RateLimit: RateLimit{
			Max:     100,
			Window:  time.Minute,
			Backend: "memory",
			Sweep:   "@every 1m",
		},
		Session: Session{
			WakeWord:            "sp",
			Debounce:            2 * time.Second,
			Inactivity:          10 * time.Minute,
			ConfidenceThreshold: 0.7,
			MinCommandLen:       2,
			MaxReconnect:        3,
			ReconnectDelay:      time.Second,
			StartRetryDelay:     2 * time.Second,
			StopPhrases:         []string{"stop listening", "go to sleep"},
		},
		LLM: LLM{
			Model:       "gpt-4o",
			MaxTokens:   1000,
			Temperature: 0.7,
		},
		TTS: TTS{
			VoiceID:    "21m00Tcm4TlvDq8ikWAM",
			ModelID:    "eleven_monolingual_v1",
			Stability:  0.5,
			Similarity: 0.5,
			BaseURL:    "https://api.elevenlabs.io/v1",
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (if non-empty)
// and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setStr := func(dst *string, names ...string) {
		for _, n := range names {
			if v := getenv(n); v != "" {
				*dst = v
				return
			}
		}
	}

	setStr(&c.Env, "SPAI_ENV", "NODE_ENV")
	setStr(&c.Version, "SPAI_VERSION", "npm_package_version")
	setStr(&c.Addr, "SPAI_ADDR")
	setStr(&c.Proxy, "SPAI_PROXY")
	setStr(&c.Keys.OpenAI, "OPENAI_API_KEY")
	setStr(&c.Keys.ElevenLabs, "ELEVENLABS_API_KEY")
	setStr(&c.Keys.SerpAPI, "SERPAPI_KEY")
	setStr(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	setStr(&c.RateLimit.RedisAddr, "REDIS_ADDR")

	if v := getenv("SPAI_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Max = n
		}
	}
	setStr(&c.RateLimit.Backend, "SPAI_RATE_BACKEND")
}

func (c Config) Validate() error {
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("ratelimit.max must be positive, got %d", c.RateLimit.Max)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("ratelimit.window must be positive")
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.RedisAddr == "" {
			return errors.New("ratelimit.backend is redis but no redis address is set")
		}
	default:
		return fmt.Errorf("unknown ratelimit backend %q", c.RateLimit.Backend)
	}
	if c.Session.WakeWord == "" {
		return errors.New("session.wake_word must not be empty")
	}
	if c.Session.MaxReconnect < 0 {
		return errors.New("session.max_reconnect must not be negative")
	}
	if c.AudioCache <= 0 {
		return errors.New("audio_cache must be positive")
	}
	return nil
}
