package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	cli "github.com/spf13/pflag"

	log "log/slog"

	"spai/internal/assistant"
	"spai/internal/audio"
	"spai/internal/capability"
	"spai/internal/config"
	"spai/internal/ipc"
	"spai/internal/logging"
	"spai/internal/proxy"
	"spai/internal/ratelimit"
	"spai/internal/server"
	"spai/internal/tts"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := cli.NewFlagSet("spai", cli.ContinueOnError)
	envFile := flags.StringP("env", "e", ".env", "Env file path")
	cfgFile := flags.StringP("config", "c", "", "YAML config file")
	addr := flags.StringP("addr", "a", "", "Listen address (overrides config)")
	proxyAddr := flags.StringP("proxy", "p", "", "Socks Proxy Address")
	logLevel := flags.StringP("log", "l", "", "Log level")
	socket := flags.StringP("socket", "s", "", "Control socket path")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		return 1
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *proxyAddr != "" {
		cfg.Proxy = *proxyAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *socket != "" {
		cfg.Socket = *socket
	}

	log.SetDefault(logging.New(os.Stdout, cfg.Env, logging.ParseLevel(cfg.LogLevel, cfg.Env)))

	log.Info("Booting up", "version", cfg.Version, "env", cfg.Env)

	httpClient, err := proxy.NewClient(cfg.Proxy, cfg.HTTPTimeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		return 1
	}
	if cfg.Proxy != "" {
		log.Debug("Loaded proxy", "proxy", cfg.Proxy)
	}

	limiter, closeStore := newLimiter(cfg)
	defer closeStore()

	clips, err := audio.NewStore(cfg.AudioCache, "/api/audio/")
	if err != nil {
		log.Error("Failed to create audio store", "err", err)
		return 1
	}

	speech := tts.New(tts.Config{
		BaseURL:    cfg.TTS.BaseURL,
		VoiceID:    cfg.TTS.VoiceID,
		ModelID:    cfg.TTS.ModelID,
		Stability:  cfg.TTS.Stability,
		Similarity: cfg.TTS.Similarity,
	}, httpClient)

	llm := assistant.NewOpenAI(assistant.OpenAIConfig{
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.BaseURL,
	}, httpClient)

	asst := assistant.New(llm, speech, clips, assistant.Options{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Keys:        assistant.Keys(cfg.Keys),
	}, log.Default())

	if cfg.Keys.OpenAI == "" {
		log.Warn("OPENAI_API_KEY not set, clients must send their own key")
	}

	srv, err := server.New(server.Deps{
		Config:       cfg,
		Assistant:    asst,
		Checker:      speech,
		Clips:        clips,
		Capabilities: capability.Stubs(),
		Limiter:      limiter,
		Logger:       log.Default(),
	})
	if err != nil {
		log.Error("Failed to build server", "err", err)
		return 1
	}

	started := time.Now()
	ctl, err := ipc.StartServer(cfg.Socket, func(msg ipc.ControlMessage) (any, error) {
		switch msg.Cmd {
		case ipc.CmdStatus:
			return map[string]any{
				"version":  cfg.Version,
				"env":      cfg.Env,
				"uptime":   time.Since(started).Round(time.Second).String(),
				"sessions": srv.Hub().Status(),
			}, nil
		case ipc.CmdHibernate:
			n := srv.Hub().HibernateAll()
			log.Info("Hibernated sessions", "count", n)
			return map[string]int{"sessions": n}, nil
		case ipc.CmdRestart:
			n := srv.Hub().RestartAll()
			log.Info("Restarted sessions", "count", n)
			return map[string]int{"sessions": n}, nil
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
			return nil, errors.New("unknown command: " + msg.Cmd)
		}
	})
	if err != nil {
		log.Error("Failed ipc server", "err", err)
		return 1
	}
	defer ctl.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	log.Info("Boot up - successful")

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server failed", "err", err)
			return 1
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", "err", err)
			return 1
		}
	}
	return 0
}

func newLimiter(cfg config.Config) (*ratelimit.Limiter, func()) {
	rl := cfg.RateLimit
	if rl.Backend != "redis" {
		log.Debug("Rate limiting in memory", "max", rl.Max, "window", rl.Window)
		return ratelimit.New(ratelimit.NewMemoryStore(rl.Max, rl.Window)), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: rl.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis not reachable, requests are allowed until it is", "addr", rl.RedisAddr, "err", err)
	}
	log.Debug("Rate limiting in redis", "addr", rl.RedisAddr, "max", rl.Max, "window", rl.Window)
	return ratelimit.New(ratelimit.NewRedisStore(client, rl.Max, rl.Window)), func() { client.Close() }
}
