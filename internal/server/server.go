// Package server exposes the assistant over HTTP: the stateless JSON API,
// the voice session websocket and the Prometheus endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"spai/internal/assistant"
	"spai/internal/audio"
	"spai/internal/capability"
	"spai/internal/config"
	"spai/internal/logging"
	"spai/internal/ratelimit"
)

type Deps struct {
	Config       config.Config
	Assistant    *assistant.Service
	Checker      assistant.KeyChecker
	Clips        *audio.Store
	Capabilities capability.Set
	Limiter      *ratelimit.Limiter
	Logger       *log.Logger
}

type Server struct {
	cfg    config.Config
	asst   *assistant.Service
	check  assistant.KeyChecker
	clips  *audio.Store
	caps   capability.Set
	limit  *ratelimit.Limiter
	logger *log.Logger

	engine  *gin.Engine
	http    *http.Server
	cron    *cron.Cron
	hub     *Hub
	started time.Time
	now     func() time.Time
}

func New(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.New(ratelimit.NewMemoryStore(d.Config.RateLimit.Max, d.Config.RateLimit.Window))
	}

	if logging.IsProduction(d.Config.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     d.Config,
		asst:    d.Assistant,
		check:   d.Checker,
		clips:   d.Clips,
		caps:    d.Capabilities,
		limit:   d.Limiter,
		logger:  d.Logger,
		cron:    cron.New(),
		started: time.Now(),
		now:     time.Now,
	}
	s.hub = newHub(s)

	if err := s.schedule(); err != nil {
		return nil, err
	}

	s.engine = s.routes()
	s.http = &http.Server{
		Addr:              d.Config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLog())
	r.Use(s.guard())

	api := r.Group("/api")
	{
		api.GET("/health", s.health)
		api.GET("/debug", s.debugInfo)
		api.POST("/debug", s.debugTest)
		api.POST("/process-command", s.processCommand)
		api.POST("/read-file", s.readFile)
		api.POST("/run-script", s.runScript)
		api.POST("/search", s.search)
		api.POST("/test-keys", s.testKeys)
		api.GET("/audio/:id", s.audioClip)
		api.GET("/session", s.sessionSocket)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// schedule registers the maintenance jobs.
func (s *Server) schedule() error {
	spec := s.cfg.RateLimit.Sweep
	if spec == "" {
		return nil
	}
	_, err := s.cron.AddFunc(spec, func() {
		if n := s.limit.Sweep(); n > 0 {
			s.logger.Debug("Swept rate limit windows", "expired", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.cron.Start()
	s.logger.Info("Listening", "addr", s.cfg.Addr, "env", s.cfg.Env)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()
	s.hub.closeAll()
	return s.http.Shutdown(ctx)
}
