package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"spai/internal/assistant"
	"spai/internal/audio"
	"spai/internal/capability"
	"spai/internal/validate"
	"spai/pkg/util"
)

func (s *Server) health(c *gin.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   s.now().UTC().Format(time.RFC3339Nano),
		"version":     s.cfg.Version,
		"environment": s.cfg.Env,
		"services": gin.H{
			"openai":     s.cfg.Keys.OpenAI != "",
			"elevenlabs": s.cfg.Keys.ElevenLabs != "",
			"serpapi":    s.cfg.Keys.SerpAPI != "",
		},
		"uptime": time.Since(s.started).Seconds(),
		"memory": gin.H{
			"heapAlloc":  mem.HeapAlloc,
			"heapSys":    mem.HeapSys,
			"sys":        mem.Sys,
			"numGC":      mem.NumGC,
			"goroutines": runtime.NumGoroutine(),
		},
		"sessions": s.hub.Len(),
	})
}

func (s *Server) debugInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"environment": gin.H{
			"env":             s.cfg.Env,
			"hasOpenAIEnvKey": s.cfg.Keys.OpenAI != "",
			"openAIKeyPrefix": util.MaskKey(s.cfg.Keys.OpenAI, 10),
		},
		"versions": gin.H{
			"go": runtime.Version(),
		},
	})
}

func (s *Server) debugTest(c *gin.Context) {
	var body struct {
		TestKey string `json:"testKey"`
	}
	_ = c.ShouldBindJSON(&body)
	if body.TestKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No test key provided"})
		return
	}

	reply, err := s.asst.Debug(c.Request.Context(), body.TestKey)
	if err != nil {
		s.logger.Error("Debug test error", "err", err)
		root := err
		for u := errors.Unwrap(root); u != nil; u = errors.Unwrap(root) {
			root = u
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
			"details": gin.H{
				"name":  fmt.Sprintf("%T", root),
				"cause": root.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"response": reply.Text,
		"usage":    reply.Usage,
	})
}

func keysOf(k *validate.APIKeys) assistant.Keys {
	if k == nil {
		return assistant.Keys{}
	}
	return assistant.Keys{OpenAI: k.OpenAI, ElevenLabs: k.ElevenLabs, SerpAPI: k.SerpAPI}
}

func (s *Server) processCommand(c *gin.Context) {
	var req validate.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process command: " + err.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		s.logger.Warn("Invalid command request", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.asst.Process(c.Request.Context(), assistant.Request{
		Command: req.Command,
		Keys:    keysOf(req.APIKeys),
	})

	var perr *assistant.ProviderError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, assistant.ErrMissingKey), errors.Is(err, assistant.ErrKeyFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": perr.Error()})
	default:
		s.logger.Error("Error processing command", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process command: " + err.Error()})
	}
}

func (s *Server) readFile(c *gin.Context) {
	var req validate.FileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fc, err := s.caps.Files.ReadFile(c.Request.Context(), req.FilePath)
	if err != nil {
		s.logger.Error("File reading error", "path", req.FilePath, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (s *Server) runScript(c *gin.Context) {
	var req validate.ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute script"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !*req.Confirmed {
		c.JSON(http.StatusOK, gin.H{
			"requiresConfirmation": true,
			"message":              capability.ConfirmationPrompt(req.ScriptPath),
			"scriptPath":           req.ScriptPath,
		})
		return
	}

	ex, err := s.caps.Scripts.RunScript(c.Request.Context(), req.ScriptPath)
	if err != nil {
		s.logger.Error("Script execution error", "path", req.ScriptPath, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to execute script"})
		return
	}
	c.JSON(http.StatusOK, ex)
}

func (s *Server) search(c *gin.Context) {
	var req validate.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}
	if req.APIKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": capability.ErrSearchKeyRequired.Error()})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.caps.Search.Search(c.Request.Context(), req.Query, req.APIKey)
	switch {
	case errors.Is(err, capability.ErrSearchKeyRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Error("Search error", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results})
	}
}

func (s *Server) testKeys(c *gin.Context) {
	var body struct {
		APIKeys *validate.APIKeys `json:"apiKeys"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to test API keys",
			"details": err.Error(),
		})
		return
	}

	results := s.asst.TestKeys(c.Request.Context(), keysOf(body.APIKeys), s.check)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) audioClip(c *gin.Context) {
	clip, err := s.clips.Get(c.Param("id"))
	if errors.Is(err, audio.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Audio not found"})
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, clip.ContentType, clip.Data)
}
