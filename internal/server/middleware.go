package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spai/internal/logging"
	"spai/internal/metrics"
)

var staticPrefixes = []string{"/static/", "/favicon.ico"}

func isStatic(path string) bool {
	for _, p := range staticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// guard applies the rate limit to /api/ routes, sets the security headers
// and, in production, redirects plain HTTP to HTTPS.
func (s *Server) guard() gin.HandlerFunc {
	production := logging.IsProduction(s.cfg.Env)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isStatic(path) {
			c.Next()
			return
		}

		if strings.HasPrefix(path, "/api/") && !s.rateLimit(c) {
			return
		}

		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

		if production && c.GetHeader("X-Forwarded-Proto") != "https" {
			c.Redirect(http.StatusTemporaryRedirect, "https://"+c.Request.Host+path)
			c.Abort()
			return
		}

		c.Next()
	}
}

// rateLimit counts the request and reports whether it may proceed. Store
// failures let the request through.
func (s *Server) rateLimit(c *gin.Context) bool {
	id := c.ClientIP()
	if id == "" {
		id = "anonymous"
	}

	d, err := s.limit.Allow(c.Request.Context(), id)
	if err != nil {
		s.logger.Warn("Rate limiter unavailable, allowing request", "ip", id, "err", err)
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

	if !d.Allowed {
		metrics.RateLimited.Inc()
		s.logger.Warn("Rate limit exceeded", "ip", id, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return false
	}
	return true
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.RequestCount.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		s.logger.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
			"ip", c.ClientIP(),
		)
	}
}
