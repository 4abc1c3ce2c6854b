package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"message":   "rfacto API is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.cfg.AppVersion,
	})
}

// Health echoes the caller when a valid token was sent.
func (s *Server) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "user": nil}
	if identity, ok := identityFromContext(c); ok {
		resp["user"] = identity
	}
	c.JSON(http.StatusOK, resp)
}
