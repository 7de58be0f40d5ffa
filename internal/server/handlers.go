package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"bridges": s.hub.Len(),
	})
}

func (s *Server) listBridges(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"bridges": s.hub.List()})
}

type logLevelRequest struct {
	Level string `json:"level" binding:"required"`
}

// setLogLevel changes the level of the server logger and every bridge
// logger derived from it.
func (s *Server) setLogLevel(c *gin.Context) {
	var req logLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.logger.SetLevel(req.Level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"level": s.logger.Level()})
}
