package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health returns the service health status.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "apms-backend-go",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
