package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness. Readiness is the DB ping at startup; a
// process that answers here is serving.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
