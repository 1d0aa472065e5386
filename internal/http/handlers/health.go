package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports basic liveness; readiness of downstream dependencies
// is not probed here since a misconfigured adapter host should fail loudly
// at worker startup, not degrade this endpoint.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
