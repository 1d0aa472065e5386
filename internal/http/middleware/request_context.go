package middleware

import (
	"github.com/gin-gonic/gin"
)

// AttachRequestContext is the first middleware in the chain; it exists as an
// explicit hook point so later middleware can assume request-scoped context
// values have already been seeded.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
	}
}
