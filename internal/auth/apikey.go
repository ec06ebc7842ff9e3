package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const headerName = "X-API-Key"

// RequireKey accepts a request whose X-API-Key header equals any non-empty
// key in keys. When every key is empty, authentication is disabled.
func RequireKey(keys ...string) gin.HandlerFunc {
	var accepted [][]byte
	for _, k := range keys {
		if k != "" {
			accepted = append(accepted, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(accepted) == 0 {
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		ok := 0
		for _, k := range accepted {
			ok |= subtle.ConstantTimeCompare([]byte(provided), k)
		}
		if ok != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
