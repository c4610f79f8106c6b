package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

var localhostOrigin = regexp.MustCompile(`^https?://localhost(:\d+)?$`)

// CORS returns a middleware applying the configured origin allow-list.
// A "*" entry allows everything; origins containing "localhost" also match
// any localhost port during development.
func CORS(allowOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Secret-Key, X-Bearer-Token, X-User-Info")
		c.Header("Access-Control-Max-Age", "86400")
		c.Header("Vary", "Origin")

		if allowed := allowedOrigin(allowOrigins, origin); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func allowedOrigin(allowOrigins []string, requestOrigin string) string {
	for _, o := range allowOrigins {
		if o == "*" {
			return "*"
		}
	}

	if requestOrigin == "" {
		return ""
	}

	for _, o := range allowOrigins {
		if o == requestOrigin {
			return requestOrigin
		}
	}

	if localhostOrigin.MatchString(requestOrigin) {
		for _, o := range allowOrigins {
			if strings.Contains(o, "localhost") {
				return requestOrigin
			}
		}
	}

	return ""
}
