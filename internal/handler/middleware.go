package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// requestKey reads the caller's key from X-API-Key, or from a bearer
// Authorization header for clients that only speak OAuth-style auth.
func requestKey(c *gin.Context) string {
	if k := strings.TrimSpace(c.GetHeader("X-API-Key")); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// APIKeyAuth gates manual triggers behind key. With no key configured every
// request is refused.
func APIKeyAuth(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "manual triggers disabled, API_KEY not set"})
			return
		}
		got := requestKey(c)
		switch {
		case got == "":
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
		case subtle.ConstantTimeCompare([]byte(got), want) != 1:
			log.Warn().Str("component", "http").Str("path", c.FullPath()).Str("client", c.ClientIP()).Msg("rejected api key")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid api key"})
		default:
			c.Next()
		}
	}
}
