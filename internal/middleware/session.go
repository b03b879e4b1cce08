package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const (
	// ContextSessionKey is the gin context key storing the caller's session id.
	ContextSessionKey = "timetableSession"
	// SessionHeader lets anonymous callers keep separate selection and editor state.
	SessionHeader = "X-Session-ID"

	defaultSessionID   = "default"
	maxSessionIDLength = 128
)

// Session resolves the caller's session id from the JWT subject, the
// X-Session-ID header, or the shared default, and echoes it back.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok && claims != nil {
				id = claims.UserID
			}
		}
		if id == "" {
			id = strings.TrimSpace(c.GetHeader(SessionHeader))
			if len(id) > maxSessionIDLength {
				id = id[:maxSessionIDLength]
			}
		}
		if id == "" {
			id = defaultSessionID
		}
		c.Set(ContextSessionKey, id)
		c.Header(SessionHeader, id)
		c.Next()
	}
}
