package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/store"
)

// Context keys set by requireSession.
const (
	userIDKey = "bebetter_user_id"
	tokenKey  = "bebetter_token"
)

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" if the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token to a user id or aborts with 401.
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized"})
			return
		}

		userID, err := s.store.SessionUser(c.Request.Context(), token)
		if err != nil {
			if store.IsCode(err, store.ErrCodeInvalidSession) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Unauthorized"})
				return
			}
			s.internalError(c, "session lookup failed", err)
			return
		}

		c.Set(userIDKey, userID)
		c.Set(tokenKey, token)
		c.Next()
	}
}
