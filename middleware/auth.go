package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ventwave/ventboard/cache"
	"github.com/ventwave/ventboard/config"
)

const (
	UserIDKey = "user_id"
	TokenKey  = "token"
)

// SessionKey is the cache key marking a token as live.
func SessionKey(token string) string { return "session:" + token }

// BearerToken extracts the token from an Authorization header, or "".
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// authenticate validates the token signature and checks that the session is
// still present in the cache. It returns the user id.
func authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (string, string) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return "", "invalid token"
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(token))
	if err != nil || !exists {
		return "", "session expired"
	}
	return claims.UserID, ""
}

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		userID, reason := authenticate(ctx.Request.Context(), sec, c, token)
		if userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}
		ctx.Set(UserIDKey, userID)
		ctx.Set(TokenKey, token)
		ctx.Next()
	}
}

// OptionalAuth attaches the user when a valid session token is presented and
// lets the request through as a guest otherwise.
func OptionalAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token := BearerToken(ctx); token != "" {
			if userID, _ := authenticate(ctx.Request.Context(), sec, c, token); userID != "" {
				ctx.Set(UserIDKey, userID)
				ctx.Set(TokenKey, token)
			}
		}
		ctx.Next()
	}
}

// GetUserID retrieves the authenticated user ID from the Gin context, or "".
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get(UserIDKey); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetToken returns the session token of an authenticated request, or "".
func GetToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}
