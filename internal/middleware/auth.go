package middleware

import (
	"github.com/harshhpatil/recipegramapp-sub000/internal/apperror"
	"github.com/harshhpatil/recipegramapp-sub000/internal/auth"
	"github.com/harshhpatil/recipegramapp-sub000/internal/handler"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

// TokenParser validates a bearer credential
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores the caller's
// user id for handlers.
func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerFromRequest(c.Request)
		if err != nil {
			handler.AbortWithError(c, apperror.Auth("authorization header required"))
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			handler.AbortWithError(c, apperror.Auth("invalid or expired token"))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated caller set by Auth
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
