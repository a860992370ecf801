package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})
	r.GET("/whoami", handlers...)
	return r
}

func get(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	tokens := auth.NewTokenService("secret", "recipegram")
	r := newRouter(Auth(tokens))

	t.Run("Missing", func(t *testing.T) {
		w := get(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "auth_error", body["error"])
	})

	t.Run("Invalid", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "not-a-jwt").Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other, err := auth.NewTokenService("other", "recipegram").Issue("alice", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, get(r, other).Code)
	})

	t.Run("Valid", func(t *testing.T) {
		token, err := tokens.Issue("alice", time.Hour)
		require.NoError(t, err)

		w := get(r, token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"userId":"alice"}`, w.Body.String())
	})
}

func TestRateLimitPerUser(t *testing.T) {
	tokens := auth.NewTokenService("secret", "recipegram")
	limiter := NewKeyedRateLimiter(rate.Limit(0.001), 2)
	t.Cleanup(limiter.Stop)
	r := newRouter(Auth(tokens), RateLimit(limiter, zap.NewNop()))

	alice, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)
	bob, err := tokens.Issue("bob", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, alice).Code)
	assert.Equal(t, http.StatusOK, get(r, alice).Code)

	w := get(r, alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limited")

	// buckets are per user
	assert.Equal(t, http.StatusOK, get(r, bob).Code)
}

func TestKeyedRateLimiterEvictsIdle(t *testing.T) {
	limiter := NewKeyedRateLimiter(rate.Limit(1), 1)
	t.Cleanup(limiter.Stop)

	first := limiter.Limiter("alice")
	assert.Same(t, first, limiter.Limiter("alice"))

	limiter.evictIdle(time.Now().Add(limiterIdleTTL + time.Second))
	assert.NotSame(t, first, limiter.Limiter("alice"))
}
