package approuters

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harshhpatil/recipegramapp-sub000/internal/auth"
	"github.com/harshhpatil/recipegramapp-sub000/internal/configuration"
	"github.com/harshhpatil/recipegramapp-sub000/internal/handler"
	"github.com/harshhpatil/recipegramapp-sub000/internal/hub"
	"github.com/harshhpatil/recipegramapp-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestContainer(t *testing.T) *configuration.Container {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub(nil, nil, nil, nil, hub.Options{}, zap.NewNop())
	limiter := middleware.NewKeyedRateLimiter(rate.Limit(1), 1)
	t.Cleanup(func() {
		h.Stop()
		limiter.Stop()
	})

	return &configuration.Container{
		MessageHandler: handler.NewMessageHandler(nil, nil, h, h, middleware.UserID, zap.NewNop()),
		MonitorHandler: handler.NewMonitorHandler(hub.NewMonitorService(h)),
		Tokens:         auth.NewTokenService("secret", "recipegram"),
		SendLimiter:    limiter,
		Hub:            h,
		Config: configuration.Config{
			App:    configuration.AppConfig{Name: "recipegram-messaging", Env: "test"},
			Server: configuration.ServerConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		},
		Logger: zap.NewNop(),
	}
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	r := NewRouter(newTestContainer(t))

	w := serve(r, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recipegram-messaging")
}

func TestMessageRoutesRequireAuth(t *testing.T) {
	r := NewRouter(newTestContainer(t))

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/messages"},
		{http.MethodGet, "/api/messages/unread/count"},
		{http.MethodGet, "/api/messages/bob"},
		{http.MethodPut, "/api/messages/m1/read"},
		{http.MethodDelete, "/api/messages/m1"},
		{http.MethodPut, "/api/conversations/bob/read"},
		{http.MethodGet, "/api/presence/bob"},
	} {
		w := serve(r, route.method, route.path)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestPresenceRouteWithToken(t *testing.T) {
	c := newTestContainer(t)
	r := NewRouter(c)

	token, err := c.Tokens.Issue("alice", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/presence/bob", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"online":false`)
}

func TestMonitorRoute(t *testing.T) {
	r := NewRouter(newTestContainer(t))

	w := serve(r, http.MethodGet, "/cf/api/monitor/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"idle"`)
}
