package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, subject string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func newAuthRouter(t *testing.T, handler func(m *JWTMiddleware) gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewJWTMiddleware(logger.FromZap(zaptest.NewLogger(t)), &DefaultTokenValidator{Secret: testSecret})

	router := gin.New()
	router.GET("/whoami", handler(m), func(c *gin.Context) {
		c.String(http.StatusOK, RequesterFromContext(c).UserID)
	})
	return router
}

func doRequest(router http.Handler, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestRequireAuth(t *testing.T) {
	router := newAuthRouter(t, (*JWTMiddleware).RequireAuth)
	valid := signToken(t, testSecret, "viewer-u", time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"valid token", valid, http.StatusOK, "viewer-u"},
		{"missing token", "", http.StatusUnauthorized, ""},
		{"wrong secret", signToken(t, []byte("other"), "viewer-u", time.Now().Add(time.Hour)), http.StatusUnauthorized, ""},
		{"expired", signToken(t, testSecret, "viewer-u", time.Now().Add(-time.Hour)), http.StatusUnauthorized, ""},
		{"no subject", signToken(t, testSecret, "", time.Now().Add(time.Hour)), http.StatusUnauthorized, ""},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.token)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	router := newAuthRouter(t, (*JWTMiddleware).OptionalAuth)

	w := doRequest(router, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String(), "anonymous viewer")

	w = doRequest(router, signToken(t, testSecret, "viewer-u", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "viewer-u", w.Body.String())

	w = doRequest(router, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(string(ContextUserIDKey), c.GetHeader("X-User"))
		c.Next()
	})
	router.POST("/checkout", RateLimit(0.001, 2, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	post := func(user string) int {
		r := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		r.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, post("u1"))
	assert.Equal(t, http.StatusCreated, post("u1"))
	assert.Equal(t, http.StatusTooManyRequests, post("u1"))
	assert.Equal(t, http.StatusCreated, post("u2"), "limits are per user")
}

func TestRateLimit_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RateLimit(0, 0, logger.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRequestLogger_OmitsQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(RequestLogger(logger.FromZap(zap.New(core))))
	router.GET("/streams/:stream_id/access/confirm", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/streams/s1/access/confirm?session_id=cs_secret", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/streams/s1/access/confirm", fields["path"])
	assert.Equal(t, "/streams/:stream_id/access/confirm", fields["route"])
	assert.EqualValues(t, http.StatusNoContent, fields["status_code"])
}
