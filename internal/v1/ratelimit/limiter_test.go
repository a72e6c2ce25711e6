package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_InvalidFormat(t *testing.T) {
	_, err := NewRateLimiter("not-a-rate", "100-M")
	assert.Error(t, err)

	_, err = NewRateLimiter("100-M", "also-bad")
	assert.Error(t, err)
}

func TestMiddleware_EnforcesLimit(t *testing.T) {
	rl, err := NewRateLimiter("2-M", "100-M")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/towns", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/towns", nil)
		req.RemoteAddr = "10.1.2.3:4000"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	assert.Equal(t, http.StatusOK, hit().Code)
	assert.Equal(t, http.StatusOK, hit().Code)

	blocked := hit()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestMiddleware_SetsRateHeaders(t *testing.T) {
	rl, err := NewRateLimiter("10-M", "100-M")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/towns", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/towns", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", resp.Header().Get("X-RateLimit-Remaining"))
}

func TestCheckWebSocket(t *testing.T) {
	rl, err := NewRateLimiter("100-M", "1-M")
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)

	check := func() (bool, *httptest.ResponseRecorder) {
		resp := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(resp)
		c.Request = httptest.NewRequest(http.MethodGet, "/ws/town/t1", nil)
		c.Request.RemoteAddr = "10.9.9.9:1234"
		return rl.CheckWebSocket(c), resp
	}

	ok, _ := check()
	assert.True(t, ok)

	ok, resp := check()
	assert.False(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
}
