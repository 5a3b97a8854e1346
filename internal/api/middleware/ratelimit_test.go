package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/welldanyogia/webrana-cms-backend/internal/logger"
)

func newLimitedServer(rps float64, burst int, security *logger.SecurityLogger) *echo.Echo {
	e := echo.New()
	e.Use(RateLimiterWithConfig(rps, burst, security))
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "success")
	})
	return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if ip != "" {
		req.Header.Set("X-Real-IP", ip)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_WithinLimit(t *testing.T) {
	e := newLimitedServer(10, 20, nil)
	assert.Equal(t, http.StatusOK, hit(e, "").Code)
}

func TestRateLimiter_ExceedsLimit(t *testing.T) {
	e := newLimitedServer(1, 1, nil)

	assert.Equal(t, http.StatusOK, hit(e, "").Code)

	rec := hit(e, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	e := newLimitedServer(1, 1, nil)

	assert.Equal(t, http.StatusOK, hit(e, "192.168.1.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "192.168.1.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "192.168.1.1").Code)
}

func TestRateLimiter_BurstAllowed(t *testing.T) {
	e := newLimitedServer(1, 5, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "").Code, "Request %d should pass", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "").Code)
}

func TestRateLimiter_LogsSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	security := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))
	e := newLimitedServer(1, 1, security)

	hit(e, "10.0.0.9")
	hit(e, "10.0.0.9")

	assert.Contains(t, buf.String(), `"event_type":"rate_limit"`)
	assert.Contains(t, buf.String(), "10.0.0.9")
}

func TestIPRateLimiter_GetLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)

	l1 := limiter.GetLimiter("192.168.1.1")
	assert.NotNil(t, l1)
	assert.Same(t, l1, limiter.GetLimiter("192.168.1.1"))
	assert.NotSame(t, l1, limiter.GetLimiter("192.168.1.2"))
}

func TestIPRateLimiter_CleanupOlderThan(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)
	limiter.GetLimiter("192.168.1.1")
	limiter.GetLimiter("192.168.1.2")

	assert.Zero(t, limiter.CleanupOlderThan(time.Hour))
	assert.Equal(t, 2, limiter.Len())

	time.Sleep(5 * time.Millisecond)
	limiter.GetLimiter("192.168.1.2")

	assert.Equal(t, 1, limiter.CleanupOlderThan(2*time.Millisecond))
	assert.Equal(t, 1, limiter.Len())
}

func TestIPRateLimiter_RunCleanupStopsWithContext(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)
	limiter.GetLimiter("192.168.1.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		limiter.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
