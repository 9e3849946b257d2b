package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 5) // 10 per minute, burst of 5
	defer rl.Stop()

	// First 5 attempts should be allowed (burst)
	for i := 0; i < 5; i++ {
		if !rl.Allow("203.0.113.7") {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
	}

	// 6th attempt should be rate limited (exceeded burst)
	if rl.Allow("203.0.113.7") {
		t.Error("Attempt 6 should be rate limited")
	}
}

func TestRateLimiter_DifferentAddresses(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	defer rl.Stop()

	// Exhaust the first address's burst
	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.1") {
			t.Errorf("First address attempt %d should be allowed", i+1)
		}
	}
	if rl.Allow("203.0.113.1") {
		t.Error("First address should be rate limited")
	}

	// A different address still has its full burst
	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.2") {
			t.Errorf("Second address attempt %d should be allowed", i+1)
		}
	}
}

func TestConnRateLimitMiddleware_AllowsWithinBurst(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(10, 2)
	defer rl.Stop()

	handlerCalled := false
	handler := func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "OK")
	}

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := ConnRateLimitMiddleware(rl)(handler)(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !handlerCalled {
		t.Error("Handler should be called within burst")
	}
}

func TestConnRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(10, 1)
	defer rl.Stop()

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}

	// First attempt consumes the burst
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ConnRateLimitMiddleware(rl)(handler)(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Second attempt is throttled
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	if err := ConnRateLimitMiddleware(rl)(handler)(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}
