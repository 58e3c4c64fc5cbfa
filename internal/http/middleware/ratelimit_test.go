package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(), rl.Handler())
	r.GET("/vehicles", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/chats/:id/messages", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	req.RemoteAddr = "203.0.113.9:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var keys []string
	r := gin.New()
	r.Use(Identity(), func(c *gin.Context) { keys = append(keys, KeyByUserOrIP()(c)) })
	r.GET("/", func(c *gin.Context) {})

	hit(r, http.MethodGet, "/", "")
	hit(r, http.MethodGet, "/", "u1")
	if keys[0] != "ip:203.0.113.9" || keys[1] != "user:u1" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(0, 2, KeyByUserOrIP(), nil)
	r := limitedRouter(rl)

	for i := 0; i < 2; i++ {
		if w := hit(r, http.MethodGet, "/vehicles", "u1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	w := hit(r, http.MethodGet, "/vehicles", "u1")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 429 with Retry-After, got %d %q", w.Code, w.Header().Get("Retry-After"))
	}
	// other users have their own bucket
	if w := hit(r, http.MethodGet, "/vehicles", "u2"); w.Code != http.StatusOK {
		t.Fatalf("u2 should not be limited: %d", w.Code)
	}
}

func TestRateLimiter_RetryAfterFromRefillRate(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(0.1, 1, KeyByUserOrIP(), nil)
	rl.now = func() time.Time { return now }
	r := limitedRouter(rl)

	if w := hit(r, http.MethodGet, "/vehicles", "u1"); w.Code != http.StatusOK {
		t.Fatalf("first: %d", w.Code)
	}
	for i := 0; i < 2; i++ {
		w := hit(r, http.MethodGet, "/vehicles", "u1")
		if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "10" {
			t.Fatalf("attempt %d: %d Retry-After=%q", i, w.Code, w.Header().Get("Retry-After"))
		}
	}
	now = now.Add(10 * time.Second)
	if w := hit(r, http.MethodGet, "/vehicles", "u1"); w.Code != http.StatusOK {
		t.Fatalf("rejected requests must not consume tokens: %d", w.Code)
	}
}

func TestRateLimiter_TurnsCostMore(t *testing.T) {
	rl := NewRateLimiter(0, 4, KeyByUserOrIP(), TurnCost(3))
	r := limitedRouter(rl)

	if w := hit(r, http.MethodPost, "/chats/c1/messages", "u1"); w.Code != http.StatusOK {
		t.Fatalf("turn: %d", w.Code)
	}
	if w := hit(r, http.MethodGet, "/vehicles", "u1"); w.Code != http.StatusOK {
		t.Fatalf("one token should remain for a read: %d", w.Code)
	}
	if w := hit(r, http.MethodGet, "/vehicles", "u1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("bucket should be empty: %d", w.Code)
	}
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0, 1, KeyByUserOrIP(), nil)
	r := gin.New()
	r.Use(Identity(), func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
	}, rl.Handler())
	r.GET("/vehicles", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit(r, http.MethodGet, "/vehicles", "u1")
	req := httptest.NewRequest(http.MethodGet, "/vehicles", nil)
	req.Header.Set(HeaderUserID, "u1")
	req.Header.Set("X-Replay", "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("replays must bypass the limiter: %d", w.Code)
	}
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1, KeyByUserOrIP(), nil)
	rl.now = func() time.Time { return now }
	rl.sweepEvery = 2
	r := limitedRouter(rl)

	hit(r, http.MethodGet, "/vehicles", "old")
	now = now.Add(time.Hour)
	hit(r, http.MethodGet, "/vehicles", "fresh")
	if rl.Len() != 1 {
		t.Fatalf("expected the idle bucket to be swept, have %d", rl.Len())
	}
}
