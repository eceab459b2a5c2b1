package middlewares_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"eventapi/middlewares"
)

func serve(s *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

// RPS=1, Burst=1: the second immediate request gets 429 and Retry-After.
func TestRateLimiter_429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := middlewares.NewRateLimiter(ctx, middlewares.LimiterConfig{
		RPS: 1, Burst: 1, IdleTTL: time.Minute,
	})

	s := gin.New()
	s.Use(rl.Middleware(func(c *gin.Context) string { return "k" }))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	if w := serve(s, http.MethodGet, "/x"); w.Code != http.StatusOK {
		t.Fatalf("first request want 200, got %d", w.Code)
	}
	w := serve(s, http.MethodGet, "/x")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("want 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimiter_SeparateKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	rl := middlewares.NewRateLimiter(ctx, middlewares.LimiterConfig{RPS: 1, Burst: 1, IdleTTL: time.Minute})

	s := gin.New()
	s.Use(rl.Middleware(func(c *gin.Context) string { return c.Query("k") }))
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for _, k := range []string{"a", "b", "c"} {
		if w := serve(s, http.MethodGet, "/x?k="+k); w.Code != http.StatusOK {
			t.Fatalf("key %s: want 200, got %d", k, w.Code)
		}
	}
}

// Limit=2: two writes pass, the third is 429; GETs are not counted.
func TestQuota_Exceed429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := gin.New()
	s.Use(middlewares.Quota(rdb, middlewares.QuotaRule{
		Limit:  2,
		Window: time.Hour,
		KeyFn:  middlewares.WriteQuotaKey,
	}))
	s.POST("/x", func(c *gin.Context) { c.String(200, "ok") })
	s.GET("/x", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 2; i++ {
		w := serve(s, http.MethodPost, "/x")
		if w.Code != 200 {
			t.Fatalf("unexpected %d", w.Code)
		}
		if w.Header().Get("X-Quota-Used") == "" {
			t.Fatalf("missing X-Quota-Used")
		}
	}
	if w := serve(s, http.MethodPost, "/x"); w.Code != 429 {
		t.Fatalf("want 429, got %d; body=%s", w.Code, w.Body.String())
	}
	if w := serve(s, http.MethodGet, "/x"); w.Code != 200 {
		t.Fatalf("GET should skip the quota, got %d", w.Code)
	}

	var ttlSet bool
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "quota:writes:") && mr.TTL(k) > 0 {
			ttlSet = true
		}
	}
	if !ttlSet {
		t.Fatalf("quota key has no expiry: %v", mr.Keys())
	}
}

// Redis down: requests pass.
func TestQuota_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	s := gin.New()
	s.Use(middlewares.Quota(rdb, middlewares.QuotaRule{Limit: 1, Window: time.Hour, KeyFn: middlewares.WriteQuotaKey}))
	s.POST("/x", func(c *gin.Context) { c.String(200, "ok") })

	for i := 0; i < 3; i++ {
		if w := serve(s, http.MethodPost, "/x"); w.Code != 200 {
			t.Fatalf("want 200 while redis is down, got %d", w.Code)
		}
	}
}

func TestResponseCache_MissThenHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	calls := 0
	s := gin.New()
	s.Use(middlewares.ResponseCache(rdb, 30*time.Second))
	s.GET("/event/", func(c *gin.Context) {
		calls++
		c.JSON(200, gin.H{"ok": 1})
	})
	s.GET("/event/:event_id", func(c *gin.Context) {
		c.JSON(404, gin.H{"message": "nope"})
	})

	w1 := serve(s, http.MethodGet, "/event/")
	if w1.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("want MISS, got %q", w1.Header().Get("X-Cache"))
	}
	w2 := serve(s, http.MethodGet, "/event/")
	if w2.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("want HIT, got %q", w2.Header().Get("X-Cache"))
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if !bytes.Equal(w1.Body.Bytes(), w2.Body.Bytes()) {
		t.Fatalf("cached body differs: %q vs %q", w1.Body.String(), w2.Body.String())
	}

	// non-2xx is never stored
	serve(s, http.MethodGet, "/event/7")
	if mr.Exists(middlewares.CacheItemPrefix + "7") {
		t.Fatalf("404 response was cached")
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	s := gin.New()
	s.Use(middlewares.RequestID(logger), middlewares.RequestLogging(logger))
	s.GET("/x", func(c *gin.Context) {
		middlewares.Logger(c).Info().Msg("inside")
		c.String(200, "ok")
	})

	w := serve(s, http.MethodGet, "/x")
	id := w.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatalf("missing generated X-Request-ID")
	}
	if strings.Count(logs.String(), id) != 2 {
		t.Fatalf("want request id in handler and access log lines, got %s", logs.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "from-proxy")
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "from-proxy" {
		t.Fatalf("incoming id not kept: %q", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := middlewares.NewRegistry()
	m := middlewares.NewHTTPMetrics(reg)

	s := gin.New()
	s.Use(m.Middleware())
	s.GET("/event/:event_id", func(c *gin.Context) { c.String(200, "ok") })

	serve(s, http.MethodGet, "/event/1")
	serve(s, http.MethodGet, "/event/2")
	serve(s, http.MethodGet, "/missing")

	n, err := testutil.GatherAndCount(reg, "eventapi_http_requests_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	// one series for the route template, one for unmatched
	if n != 2 {
		t.Fatalf("want 2 series, got %d", n)
	}
}
