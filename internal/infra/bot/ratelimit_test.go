package bot_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voicegate/internal/infra/bot"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl := bot.NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within the limit", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request over the limit was allowed")
	}
}

func TestRateLimiter_HostsAreIndependent(t *testing.T) {
	rl := bot.NewRateLimiter(1, time.Minute)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first host rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("second host shares the first host's bucket")
	}
	if rl.Allow("10.0.0.1") {
		t.Error("first host allowed over its limit")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := bot.NewRateLimiter(1, 20*time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Fatal("first request rejected")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("second request allowed within the window")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.Allow("10.0.0.1") {
		t.Error("request rejected after the window reset")
	}
}

func TestRateLimiter_MiddlewareSharesBucketAcrossPorts(t *testing.T) {
	rl := bot.NewRateLimiter(2, time.Minute)

	calls := 0
	handler := rl.Middleware(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	})

	// Same client host on fresh connections with different ephemeral ports
	// must draw from one bucket.
	for i, remote := range []string{"10.0.0.1:50001", "10.0.0.1:50002", "10.0.0.1:50003"} {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{}"))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler(rec, req)

		want := http.StatusAccepted
		if i == 2 {
			want = http.StatusTooManyRequests
		}
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i+1, rec.Code, want)
		}
	}
	if calls != 2 {
		t.Errorf("handler calls: got %d, want 2", calls)
	}
}

func TestRateLimiter_ForwardedForTakesFirstHop(t *testing.T) {
	rl := bot.NewRateLimiter(1, time.Minute)

	handler := rl.Middleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for i, want := range []int{http.StatusAccepted, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("{}"))
		req.RemoteAddr = "192.168.0.1:1234"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 192.168.0.1")
		rec := httptest.NewRecorder()
		handler(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status %d, want %d", i+1, rec.Code, want)
		}
	}
}
