package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests must pass")
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("third request must be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients are counted separately")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("1.2.3.4") {
		t.Fatal("new window must reset the count")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := newRateLimiter(10)
	defer rl.stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.allow("1.1.1.1")
	now = now.Add(5 * time.Minute)
	rl.allow("2.2.2.2")
	now = now.Add(6 * time.Minute)

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("active=%d", rl.ActiveClients())
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"direct", "203.0.113.9:4000", "", "203.0.113.9"},
		{"untrusted proxy ignored", "203.0.113.9:4000", "198.51.100.1", "203.0.113.9"},
		{"trusted proxy", "10.0.0.5:4000", "198.51.100.1, 10.0.0.5", "198.51.100.1"},
		{"garbage forwarded", "10.0.0.5:4000", "not-an-ip", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuspiciousReason(t *testing.T) {
	tests := []struct {
		target string
		agent  string
		want   string
	}{
		{"/payments", "Mozilla/5.0", ""},
		{"/.git/config", "", "pattern .git"},
		{"/payments?q=%3Cscript%3E", "", ""},
		{"/wp-admin", "", "pattern wp-admin"},
		{"/", "sqlmap/1.7", "agent sqlmap"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.target, nil)
		r.Header.Set("User-Agent", tt.agent)
		if got := suspiciousReason(r); got != tt.want {
			t.Errorf("%s (%s): got %q, want %q", tt.target, tt.agent, got, tt.want)
		}
	}

	r := httptest.NewRequest("TRACE", "/", nil)
	if got := suspiciousReason(r); got != "method TRACE" {
		t.Errorf("TRACE: got %q", got)
	}
}

func TestRequestID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	if got := requestID(r); got != "abc-123" {
		t.Fatalf("got %q", got)
	}

	r.Header.Set("X-Request-ID", "has space")
	got := requestID(r)
	if len(got) != len("req_")+16 || got[:4] != "req_" {
		t.Fatalf("generated id %q", got)
	}
	if requestID(r) == got {
		t.Fatal("ids must be unique")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Rebar\x00 delivery\x1b \n"); got != "Rebar delivery" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeInput("line1\nline2"); got != "line1\nline2" {
		t.Fatalf("newline dropped: %q", got)
	}
}
