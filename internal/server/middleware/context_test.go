package middleware

import (
	"context"
	"net/http/httptest"
	"testing"
)

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Fatal("empty context should not carry a user id")
	}
	ctx = WithUserID(ctx, "u1")
	id, ok := GetUserID(ctx)
	if !ok || id != "u1" {
		t.Errorf("GetUserID: got %q %v", id, ok)
	}
}

func TestClientIPContext(t *testing.T) {
	ctx := context.Background()
	if ip := GetClientIP(ctx); ip != "unknown" {
		t.Errorf("empty context IP: got %q, want \"unknown\"", ip)
	}
	ctx = WithClientIP(ctx, "10.0.0.1")
	if ip := GetClientIP(ctx); ip != "10.0.0.1" {
		t.Errorf("GetClientIP: got %q", ip)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	if ip := ClientIP(r); ip != "192.0.2.10" {
		t.Errorf("remote addr: got %q", ip)
	}

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := ClientIP(r); ip != "203.0.113.7" {
		t.Errorf("forwarded: got %q", ip)
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.RemoteAddr = "missing-port"
	if ip := ClientIP(r2); ip != "missing-port" {
		t.Errorf("unparsable remote addr: got %q", ip)
	}
}
