package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"account-service/internal/security"
)

func TestRequireAuth(t *testing.T) {
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	var gotUserID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := RequireAuth(tokens)(next)

	// No header.
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: got %d, want 401", rec.Code)
	}

	// Malformed header.
	rec = httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Token abc")
	protected.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("malformed header: got %d, want 401", rec.Code)
	}

	// Garbage token.
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-jwt")
	protected.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: got %d, want 401", rec.Code)
	}

	// Refresh token must not authenticate a request.
	refresh, _, err := tokens.IssueRefresh(security.Subject{ID: "u1", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+refresh)
	protected.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("refresh token: got %d, want 401", rec.Code)
	}

	// Valid access token.
	access, _, err := tokens.IssueAccess(security.Subject{ID: "u1", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	rec = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	protected.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: got %d, want 200", rec.Code)
	}
	if gotUserID != "u1" {
		t.Errorf("user id in context: got %q, want %q", gotUserID, "u1")
	}
}

func TestRecordClientIP(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r.Context())
	})
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:54321"
	RecordClientIP(next).ServeHTTP(rec, r)
	if got != "192.0.2.10" {
		t.Errorf("client ip: got %q", got)
	}
}
