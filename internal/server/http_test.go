package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"account-service/internal/account/handler"
	"account-service/internal/account/service"
	"account-service/internal/mailer"
	"account-service/internal/otp"
	otpdomain "account-service/internal/otp/domain"
	"account-service/internal/security"
	userdomain "account-service/internal/user/domain"
)

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[id]; ok {
		u2 := *u
		return &u2, nil
	}
	return nil, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			u2 := *u
			return &u2, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u2 := *u
	r.byID[u.ID] = &u2
	return nil
}

func (r *memUserRepo) Update(ctx context.Context, u *userdomain.User) error {
	return r.Create(ctx, u)
}

type memOTPRepo struct {
	mu sync.Mutex
	m  map[string]*otpdomain.OTP
}

func otpKey(userID string, purpose otpdomain.Purpose) string {
	return userID + "/" + string(purpose)
}

func (r *memOTPRepo) Find(ctx context.Context, userID string, purpose otpdomain.Purpose) (*otpdomain.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[otpKey(userID, purpose)], nil
}

func (r *memOTPRepo) CodeExists(ctx context.Context, code int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.m {
		if o.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memOTPRepo) Replace(ctx context.Context, o *otpdomain.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o2 := *o
	r.m[otpKey(o.UserID, o.Purpose)] = &o2
	return nil
}

func (r *memOTPRepo) Consume(ctx context.Context, userID string, purpose otpdomain.Purpose, code int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[otpKey(userID, purpose)]
	if !ok || o.Code != code {
		return false, nil
	}
	delete(r.m, otpKey(userID, purpose))
	return true, nil
}

func (r *memOTPRepo) codeFor(userID string, purpose otpdomain.Purpose) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.m[otpKey(userID, purpose)]; ok {
		return o.Code
	}
	return 0
}

type nopMailer struct{}

func (nopMailer) Enqueue(mailer.Message) {}

type testServer struct {
	router http.Handler
	users  *memUserRepo
	otps   *memOTPRepo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	users := &memUserRepo{byID: make(map[string]*userdomain.User)}
	otps := &memOTPRepo{m: make(map[string]*otpdomain.OTP)}
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	svc := service.NewService(users, otp.NewEngine(otps, rand.New(rand.NewSource(1))),
		security.NewHasher(4), tokens, nopMailer{}, nil,
		320*time.Second, 120*time.Second)
	h := handler.NewHandler(svc, zap.NewNop())
	return &testServer{router: NewRouter(h, tokens), users: users, otps: otps}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

// registerAndActivate drives the registration flow over HTTP and returns the user ID.
func (s *testServer) registerAndActivate(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": email, "password": password, "first_name": "Test", "last_name": "User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", rec.Code, rec.Body.String())
	}
	id := decodeBody(t, rec)["id"].(string)

	code := s.otps.codeFor(id, otpdomain.PurposeActivation)
	rec = s.do(t, "POST", "/v1/users/activate", "", map[string]any{"email": email, "otp": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: got %d: %s", rec.Code, rec.Body.String())
	}
	return id
}

func TestRouter_Healthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", rec.Code)
	}
	if decodeBody(t, rec)["status"] != "ok" {
		t.Errorf("healthz body: %s", rec.Body.String())
	}
}

func TestRouter_Register(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": "user@example.com", "password": "password123", "first_name": "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if id, _ := body["id"].(string); id == "" || body["email"] != "user@example.com" {
		t.Errorf("register body: %v", body)
	}

	// Duplicate email conflicts.
	rec = s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": "user@example.com", "password": "password123", "first_name": "Ada",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register: got %d, want 409", rec.Code)
	}

	// Short password is a 400.
	rec = s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": "other@example.com", "password": "short", "first_name": "Ada",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password: got %d, want 400", rec.Code)
	}
}

func TestRouter_RegisterMalformedBody(t *testing.T) {
	s := newTestServer(t)
	r := httptest.NewRequest("POST", "/v1/users", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", rec.Code)
	}
}

func TestRouter_ActivateWrongCode(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": "user@example.com", "password": "password123", "first_name": "Ada",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: got %d", rec.Code)
	}

	rec = s.do(t, "POST", "/v1/users/activate", "", map[string]any{
		"email": "user@example.com", "otp": 10000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("wrong code: got %d, want 400", rec.Code)
	}
	if rec.Code == http.StatusBadRequest && decodeBody(t, rec)["detail"] != "invalid OTP" {
		t.Errorf("detail: %s", rec.Body.String())
	}
}

func TestRouter_LoginFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.registerAndActivate(t, "user@example.com", "password123")

	rec := s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	access, _ := body["access_token"].(string)
	refresh, _ := body["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("login body missing tokens: %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user == nil || user["id"] != id || user["email"] != "user@example.com" {
		t.Errorf("user echo: %v", user)
	}

	// The access token opens the profile route.
	rec = s.do(t, "GET", "/v1/users/me", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: got %d: %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody(t, rec)
	if profile["email"] != "user@example.com" || profile["is_active"] != true {
		t.Errorf("profile body: %v", profile)
	}

	// Refresh mints a new pair.
	rec = s.do(t, "POST", "/v1/tokens/refresh", "", map[string]string{"refresh_token": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: got %d: %s", rec.Code, rec.Body.String())
	}
	if tok, _ := decodeBody(t, rec)["access_token"].(string); tok == "" {
		t.Error("refresh returned no access token")
	}
}

func TestRouter_LoginRejections(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "nobody@example.com", "password": "password123",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown email: got %d, want 401", rec.Code)
	}
	// Same body for unknown email and wrong password.
	unknownDetail := decodeBody(t, rec)["detail"]

	reg := s.do(t, "POST", "/v1/users", "", map[string]string{
		"email": "user@example.com", "password": "password123", "first_name": "Ada",
	})
	if reg.Code != http.StatusCreated {
		t.Fatalf("register: got %d", reg.Code)
	}

	// Not yet activated.
	rec = s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("inactive: got %d, want 403", rec.Code)
	}

	id := decodeBody(t, reg)["id"].(string)
	code := s.otps.codeFor(id, otpdomain.PurposeActivation)
	if rec := s.do(t, "POST", "/v1/users/activate", "", map[string]any{"email": "user@example.com", "otp": code}); rec.Code != http.StatusOK {
		t.Fatalf("activate: got %d", rec.Code)
	}

	rec = s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "wrongpassword",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: got %d, want 401", rec.Code)
	}
	if got := decodeBody(t, rec)["detail"]; got != unknownDetail {
		t.Errorf("wrong password detail %q differs from unknown email detail %q", got, unknownDetail)
	}
}

func TestRouter_TwoFactorFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.registerAndActivate(t, "user@example.com", "password123")

	login := s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	access := decodeBody(t, login)["access_token"].(string)

	rec := s.do(t, "POST", "/v1/users/me/two-factor", access, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: got %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["two_factor_enabled"] != true {
		t.Fatal("toggle should enable two-factor")
	}

	rec = s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("challenged login: got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["two_factor_required"] != true {
		t.Fatalf("expected challenge, got %v", body)
	}
	if _, hasTokens := body["access_token"]; hasTokens {
		t.Fatal("challenge must not carry tokens")
	}

	code := s.otps.codeFor(id, otpdomain.PurposeTwoFactor)
	rec = s.do(t, "POST", "/v1/users/two-factor/verify", "", map[string]any{
		"email": "user@example.com", "otp": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: got %d: %s", rec.Code, rec.Body.String())
	}
	if tok, _ := decodeBody(t, rec)["access_token"].(string); tok == "" {
		t.Error("verify returned no tokens")
	}
}

func TestRouter_PasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.registerAndActivate(t, "user@example.com", "oldpassword")

	rec := s.do(t, "POST", "/v1/users/password/forgot", "", map[string]string{"email": "user@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot: got %d", rec.Code)
	}

	code := s.otps.codeFor(id, otpdomain.PurposeForgotPassword)
	rec = s.do(t, "POST", "/v1/users/password/reset", "", map[string]any{
		"email": "user@example.com", "otp": code, "password": "newpassword",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "newpassword",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password: got %d", rec.Code)
	}
}

func TestRouter_AuthenticatedRoutes(t *testing.T) {
	s := newTestServer(t)
	s.registerAndActivate(t, "user@example.com", "password123")

	if rec := s.do(t, "GET", "/v1/users/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", rec.Code)
	}

	login := s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "password123",
	})
	access := decodeBody(t, login)["access_token"].(string)

	rec := s.do(t, "POST", "/v1/users/me/password", access, map[string]string{"new_password": "newpassword"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("password change: got %d, want 204", rec.Code)
	}

	rec = s.do(t, "DELETE", "/v1/users/me", access, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", rec.Code)
	}

	// A deleted account cannot log in again.
	rec = s.do(t, "POST", "/v1/users/login", "", map[string]string{
		"email": "user@example.com", "password": "newpassword",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("login after delete: got %d, want 403", rec.Code)
	}
}
