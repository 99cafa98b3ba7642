package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/model"
)

const testCSRFToken = "test-csrf-token"

// testRouter はテスト用の完全なルーターと、呼び出しを観測するモック群。
type testRouter struct {
	handler  http.Handler
	issuer   *mockIssuer
	authn    *mockAuthenticator
	sessions *mockSessions
	lists    *mockListService
	users    *mockUserLookup
	pinger   *mockPinger
	registry *prometheus.Registry
}

// newTestRouter はテスト用の完全なルーターを構築するヘルパー。
// セッション "valid-session" はedith@example.comに解決される。
func newTestRouter(t *testing.T, config middleware.RateLimiterConfig) *testRouter {
	t.Helper()

	limiter := middleware.NewRateLimiter(config)
	t.Cleanup(limiter.Stop)

	tr := &testRouter{
		issuer:   &mockIssuer{},
		authn:    &mockAuthenticator{},
		sessions: &mockSessions{},
		lists:    &mockListService{},
		users:    &mockUserLookup{},
		pinger:   &mockPinger{},
		registry: prometheus.NewRegistry(),
	}
	tr.handler = NewRouter(&RouterDeps{
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MetricsGatherer: tr.registry,
		HealthChecker:   tr.pinger,
		UserResolver: &mockUserResolver{users: map[string]*model.User{
			"valid-session": {Email: "edith@example.com"},
		}},
		RateLimiter:   limiter,
		Issuer:        tr.issuer,
		Authenticator: tr.authn,
		Sessions:      tr.sessions,
		AuthConfig:    AuthHandlerConfig{SessionMaxAge: 3600},
		Users:         tr.users,
		Lists:         tr.lists,
	})
	return tr
}

func (tr *testRouter) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	return w
}

// postWithCSRF はCSRFトークンCookieとヘッダーを付けたフォームPOSTリクエストを返す。
func postWithCSRF(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrftoken", Value: testCSRFToken})
	req.Header.Set("X-CSRFToken", testCSRFToken)
	return req
}

func TestNewRouter_Health(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := tr.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}

	tr.pinger.err = errors.New("connection refused")
	w = tr.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /health (db down) status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "superlists_test_total", Help: "test"})
	tr.registry.MustRegister(counter)
	counter.Inc()

	w := tr.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "superlists_test_total 1") {
		t.Errorf("metrics body does not contain registered counter:\n%s", w.Body.String())
	}
}

func TestNewRouter_SecurityHeaders(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := tr.serve(httptest.NewRequest(http.MethodGet, "/", nil))
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestNewRouter_Home_IssuesCSRFCookie(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	w := tr.serve(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want %d", w.Code, http.StatusOK)
	}
	if c := findCookie(w.Result(), "csrftoken"); c == nil || c.Value == "" {
		t.Error("expected csrftoken cookie on GET /")
	}
}

func TestNewRouter_Home_ResolvesSessionUser(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-session"})
	w := tr.serve(req)

	var resp homeResponse
	decodeJSON(t, w, &resp)
	if resp.User == nil || resp.User.Email != "edith@example.com" {
		t.Errorf("user = %+v, want edith@example.com", resp.User)
	}
}

func TestNewRouter_POST_RequiresCSRF(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())

	req := httptest.NewRequest(http.MethodPost, "/lists", strings.NewReader("text=milk"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := tr.serve(req)

	if w.Code != http.StatusForbidden {
		t.Errorf("POST /lists (no CSRF) status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestNewRouter_NewList_OwnedByLoggedInUser(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())
	var gotOwner *model.User
	tr.lists.createListFn = func(ctx context.Context, text string, owner *model.User) (*model.List, error) {
		gotOwner = owner
		return &model.List{ID: testListID}, nil
	}

	req := postWithCSRF("/lists", url.Values{"text": {"A new list item"}})
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-session"})
	w := tr.serve(req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("POST /lists status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if gotOwner == nil || gotOwner.Email != "edith@example.com" {
		t.Errorf("owner = %+v, want edith@example.com", gotOwner)
	}
}

func TestNewRouter_Routes(t *testing.T) {
	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "GET /csrf-token",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/csrf-token", nil) },
			status: http.StatusOK,
		},
		{
			name:   "POST /login-request",
			req:    func() *http.Request { return postWithCSRF("/login-request", url.Values{"email": {"a@b.com"}}) },
			status: http.StatusSeeOther,
		},
		{
			name: "POST /accounts/send_login_email",
			req: func() *http.Request {
				return postWithCSRF("/accounts/send_login_email", url.Values{"email": {"a@b.com"}})
			},
			status: http.StatusSeeOther,
		},
		{
			name:   "GET /login",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/login?token=abcd123", nil) },
			status: http.StatusSeeOther,
		},
		{
			name:   "GET /accounts/login",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/accounts/login?token=abcd123", nil) },
			status: http.StatusSeeOther,
		},
		{
			name:   "POST /logout",
			req:    func() *http.Request { return postWithCSRF("/logout", nil) },
			status: http.StatusSeeOther,
		},
		{
			name:   "POST /accounts/logout",
			req:    func() *http.Request { return postWithCSRF("/accounts/logout", nil) },
			status: http.StatusSeeOther,
		},
		{
			name:   "POST /lists",
			req:    func() *http.Request { return postWithCSRF("/lists", url.Values{"text": {"milk"}}) },
			status: http.StatusSeeOther,
		},
		{
			name:   "POST /lists/new",
			req:    func() *http.Request { return postWithCSRF("/lists/new", url.Values{"text": {"milk"}}) },
			status: http.StatusSeeOther,
		},
		{
			name:   "GET /lists/{id}",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/lists/"+testListID, nil) },
			status: http.StatusOK,
		},
		{
			name: "POST /lists/{id}/items",
			req: func() *http.Request {
				return postWithCSRF("/lists/"+testListID+"/items", url.Values{"text": {"eggs"}})
			},
			status: http.StatusSeeOther,
		},
		{
			name: "POST /lists/{id}/add_item",
			req: func() *http.Request {
				return postWithCSRF("/lists/"+testListID+"/add_item", url.Values{"text": {"eggs"}})
			},
			status: http.StatusSeeOther,
		},
		{
			name:   "GET /lists/mine/{email}",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/lists/mine/a@b.com", nil) },
			status: http.StatusOK,
		},
		{
			name:   "GET /lists/users/{email}",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/lists/users/a@b.com", nil) },
			status: http.StatusOK,
		},
		{
			name:   "未定義のルート",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/nowhere", nil) },
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())
			tr.users.lookupFn = func(ctx context.Context, email string) (*model.User, error) {
				return &model.User{Email: email}, nil
			}

			w := tr.serve(tt.req())
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body=%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestNewRouter_LoginRequest_RateLimited(t *testing.T) {
	tr := newTestRouter(t, middleware.NewRateLimiterConfig(1000, 2))

	for i := 0; i < 2; i++ {
		w := tr.serve(postWithCSRF("/login-request", url.Values{"email": {"a@b.com"}}))
		if w.Code != http.StatusSeeOther {
			t.Fatalf("request %d status = %d, want %d", i+1, w.Code, http.StatusSeeOther)
		}
	}

	w := tr.serve(postWithCSRF("/login-request", url.Values{"email": {"a@b.com"}}))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if len(tr.issuer.emails) != 2 {
		t.Errorf("issuer called %d times, want 2", len(tr.issuer.emails))
	}

	// ログインリンク要求以外は制限されない
	w = tr.serve(postWithCSRF("/lists", url.Values{"text": {"milk"}}))
	if w.Code != http.StatusSeeOther {
		t.Errorf("POST /lists status = %d, want %d", w.Code, http.StatusSeeOther)
	}
}

func TestNewRouter_LoginFlow_SetsSessionCookieAndFlash(t *testing.T) {
	tr := newTestRouter(t, middleware.DefaultRateLimiterConfig())
	tr.authn.authenticateFn = func(ctx context.Context, uid string) (*model.User, error) {
		if uid == "abcd123" {
			return &model.User{Email: "edith@example.com"}, nil
		}
		return nil, nil
	}

	w := tr.serve(httptest.NewRequest(http.MethodGet, "/login?token=abcd123", nil))
	if c := findCookie(w.Result(), middleware.SessionCookieName); c == nil || c.Value != "session-abc" {
		t.Errorf("session cookie = %+v, want session-abc", c)
	}

	w = tr.serve(httptest.NewRequest(http.MethodGet, "/login?token=bogus", nil))
	messages := decodeFlashCookie(t, w.Result())
	if len(messages) != 1 || messages[0].Message != InvalidLoginLinkMessage {
		t.Errorf("flash messages = %v, want invalid login link message", messages)
	}
}
