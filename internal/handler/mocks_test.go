package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/model"
)

// --- モック定義 ---

type mockIssuer struct {
	issueFn func(ctx context.Context, email string) (*model.Token, error)
	emails  []string
}

func (m *mockIssuer) IssueLoginToken(ctx context.Context, email string) (*model.Token, error) {
	m.emails = append(m.emails, email)
	if m.issueFn != nil {
		return m.issueFn(ctx, email)
	}
	return &model.Token{Email: email, UID: "abcd123"}, nil
}

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, uid string) (*model.User, error)
	uids           []string
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, uid string) (*model.User, error) {
	m.uids = append(m.uids, uid)
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, uid)
	}
	return nil, nil
}

type mockSessions struct {
	startFn func(ctx context.Context, user *model.User) (*model.Session, error)
	endFn   func(ctx context.Context, sessionID string) error
	ended   []string
}

func (m *mockSessions) StartSession(ctx context.Context, user *model.User) (*model.Session, error) {
	if m.startFn != nil {
		return m.startFn(ctx, user)
	}
	return &model.Session{ID: "session-abc", UserEmail: user.Email}, nil
}

func (m *mockSessions) EndSession(ctx context.Context, sessionID string) error {
	m.ended = append(m.ended, sessionID)
	if m.endFn != nil {
		return m.endFn(ctx, sessionID)
	}
	return nil
}

type mockListService struct {
	createListFn   func(ctx context.Context, text string, owner *model.User) (*model.List, error)
	addItemFn      func(ctx context.Context, listID, text string) (*model.Item, error)
	getListFn      func(ctx context.Context, listID string) (*model.ListView, error)
	listsOwnedByFn func(ctx context.Context, user *model.User) ([]model.ListSummary, error)
}

func (m *mockListService) CreateList(ctx context.Context, text string, owner *model.User) (*model.List, error) {
	if m.createListFn != nil {
		return m.createListFn(ctx, text, owner)
	}
	return &model.List{ID: testListID}, nil
}

func (m *mockListService) AddItem(ctx context.Context, listID, text string) (*model.Item, error) {
	if m.addItemFn != nil {
		return m.addItemFn(ctx, listID, text)
	}
	return &model.Item{ID: 1, ListID: listID, Text: text}, nil
}

func (m *mockListService) GetList(ctx context.Context, listID string) (*model.ListView, error) {
	if m.getListFn != nil {
		return m.getListFn(ctx, listID)
	}
	return &model.ListView{List: model.List{ID: listID}, Items: []model.Item{}}, nil
}

func (m *mockListService) ListsOwnedBy(ctx context.Context, user *model.User) ([]model.ListSummary, error) {
	if m.listsOwnedByFn != nil {
		return m.listsOwnedByFn(ctx, user)
	}
	return []model.ListSummary{}, nil
}

type mockUserLookup struct {
	lookupFn func(ctx context.Context, email string) (*model.User, error)
}

func (m *mockUserLookup) LookupUser(ctx context.Context, email string) (*model.User, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, email)
	}
	return nil, nil
}

type mockUserResolver struct {
	users map[string]*model.User
}

func (m *mockUserResolver) Resolve(ctx context.Context, sessionID string) (*model.User, error) {
	return m.users[sessionID], nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

const testListID = "5f0c8b0e-4c1d-4d55-9a2e-3f1f5b8f0a11"

func strPtr(s string) *string {
	return &s
}

// withURLParams はchiのURLパラメータを設定したリクエストを返す。
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withFlash はフラッシュミドルウェアを通してハンドラーを実行する。
func withFlash(h http.HandlerFunc) http.Handler {
	return middleware.NewFlashMiddleware(middleware.CookieConfig{})(h)
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// decodeFlashCookie はレスポンスのフラッシュCookieを復号する。
func decodeFlashCookie(t *testing.T, resp *http.Response) []middleware.FlashMessage {
	t.Helper()
	c := findCookie(resp, middleware.FlashCookieName)
	if c == nil || c.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		t.Fatalf("failed to decode flash cookie: %v", err)
	}
	var messages []middleware.FlashMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		t.Fatalf("failed to unmarshal flash cookie: %v", err)
	}
	return messages
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v (body=%q)", err, w.Body.String())
	}
}
