// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/model"
)

// 画面に表示するフラッシュメッセージ
const (
	LoginEmailSentMessage    = "Check your email, we've sent you a link you can use to log in."
	InvalidLoginLinkMessage  = "Invalid login link, please request a new one"
	loginRedirectDestination = "/"
)

// TokenIssuer はログインリンクの発行を行う。*auth.Issuerが実装する。
type TokenIssuer interface {
	IssueLoginToken(ctx context.Context, email string) (*model.Token, error)
}

// TokenAuthenticator はトークンをユーザーに解決する。*auth.Authenticatorが実装する。
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, uid string) (*model.User, error)
}

// SessionManager はセッションの開始と終了を行う。*auth.SessionBinderが実装する。
type SessionManager interface {
	StartSession(ctx context.Context, user *model.User) (*model.Session, error)
	EndSession(ctx context.Context, sessionID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はマジックリンク認証関連のHTTPハンドラー。
type AuthHandler struct {
	issuer        TokenIssuer
	authenticator TokenAuthenticator
	sessions      SessionManager
	config        AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(issuer TokenIssuer, authenticator TokenAuthenticator, sessions SessionManager, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		issuer:        issuer,
		authenticator: authenticator,
		sessions:      sessions,
		config:        config,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	Email string `json:"email"`
}

// homeResponse はトップページのAPIレスポンス。
type homeResponse struct {
	User     *userResponse             `json:"user"`
	Messages []middleware.FlashMessage `json:"messages"`
}

// Home は現在のユーザーと保留中のメッセージを返す。
// GET /
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	resp := homeResponse{Messages: middleware.PopFlashes(r.Context())}
	if user := middleware.UserFromContext(r.Context()); user != nil {
		resp.User = &userResponse{Email: user.Email}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SendLoginEmail はログインリンクをメールで送信し、トップページにリダイレクトする。
// POST /login-request
func (h *AuthHandler) SendLoginEmail(w http.ResponseWriter, r *http.Request) {
	email, err := readField(w, r, "email")
	if err != nil {
		middleware.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.issuer.IssueLoginToken(r.Context(), email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.AddFlash(r.Context(), middleware.FlashSuccess, LoginEmailSentMessage)
	http.Redirect(w, r, loginRedirectDestination, http.StatusSeeOther)
}

// Login はログインリンクのトークンを検証し、セッションを開始する。
// 成否に関わらずトップページにリダイレクトし、失敗時はメッセージを表示する。
// GET /login?token=xxx
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticator.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to authenticate login token", slog.String("error", err.Error()))
	}
	if user == nil {
		middleware.AddFlash(r.Context(), middleware.FlashError, InvalidLoginLinkMessage)
		http.Redirect(w, r, loginRedirectDestination, http.StatusSeeOther)
		return
	}

	session, err := h.sessions.StartSession(r.Context(), user)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to start session", slog.String("error", err.Error()))
		middleware.AddFlash(r.Context(), middleware.FlashError, InvalidLoginLinkMessage)
		http.Redirect(w, r, loginRedirectDestination, http.StatusSeeOther)
		return
	}

	http.SetCookie(w, h.sessionCookie(session.ID, h.config.SessionMaxAge))
	http.Redirect(w, r, loginRedirectDestination, http.StatusSeeOther)
}

// Logout はセッションを破棄し、トップページにリダイレクトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if err := h.sessions.EndSession(r.Context(), cookie.Value); err != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.ErrorContext(r.Context(), "failed to logout", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, h.sessionCookie("", -1))
	http.Redirect(w, r, loginRedirectDestination, http.StatusSeeOther)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
