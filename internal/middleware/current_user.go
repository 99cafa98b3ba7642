// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/superlists/internal/model"
)

// SessionCookieName はセッションキーを保持するCookieの名前。
const SessionCookieName = "sessionid"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに現在のユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// UserResolver はセッションキーから現在のユーザーを解決するインターフェース。
// auth.SessionBinderが実装する。
type UserResolver interface {
	Resolve(ctx context.Context, sessionID string) (*model.User, error)
}

// NewCurrentUserMiddleware はCookieのセッションキーから現在のユーザーを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// セッションが無い、無効、または解決に失敗したリクエストは匿名として通過させる。
func NewCurrentUserMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.Resolve(r.Context(), cookie.Value)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to resolve session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから現在のユーザーを取得する。
// 匿名リクエストではnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
