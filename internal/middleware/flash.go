package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
)

// FlashCookieName は次のリクエストに引き継ぐメッセージを保持するCookieの名前。
const FlashCookieName = "messages"

// フラッシュメッセージのレベル
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// FlashMessage はリダイレクト先で一度だけ表示するメッセージ。
type FlashMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// CookieConfig はミドルウェアが発行するCookieの共通属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

var flashContextKey = contextKey("flash")

// flashStore はリクエスト中のフラッシュメッセージを保持する。
type flashStore struct {
	messages []FlashMessage
	dirty    bool
}

// flashWriter はレスポンスヘッダー送信前にフラッシュCookieを書き込む。
type flashWriter struct {
	http.ResponseWriter
	store       *flashStore
	config      CookieConfig
	wroteHeader bool
}

func (fw *flashWriter) WriteHeader(code int) {
	fw.writeCookie()
	fw.ResponseWriter.WriteHeader(code)
}

func (fw *flashWriter) Write(b []byte) (int, error) {
	fw.writeCookie()
	return fw.ResponseWriter.Write(b)
}

func (fw *flashWriter) writeCookie() {
	if fw.wroteHeader {
		return
	}
	fw.wroteHeader = true
	if !fw.store.dirty {
		return
	}

	cookie := &http.Cookie{
		Name:     FlashCookieName,
		Path:     "/",
		Domain:   fw.config.Domain,
		HttpOnly: true,
		Secure:   fw.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if len(fw.store.messages) == 0 {
		cookie.MaxAge = -1
	} else {
		data, err := json.Marshal(fw.store.messages)
		if err != nil {
			slog.Error("failed to encode flash messages", slog.String("error", err.Error()))
			return
		}
		cookie.Value = base64.RawURLEncoding.EncodeToString(data)
	}
	http.SetCookie(fw.ResponseWriter, cookie)
}

// NewFlashMiddleware はフラッシュメッセージのCookieを読み込み、
// ハンドラーが追加・取り出ししたメッセージをレスポンスのCookieに反映するミドルウェアを返す。
func NewFlashMiddleware(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store := &flashStore{}
			if cookie, err := r.Cookie(FlashCookieName); err == nil && cookie.Value != "" {
				messages, err := decodeFlashes(cookie.Value)
				if err != nil {
					// 壊れたCookieは破棄する
					store.dirty = true
				} else {
					store.messages = messages
				}
			}

			fw := &flashWriter{ResponseWriter: w, store: store, config: config}
			ctx := context.WithValue(r.Context(), flashContextKey, store)
			next.ServeHTTP(fw, r.WithContext(ctx))

			// ハンドラーが何も書き込まなかった場合
			fw.writeCookie()
		})
	}
}

// AddFlash は次のレスポンスで表示するメッセージを追加する。
// フラッシュミドルウェアを通過していないコンテキストでは何もしない。
func AddFlash(ctx context.Context, level, message string) {
	store, ok := ctx.Value(flashContextKey).(*flashStore)
	if !ok {
		return
	}
	store.messages = append(store.messages, FlashMessage{Level: level, Message: message})
	store.dirty = true
}

// PopFlashes は保留中のメッセージを取り出し、Cookieから削除する。
func PopFlashes(ctx context.Context) []FlashMessage {
	store, ok := ctx.Value(flashContextKey).(*flashStore)
	if !ok || len(store.messages) == 0 {
		return []FlashMessage{}
	}
	messages := store.messages
	store.messages = nil
	store.dirty = true
	return messages
}

func decodeFlashes(value string) ([]FlashMessage, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var messages []FlashMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
