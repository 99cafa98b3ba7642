package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           middleware.HTTPMetricsRecorder
	MetricsGatherer   prometheus.Gatherer
	HealthChecker     HealthChecker
	UserResolver      middleware.UserResolver
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Cookie            middleware.CookieConfig

	// 認証
	Issuer        TokenIssuer
	Authenticator TokenAuthenticator
	Sessions      SessionManager
	AuthConfig    AuthHandlerConfig

	// リスト
	Users UserLookup
	Lists ListService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → RealIP → CurrentUser → Logging → Flash → RateLimit(General) → CSRF
//
// /health と /metrics はチェーンの外に配置する。
// 旧URL（/accounts/*, /lists/new など）は同じハンドラーへのエイリアスとして残す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := NewAuthHandler(deps.Issuer, deps.Authenticator, deps.Sessions, deps.AuthConfig)
	listHandler := NewListHandler(deps.Lists, deps.Users)

	r.Group(func(r chi.Router) {
		r.Use(chimw.RealIP)
		r.Use(middleware.NewCurrentUserMiddleware(deps.UserResolver))
		r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
		r.Use(middleware.NewFlashMiddleware(deps.Cookie))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}
		r.Use(middleware.NewCSRFMiddleware(deps.Cookie))

		r.Get("/", authHandler.Home)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.Cookie))

		// ログインリンクの送信（送信専用レート制限を追加）
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.LoginRequestMiddleware())
			}
			r.Post("/login-request", authHandler.SendLoginEmail)
			r.Post("/accounts/send_login_email", authHandler.SendLoginEmail)
		})

		r.Get("/login", authHandler.Login)
		r.Get("/accounts/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Post("/accounts/logout", authHandler.Logout)

		// リスト
		r.Route("/lists", func(r chi.Router) {
			r.Post("/", listHandler.NewList)
			r.Post("/new", listHandler.NewList)

			r.Get("/mine/{email}", listHandler.MyLists)
			r.Get("/users/{email}", listHandler.MyLists)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listHandler.ViewList)
				r.Post("/items", listHandler.AddItem)
				r.Post("/add_item", listHandler.AddItem)
			})
		})
	})

	return r
}
