package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/superlists/internal/auth"
	"github.com/hitoshi/superlists/internal/config"
	"github.com/hitoshi/superlists/internal/database"
	"github.com/hitoshi/superlists/internal/handler"
	"github.com/hitoshi/superlists/internal/lists"
	"github.com/hitoshi/superlists/internal/logger"
	"github.com/hitoshi/superlists/internal/mail"
	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/repository"
	"github.com/hitoshi/superlists/internal/worker/cleanup"
)

// stdout はcreate-sessionがセッションキーを出力する先。
var stdout io.Writer = os.Stdout

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既に設定済みの環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateSession:
		return runCreateSession(cfg, commandArgs(args))
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newMailSender はMAIL_BACKENDに応じたメール送信手段を返す。
func newMailSender(cfg *config.Config) mail.Sender {
	if cfg.Mail.Backend == config.MailBackendSMTP {
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
		})
	}
	return mail.NewLogSender(slog.Default())
}

// authComponents は認証まわりのサービス群。
type authComponents struct {
	users         repository.UserRepository
	issuer        *auth.Issuer
	authenticator *auth.Authenticator
	sessions      *auth.SessionBinder
}

// newAuthComponents は認証サービス群を構築する。mはnilでもよい。
func newAuthComponents(db *sql.DB, cfg *config.Config, m metrics.MetricsCollector) *authComponents {
	userRepo := repository.NewPostgresUserRepo(db)
	tokenRepo := repository.NewPostgresTokenRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	authenticator := auth.NewAuthenticator(userRepo, tokenRepo, m, auth.AuthenticatorConfig{
		TokenMaxAge:    cfg.TokenMaxAge,
		TokenSingleUse: cfg.TokenSingleUse,
	})

	return &authComponents{
		users: userRepo,
		issuer: auth.NewIssuer(tokenRepo, newMailSender(cfg), m, auth.IssuerConfig{
			BaseURL:  cfg.BaseURL,
			MailFrom: cfg.Mail.From,
		}),
		authenticator: authenticator,
		sessions: auth.NewSessionBinder(sessionRepo, authenticator, m, auth.SessionConfig{
			SessionMaxAge: cfg.SessionMaxAge,
		}),
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. ドメインサービスの初期化
	authSvc := newAuthComponents(db, cfg, collector)
	listService := lists.NewService(
		repository.NewPostgresListRepo(db),
		repository.NewPostgresItemRepo(db),
		collector,
	)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLoginRequest),
	)
	defer rateLimiter.Stop()

	cookie := middleware.CookieConfig{
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsGatherer:   registry,
		HealthChecker:     db,
		UserResolver:      authSvc.sessions,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Cookie:            cookie,

		Issuer:        authSvc.issuer,
		Authenticator: authSvc.authenticator,
		Sessions:      authSvc.sessions,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Users: authSvc.authenticator,
		Lists: listService,
	})

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCreateSession はemailのユーザーのログイン済みセッションを発行し、
// セッションキーを標準出力に書き出す。
// OPERATOR_SESSIONS_ENABLEDが無効な場合はDBに接続せずにエラーを返す。
func runCreateSession(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: superlists create-session <email>")
	}
	if !cfg.OperatorSessionsEnabled {
		return auth.ErrOperatorSessionsDisabled
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authSvc := newAuthComponents(db, cfg, nil)
	operator, err := auth.NewOperatorSessions(authSvc.sessions, authSvc.users, cfg.OperatorSessionsEnabled)
	if err != nil {
		return err
	}

	sessionKey, err := operator.CreatePreAuthenticatedSession(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	fmt.Fprintln(stdout, sessionKey)
	return nil
}

// runCleanup は期限切れのセッションと不要なトークンを削除する。
func runCleanup(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresTokenRepo(db),
		slog.Default(),
		cleanup.Config{
			SessionRetentionDays: cfg.SessionRetentionDays,
			TokenSingleUse:       cfg.TokenSingleUse,
			TokenMaxAge:          cfg.TokenMaxAge,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
