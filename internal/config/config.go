package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// メール送信バックエンド
const (
	MailBackendLog  = "log"
	MailBackendSMTP = "smtp"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// Session
	SessionMaxAge        int `env:"SESSION_MAX_AGE" envDefault:"1209600"`
	SessionRetentionDays int `env:"SESSION_RETENTION_DAYS" envDefault:"7"`

	// Login token
	TokenMaxAge    time.Duration `env:"TOKEN_MAX_AGE" envDefault:"0s"`
	TokenSingleUse bool          `env:"TOKEN_SINGLE_USE" envDefault:"false"`

	// Mail
	Mail Mail

	// Rate Limit（リクエスト数/分）
	RateLimitGeneral      int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLoginRequest int `env:"RATE_LIMIT_LOGIN_REQUEST" envDefault:"5"`

	// Operator
	OperatorSessionsEnabled bool `env:"OPERATOR_SESSIONS_ENABLED" envDefault:"false"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Mail はログインリンクの送信設定を保持する。
type Mail struct {
	Backend      string `env:"MAIL_BACKEND" envDefault:"log"`
	From         string `env:"MAIL_FROM" envDefault:"noreply@superlists"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、または値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mail.Backend {
	case MailBackendLog:
	case MailBackendSMTP:
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_BACKEND=%s", MailBackendSMTP)
		}
	default:
		return fmt.Errorf("unsupported MAIL_BACKEND: %q", c.Mail.Backend)
	}

	if c.TokenMaxAge < 0 {
		return fmt.Errorf("TOKEN_MAX_AGE must not be negative: %s", c.TokenMaxAge)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive: %d", c.SessionMaxAge)
	}
	return nil
}
