package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// AuthenticatorConfig はトークン認証の設定。
// ゼロ値ではトークンは期限なしで何度でも使える。
type AuthenticatorConfig struct {
	TokenMaxAge    time.Duration // 0の場合は無期限
	TokenSingleUse bool
}

// Authenticator はログイントークンをユーザーに解決する。
type Authenticator struct {
	users   repository.UserRepository
	tokens  repository.TokenRepository
	metrics metrics.MetricsCollector
	config  AuthenticatorConfig
	now     func() time.Time
}

// NewAuthenticator はAuthenticatorを生成する。metricsはnilでもよい。
func NewAuthenticator(users repository.UserRepository, tokens repository.TokenRepository, m metrics.MetricsCollector, config AuthenticatorConfig) *Authenticator {
	return &Authenticator{
		users:   users,
		tokens:  tokens,
		metrics: m,
		config:  config,
		now:     time.Now,
	}
}

// Authenticate はuidに対応するユーザーを返す。
// 未知のuid（期限切れ・使用済みを含む）の場合はnil, nilを返す。
// トークンのメールアドレスに対応するユーザーが無ければ作成する。
func (a *Authenticator) Authenticate(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		a.record(metrics.AuthResultInvalid)
		return nil, nil
	}

	token, err := a.tokens.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if token == nil {
		a.record(metrics.AuthResultInvalid)
		return nil, nil
	}

	if a.config.TokenMaxAge > 0 && a.now().Sub(token.CreatedAt) > a.config.TokenMaxAge {
		a.record(metrics.AuthResultExpired)
		slog.InfoContext(ctx, "expired login token presented", slog.Int64("token_id", token.ID))
		return nil, nil
	}

	if a.config.TokenSingleUse {
		consumed, err := a.tokens.Consume(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("failed to consume token: %w", err)
		}
		if consumed == nil {
			a.record(metrics.AuthResultReused)
			slog.InfoContext(ctx, "used login token presented", slog.Int64("token_id", token.ID))
			return nil, nil
		}
	}

	user, err := a.users.FindByEmail(ctx, token.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		var created bool
		user, created, err = a.users.GetOrCreate(ctx, token.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		if created {
			slog.InfoContext(ctx, "new user created", slog.String("email", user.Email))
		}
	}

	a.record(metrics.AuthResultSuccess)
	return user, nil
}

// LookupUser はメールアドレスでユーザーを検索する。作成は行わない。
// 見つからない場合はnil, nilを返す。
func (a *Authenticator) LookupUser(ctx context.Context, email string) (*model.User, error) {
	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user: %w", err)
	}
	return user, nil
}

func (a *Authenticator) record(result string) {
	if a.metrics != nil {
		a.metrics.RecordAuthentication(result)
	}
}
