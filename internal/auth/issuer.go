// Package auth はマジックリンク方式のパスワードレス認証とセッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/superlists/internal/mail"
	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// ログインリンクメールの件名と本文の書き出し。
const (
	LoginMailSubject    = "Your login link for Superlists"
	loginMailBodyPrefix = "Use this link to log in: \n\n"
)

// IssuerConfig はトークン発行の設定。
type IssuerConfig struct {
	BaseURL  string // ログインURLの組み立てに使う公開URL（末尾スラッシュなし）
	MailFrom string
}

// Issuer はログイントークンを発行し、ログインリンクをメール送信する。
type Issuer struct {
	tokens  repository.TokenRepository
	sender  mail.Sender
	metrics metrics.MetricsCollector
	config  IssuerConfig
	newUID  func() string
}

// NewIssuer はIssuerを生成する。metricsはnilでもよい。
func NewIssuer(tokens repository.TokenRepository, sender mail.Sender, m metrics.MetricsCollector, config IssuerConfig) *Issuer {
	return &Issuer{
		tokens:  tokens,
		sender:  sender,
		metrics: m,
		config:  config,
		newUID:  func() string { return uuid.New().String() },
	}
}

// IssueLoginToken はemail宛のトークンを永続化し、ログインリンクを送信する。
// メールアドレスの形式は検証しない。空の場合のみINVALID_EMAILを返す。
// 送信に失敗した場合はエラーを返す。保存済みのトークンは削除しない。
func (i *Issuer) IssueLoginToken(ctx context.Context, email string) (*model.Token, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, model.NewInvalidEmailError()
	}

	token := &model.Token{
		Email: email,
		UID:   i.newUID(),
	}
	if err := i.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save login token: %w", err)
	}

	body := loginMailBodyPrefix + i.LoginURL(token.UID)
	if err := i.sender.Send(ctx, LoginMailSubject, body, i.config.MailFrom, []string{email}); err != nil {
		if i.metrics != nil {
			i.metrics.RecordLoginMailFailure()
		}
		return nil, fmt.Errorf("failed to send login email: %w", err)
	}

	if i.metrics != nil {
		i.metrics.RecordLoginTokenIssued()
	}
	slog.InfoContext(ctx, "login token issued",
		slog.String("email", email),
		slog.Int64("token_id", token.ID),
	)
	return token, nil
}

// LoginURL はuidを埋め込んだ絶対URL <BASE_URL>/login?token=<uid> を返す。
func (i *Issuer) LoginURL(uid string) string {
	return i.config.BaseURL + "/login?" + url.Values{"token": {uid}}.Encode()
}
