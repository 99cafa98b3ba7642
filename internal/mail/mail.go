// Package mail はログインリンクメールの送信手段を提供する。
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Sender はメール送信のインターフェース。
type Sender interface {
	Send(ctx context.Context, subject, body, from string, to []string) error
}

// SMTPConfig はSMTPSenderの接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender はSMTPサーバー経由でメールを送信する。
type SMTPSender struct {
	addr string
	auth smtp.Auth

	// sendMail はテスト時に差し替える
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender はSMTPSenderを生成する。
// Usernameが空の場合は認証なしで送信する。
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

// Send はメールを1通送信する。リトライは行わない。
func (s *SMTPSender) Send(ctx context.Context, subject, body, from string, to []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := buildMessage(subject, body, from, to, time.Now())
	if err := s.sendMail(s.addr, s.auth, from, to, msg); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", s.addr, err)
	}
	return nil
}

// buildMessage はRFC 5322形式のプレーンテキストメッセージを組み立てる。
func buildMessage(subject, body, from string, to []string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender はメールを送信せず構造化ログに出力する。開発環境用。
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender はLogSenderを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send はメール内容をINFOレベルでログ出力する。
func (s *LogSender) Send(ctx context.Context, subject, body, from string, to []string) error {
	s.logger.InfoContext(ctx, "mail sent to log",
		slog.String("subject", subject),
		slog.String("from", from),
		slog.String("to", strings.Join(to, ",")),
		slog.String("body", body),
	)
	return nil
}

// compile-time interface checks
var (
	_ Sender = (*SMTPSender)(nil)
	_ Sender = (*LogSender)(nil)
)
