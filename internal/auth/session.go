package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// BackendPasswordless はマジックリンクで確立したセッションの認証方式名。
const BackendPasswordless = "passwordless"

// UserLookup はセッションに保存されたメールアドレスからユーザーを引く。
// *Authenticatorが実装する。
type UserLookup interface {
	LookupUser(ctx context.Context, email string) (*model.User, error)
}

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// SessionBinder はユーザーとサーバーサイドセッションを結び付ける。
type SessionBinder struct {
	sessions repository.SessionRepository
	users    UserLookup
	metrics  metrics.MetricsCollector
	config   SessionConfig
}

// NewSessionBinder はSessionBinderを生成する。metricsはnilでもよい。
func NewSessionBinder(sessions repository.SessionRepository, users UserLookup, m metrics.MetricsCollector, config SessionConfig) *SessionBinder {
	return &SessionBinder{
		sessions: sessions,
		users:    users,
		metrics:  m,
		config:   config,
	}
}

// StartSession はuserのセッションを作成し永続化する。
func (b *SessionBinder) StartSession(ctx context.Context, user *model.User) (*model.Session, error) {
	if user == nil || user.Email == "" {
		return nil, errors.New("user is required to start a session")
	}

	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserEmail: user.Email,
		Backend:   BackendPasswordless,
		ExpiresAt: now.Add(time.Duration(b.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := b.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if b.metrics != nil {
		b.metrics.RecordSessionStarted()
	}
	slog.InfoContext(ctx, "session started", slog.String("user_email", user.Email))
	return session, nil
}

// Resolve はセッションIDから現在のユーザーを取得する。
// セッションが存在しない、期限切れ、またはユーザーが削除済みの場合はnil, nilを返す。
func (b *SessionBinder) Resolve(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := b.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	return b.users.LookupUser(ctx, session.UserEmail)
}

// EndSession はセッションを破棄する。
func (b *SessionBinder) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := b.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.InfoContext(ctx, "user logged out")
	return nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
