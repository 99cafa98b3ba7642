package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// ErrOperatorSessionsDisabled はOPERATOR_SESSIONS_ENABLEDが無効な状態で
// OperatorSessionsを生成しようとした場合に返る。
var ErrOperatorSessionsDisabled = errors.New("operator sessions are disabled (set OPERATOR_SESSIONS_ENABLED=true)")

// OperatorSessions はトークンを介さずにログイン済みセッションを発行する。
// 自動テストの準備用で、HTTPルーターからは参照しない。
type OperatorSessions struct {
	binder *SessionBinder
	users  repository.UserRepository
}

// NewOperatorSessions はOperatorSessionsを生成する。
// enabledがfalseの場合はErrOperatorSessionsDisabledを返す。
func NewOperatorSessions(binder *SessionBinder, users repository.UserRepository, enabled bool) (*OperatorSessions, error) {
	if !enabled {
		return nil, ErrOperatorSessionsDisabled
	}
	return &OperatorSessions{binder: binder, users: users}, nil
}

// CreatePreAuthenticatedSession はemailのユーザーを必要なら作成し、
// そのユーザーのセッションキーを返す。
func (o *OperatorSessions) CreatePreAuthenticatedSession(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", model.NewInvalidEmailError()
	}

	user, _, err := o.users.GetOrCreate(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to provision user: %w", err)
	}

	session, err := o.binder.StartSession(ctx, user)
	if err != nil {
		return "", err
	}

	slog.WarnContext(ctx, "pre-authenticated session created by operator", slog.String("user_email", user.Email))
	return session.ID, nil
}
