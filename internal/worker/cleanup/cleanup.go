// Package cleanup は期限切れデータの削除ジョブを提供する。
// 保持期間を超過したセッションと、不要になったログイントークンを削除する。
// 外部スケジューラから cleanup サブコマンドとして実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションを削除する。repository.SessionRepositoryが実装する。
type SessionPurger interface {
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// TokenPurger は不要なログイントークンを削除する。repository.TokenRepositoryが実装する。
type TokenPurger interface {
	DeleteConsumed(ctx context.Context) (int64, error)
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Config はクリーンアップジョブの設定。
type Config struct {
	SessionRetentionDays int           // 期限切れ後にセッションを残す日数
	TokenSingleUse       bool          // 使用済みトークンを削除する
	TokenMaxAge          time.Duration // 0より大きい場合、これより古いトークンを削除する
}

// Result は1回の実行で削除した件数。
type Result struct {
	Sessions       int64
	ConsumedTokens int64
	ExpiredTokens  int64
}

// CleanupJob は期限切れデータの削除ジョブ。
// 削除対象がなくてもエラーにならないため、何度実行してもよい。
type CleanupJob struct {
	sessions SessionPurger
	tokens   TokenPurger
	logger   *slog.Logger
	config   Config
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionPurger, tokens TokenPurger, logger *slog.Logger, config Config) *CleanupJob {
	if config.SessionRetentionDays < 0 {
		config.SessionRetentionDays = 0
	}
	return &CleanupJob{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		config:   config,
		now:      time.Now,
	}
}

// Run は期限切れのセッションと不要なトークンを削除する。
// トークンは使い捨てモードまたは有効期間が設定されている場合のみ削除する。
// 認証に使われたトークンは再利用が許される限り残す。
func (j *CleanupJob) Run(ctx context.Context) (*Result, error) {
	start := j.now()
	result := &Result{}

	sessionCutoff := start.AddDate(0, 0, -j.config.SessionRetentionDays)
	deleted, err := j.sessions.DeleteExpiredBefore(ctx, sessionCutoff)
	if err != nil {
		j.logger.Error("セッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.config.SessionRetentionDays),
		)
		return nil, fmt.Errorf("セッションのクリーンアップに失敗: %w", err)
	}
	result.Sessions = deleted

	if j.config.TokenSingleUse {
		deleted, err := j.tokens.DeleteConsumed(ctx)
		if err != nil {
			j.logger.Error("使用済みトークンの削除に失敗しました", slog.String("error", err.Error()))
			return nil, fmt.Errorf("使用済みトークンの削除に失敗: %w", err)
		}
		result.ConsumedTokens = deleted
	}

	if j.config.TokenMaxAge > 0 {
		deleted, err := j.tokens.DeleteCreatedBefore(ctx, start.Add(-j.config.TokenMaxAge))
		if err != nil {
			j.logger.Error("期限切れトークンの削除に失敗しました", slog.String("error", err.Error()))
			return nil, fmt.Errorf("期限切れトークンの削除に失敗: %w", err)
		}
		result.ExpiredTokens = deleted
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", result.Sessions),
		slog.Int64("deleted_consumed_tokens", result.ConsumedTokens),
		slog.Int64("deleted_expired_tokens", result.ExpiredTokens),
		slog.Int("retention_days", j.config.SessionRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}
