package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/superlists/internal/model"
)

// PostgresTokenRepo はPostgreSQLを使用したログイントークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンを保存し、採番されたIDと作成日時をtokenに設定する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.Token) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tokens (email, uid) VALUES ($1, $2)
		 RETURNING id, created_at`,
		token.Email, token.UID,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

// FindByUID はuidでトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByUID(ctx context.Context, uid string) (*model.Token, error) {
	token := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, uid, created_at, consumed_at
		 FROM tokens
		 WHERE uid = $1`,
		uid,
	).Scan(&token.ID, &token.Email, &token.UID, &token.CreatedAt, &token.ConsumedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return token, nil
}

// Consume は未使用のトークンを使用済みにする。
// 条件付きUPDATEで判定するため、同じトークンの同時使用でも成功するのは1回だけ。
func (r *PostgresTokenRepo) Consume(ctx context.Context, uid string) (*model.Token, error) {
	token := &model.Token{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tokens SET consumed_at = now()
		 WHERE uid = $1 AND consumed_at IS NULL
		 RETURNING id, email, uid, created_at, consumed_at`,
		uid,
	).Scan(&token.ID, &token.Email, &token.UID, &token.CreatedAt, &token.ConsumedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}

	return token, nil
}

// DeleteConsumed は使用済みトークンを削除し、削除件数を返す。
func (r *PostgresTokenRepo) DeleteConsumed(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE consumed_at IS NOT NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete consumed tokens: %w", err)
	}
	return result.RowsAffected()
}

// DeleteCreatedBefore は指定日時より前に作成されたトークンを削除し、削除件数を返す。
func (r *PostgresTokenRepo) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE created_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
