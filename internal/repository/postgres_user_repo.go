package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/superlists/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// GetOrCreate はユーザーを取得し、存在しなければ作成する。
// ON CONFLICTで既存行を返すため、同じメールアドレスの同時作成でも1行に収束する。
func (r *PostgresUserRepo) GetOrCreate(ctx context.Context, email string) (*model.User, bool, error) {
	user := &model.User{}
	var created bool
	// xmax = 0 は今回のINSERTで作られた行であることを示す
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email) VALUES ($1)
		 ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		 RETURNING email, created_at, (xmax = 0) AS inserted`,
		email,
	).Scan(&user.Email, &user.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create user: %w", err)
	}

	return user, created, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
