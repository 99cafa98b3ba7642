package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/superlists/internal/model"
)

// PostgresListRepo はPostgreSQLを使用したリストリポジトリ。
type PostgresListRepo struct {
	db *sql.DB
}

// NewPostgresListRepo はPostgresListRepoを生成する。
func NewPostgresListRepo(db *sql.DB) *PostgresListRepo {
	return &PostgresListRepo{db: db}
}

// CreateWithFirstItem はリストと最初の項目を同一トランザクションで作成する。
// 項目の挿入に失敗した場合はリストも作成されない。
func (r *PostgresListRepo) CreateWithFirstItem(ctx context.Context, list *model.List, item *model.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 所有者のユーザー行を保証
	if list.HasOwner() {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (email) VALUES ($1) ON CONFLICT (email) DO NOTHING`,
			*list.OwnerEmail,
		)
		if err != nil {
			return fmt.Errorf("failed to ensure list owner: %w", err)
		}
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO lists (id, owner_email) VALUES ($1, $2)
		 RETURNING created_at`,
		list.ID, list.OwnerEmail,
	).Scan(&list.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}

	item.ListID = list.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO items (list_id, text) VALUES ($1, $2)
		 RETURNING id, created_at`,
		item.ListID, item.Text,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert first item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
func (r *PostgresListRepo) FindByID(ctx context.Context, id string) (*model.List, error) {
	list := &model.List{}
	var ownerEmail sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_email, created_at FROM lists WHERE id = $1`,
		id,
	).Scan(&list.ID, &ownerEmail, &list.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find list: %w", err)
	}

	if ownerEmail.Valid {
		list.OwnerEmail = &ownerEmail.String
	}
	return list, nil
}

// ListByOwner は所有者のリスト一覧を作成順に返す。
// 表示名は各リストの最初の項目のテキストで、項目が無い場合はnil。
func (r *PostgresListRepo) ListByOwner(ctx context.Context, ownerEmail string) ([]model.ListSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.owner_email, l.created_at,
		        (SELECT i.text FROM items i WHERE i.list_id = l.id ORDER BY i.id LIMIT 1) AS name
		 FROM lists l
		 WHERE l.owner_email = $1
		 ORDER BY l.created_at, l.id`,
		ownerEmail,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists by owner: %w", err)
	}
	defer rows.Close()

	summaries := []model.ListSummary{}
	for rows.Next() {
		var s model.ListSummary
		var owner, name sql.NullString
		if err := rows.Scan(&s.ID, &owner, &s.CreatedAt, &name); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		if owner.Valid {
			s.OwnerEmail = &owner.String
		}
		if name.Valid {
			s.Name = &name.String
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lists: %w", err)
	}

	return summaries, nil
}

// compile-time interface check
var _ ListRepository = (*PostgresListRepo)(nil)
