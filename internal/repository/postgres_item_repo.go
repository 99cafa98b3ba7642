package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/superlists/internal/model"
)

const (
	pgUniqueViolation = "23505"

	itemsListTextConstraint = "items_list_id_text_key"
)

// PostgresItemRepo はPostgreSQLを使用したリスト項目リポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// ListByList はリストの項目を作成順（id昇順）に返す。
func (r *PostgresItemRepo) ListByList(ctx context.Context, listID string) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, list_id, text, created_at
		 FROM items
		 WHERE list_id = $1
		 ORDER BY id`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.ListID, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// FirstText はリストの最初の項目のテキストを返す。項目が無い場合はfalseを返す。
func (r *PostgresItemRepo) FirstText(ctx context.Context, listID string) (string, bool, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		`SELECT text FROM items WHERE list_id = $1 ORDER BY id LIMIT 1`,
		listID,
	).Scan(&text)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find first item: %w", err)
	}

	return text, true, nil
}

// ExistsByListAndText はリストに同一テキストの項目が存在するかを返す。
func (r *PostgresItemRepo) ExistsByListAndText(ctx context.Context, listID, text string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM items WHERE list_id = $1 AND text = $2)`,
		listID, text,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate item: %w", err)
	}
	return exists, nil
}

// Create は項目を作成し、採番されたIDと作成日時をitemに設定する。
// (list_id, text) の一意制約に違反した場合はErrDuplicateItemを返す。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO items (list_id, text) VALUES ($1, $2)
		 RETURNING id, created_at`,
		item.ListID, item.Text,
	).Scan(&item.ID, &item.CreatedAt)
	if isUniqueViolation(err, itemsListTextConstraint) {
		return ErrDuplicateItem
	}
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

// isUniqueViolation はerrが指定制約の一意制約違反かを判定する。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pgUniqueViolation && pqErr.Constraint == constraint
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
