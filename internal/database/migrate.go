// Package database はPostgreSQL接続とスキーマのマイグレーションを提供する。
//
// 埋め込みマイグレーションが作成するテーブル:
//   - users: メールアドレスを主キーとするユーザー
//   - tokens: ログインリンクのトークン（uidは一意、consumed_atは使い捨てモード用）
//   - lists, items: リストと項目。(list_id, text) の一意制約で重複項目を防ぐ
//   - sessions: ログインセッション（dataはJSONB）
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator は埋め込みマイグレーションを読み込んだmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// RunMigrations は未適用のマイグレーションをすべて適用する。
// すでに最新の場合はエラーなしで返る。
// 前回の適用が途中で失敗してdirtyになっている場合は、そのバージョンを含むエラーを返す。
func RunMigrations(databaseURL string) error {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	err = m.Up()
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return fmt.Errorf("schema is dirty at version %d, fix it manually and force the version: %w", dirty.Version, err)
	}
	return fmt.Errorf("failed to run migrations: %w", err)
}
