// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/superlists/internal/model"
)

// ErrDuplicateItem は同一リストに同じテキストの項目を挿入しようとした場合に返る。
// items_list_id_text_key 制約違反を変換したもの。
var ErrDuplicateItem = errors.New("duplicate item in list")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// GetOrCreate はユーザーを取得し、存在しなければ作成する。
	// 単一のUPSERT文で実行するため、同時実行でも重複行は生じない。
	// createdは今回の呼び出しで行が作成された場合にtrue。
	GetOrCreate(ctx context.Context, email string) (user *model.User, created bool, err error)
}

// TokenRepository はログイントークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンを保存し、採番されたIDと作成日時をtokenに設定する。
	Create(ctx context.Context, token *model.Token) error

	// FindByUID はuidでトークンを取得する。見つからない場合はnilを返す。
	FindByUID(ctx context.Context, uid string) (*model.Token, error)

	// Consume は未使用のトークンを使用済みにする。
	// 既に使用済み、または存在しない場合はnilを返す。
	Consume(ctx context.Context, uid string) (*model.Token, error)

	// DeleteConsumed は使用済みトークンを削除し、削除件数を返す。
	DeleteConsumed(ctx context.Context) (int64, error)

	// DeleteCreatedBefore は指定日時より前に作成されたトークンを削除し、削除件数を返す。
	DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpiredBefore は指定日時より前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// ListRepository はリストの永続化インターフェース。
type ListRepository interface {
	// CreateWithFirstItem はリストと最初の項目を同一トランザクションで作成する。
	// 所有者が指定されている場合、所有者のユーザー行も存在しなければ作成する。
	CreateWithFirstItem(ctx context.Context, list *model.List, item *model.Item) error

	// FindByID は指定IDのリストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.List, error)

	// ListByOwner は所有者のリスト一覧を表示名付きで作成順に返す。
	ListByOwner(ctx context.Context, ownerEmail string) ([]model.ListSummary, error)
}

// ItemRepository はリスト項目の永続化インターフェース。
type ItemRepository interface {
	// ListByList はリストの項目を作成順に返す。
	ListByList(ctx context.Context, listID string) ([]model.Item, error)

	// FirstText はリストの最初の項目のテキストを返す。項目が無い場合はfalseを返す。
	FirstText(ctx context.Context, listID string) (string, bool, error)

	// ExistsByListAndText はリストに同一テキストの項目が存在するかを返す。
	ExistsByListAndText(ctx context.Context, listID, text string) (bool, error)

	// Create は項目を作成する。一意制約違反の場合はErrDuplicateItemを返す。
	Create(ctx context.Context, item *model.Item) error
}
