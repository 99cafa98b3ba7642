// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// メールアドレスが唯一の識別子であり、サロゲートIDは持たない。
type User struct {
	Email     string
	CreatedAt time.Time
}

// Equal はメールアドレスが一致する場合に同一ユーザーとみなす。
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Email == other.Email
}

// Token はログインリンクに埋め込まれる一回用の認証トークンを表す。
// 1つのメールアドレスに対して複数のトークンが存在しうる。
type Token struct {
	ID         int64
	Email      string
	UID        string
	CreatedAt  time.Time
	ConsumedAt *time.Time // 使い捨てモード有効時のみ設定される
}

// Session はユーザーのログインセッションを表す。
// Backendはセッションを確立した認証方式を示す。
type Session struct {
	ID        string
	UserEmail string
	Backend   string
	ExpiresAt time.Time
	CreatedAt time.Time
}
