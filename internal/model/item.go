package model

import "time"

// List はToDoリストを表す。
// 所有者は作成時にのみ設定でき、以後変更されない。
type List struct {
	ID         string
	OwnerEmail *string
	CreatedAt  time.Time
}

// HasOwner はリストに所有者が設定されているかを返す。
func (l *List) HasOwner() bool {
	return l.OwnerEmail != nil && *l.OwnerEmail != ""
}

// Item はリストに属するToDo項目を表す。
// IDは作成順に増加し、リスト内の並び順のキーとなる。
type Item struct {
	ID        int64
	ListID    string
	Text      string
	CreatedAt time.Time
}

// ListView はリストと作成順の項目一覧を結合したモデル。
type ListView struct {
	List
	Items []Item
}

// Name はリストの表示名（最初の項目のテキスト）を返す。
// 項目が無い場合はfalseを返す。
func (v *ListView) Name() (string, bool) {
	if len(v.Items) == 0 {
		return "", false
	}
	return v.Items[0].Text, true
}

// ListSummary は所有リスト一覧で使用するリストと表示名の組。
// NameはリストにItemが無い場合nil。
type ListSummary struct {
	List
	Name *string
}
