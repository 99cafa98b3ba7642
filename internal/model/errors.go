// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, list, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmptyItem     = "EMPTY_ITEM"
	ErrCodeDuplicateItem = "DUPLICATE_ITEM"
	ErrCodeListNotFound  = "LIST_NOT_FOUND"
	ErrCodeInvalidEmail  = "INVALID_EMAIL"
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
)

// 画面にそのまま表示するバリデーションメッセージ。
const (
	EmptyItemMessage     = "You can't have an empty list item"
	DuplicateItemMessage = "You've already got this in your list"
)

// NewEmptyItemError は空の項目テキストが送信された場合のエラーを生成する。
func NewEmptyItemError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyItem,
		Message:  EmptyItemMessage,
		Category: "validation",
		Action:   "Enter some text for the item.",
	}
}

// NewDuplicateItemError は同じリストに同一テキストの項目が既にある場合のエラーを生成する。
func NewDuplicateItemError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateItem,
		Message:  DuplicateItemMessage,
		Category: "validation",
		Action:   "Enter a different item.",
	}
}

// NewListNotFoundError はリストが見つからない場合のエラーを生成する。
func NewListNotFoundError(listID string) *APIError {
	return &APIError{
		Code:     ErrCodeListNotFound,
		Message:  fmt.Sprintf("list not found: %s", listID),
		Category: "list",
		Action:   "Check the list URL.",
	}
}

// NewUserNotFoundError はメールアドレスに対応するユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("user not found: %s", email),
		Category: "auth",
		Action:   "Check the email address in the URL.",
	}
}

// NewInvalidEmailError はメールアドレスが空の場合のエラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "An email address is required.",
		Category: "validation",
		Action:   "Enter the email address to send the login link to.",
	}
}

// HasCode はerrがAPIErrorであり、指定コードを持つかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsValidationError はerrがバリデーションカテゴリのAPIErrorかを判定する。
func IsValidationError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == "validation"
	}
	return false
}
