package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/superlists/internal/middleware"
	"github.com/hitoshi/superlists/internal/model"
)

// ListService はリストハンドラーが必要とするサービスインターフェース。
// *lists.Serviceが実装する。
type ListService interface {
	CreateList(ctx context.Context, text string, owner *model.User) (*model.List, error)
	AddItem(ctx context.Context, listID, text string) (*model.Item, error)
	GetList(ctx context.Context, listID string) (*model.ListView, error)
	ListsOwnedBy(ctx context.Context, user *model.User) ([]model.ListSummary, error)
}

// UserLookup はメールアドレスからユーザーを引く。*auth.Authenticatorが実装する。
type UserLookup interface {
	LookupUser(ctx context.Context, email string) (*model.User, error)
}

// ListHandler はリストと項目のHTTPハンドラー。
type ListHandler struct {
	service ListService
	users   UserLookup
}

// NewListHandler はListHandlerを生成する。
func NewListHandler(service ListService, users UserLookup) *ListHandler {
	return &ListHandler{
		service: service,
		users:   users,
	}
}

// itemResponse はリスト項目のAPIレスポンス。
type itemResponse struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// listResponse はリストのAPIレスポンス。
type listResponse struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	OwnerEmail *string        `json:"owner"`
	Name       *string        `json:"name"`
	Items      []itemResponse `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
}

// listSummaryResponse は所有リスト一覧の要素。
type listSummaryResponse struct {
	ID   string  `json:"id"`
	URL  string  `json:"url"`
	Name *string `json:"name"`
}

// myListsResponse は所有リスト一覧のAPIレスポンス。
type myListsResponse struct {
	Owner string                `json:"owner"`
	Lists []listSummaryResponse `json:"lists"`
}

// itemErrorResponse はバリデーション失敗時のレスポンス。
// 送信されたテキストと、既存リストへの追加時は変更されていないリストを含む。
type itemErrorResponse struct {
	Error middleware.ErrorResponseBody `json:"error"`
	Text  string                       `json:"text"`
	List  *listResponse                `json:"list,omitempty"`
}

// NewList は最初の項目を持つリストを作成し、リストの画面にリダイレクトする。
// ログイン中であればそのユーザーを所有者とする。
// POST /lists
func (h *ListHandler) NewList(w http.ResponseWriter, r *http.Request) {
	text, err := readField(w, r, "text")
	if err != nil {
		middleware.WriteBadRequest(w, err.Error())
		return
	}

	list, err := h.service.CreateList(r.Context(), text, middleware.UserFromContext(r.Context()))
	if err != nil {
		if apiErr, ok := validationError(err); ok {
			writeJSON(w, http.StatusBadRequest, itemErrorResponse{
				Error: middleware.NewErrorResponseBody(apiErr),
				Text:  text,
			})
			return
		}
		handleServiceError(w, r, err)
		return
	}

	http.Redirect(w, r, listURL(list.ID), http.StatusSeeOther)
}

// ViewList はリストと作成順の項目一覧を返す。
// GET /lists/{id}
func (h *ListHandler) ViewList(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(view))
}

// AddItem は既存リストに項目を追加し、リストの画面にリダイレクトする。
// バリデーションに失敗した場合は送信テキストと変更前のリストを返す。
// POST /lists/{id}/items
func (h *ListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")

	text, err := readField(w, r, "text")
	if err != nil {
		middleware.WriteBadRequest(w, err.Error())
		return
	}

	if _, err := h.service.AddItem(r.Context(), listID, text); err != nil {
		apiErr, ok := validationError(err)
		if !ok {
			handleServiceError(w, r, err)
			return
		}

		view, viewErr := h.service.GetList(r.Context(), listID)
		if viewErr != nil {
			handleServiceError(w, r, viewErr)
			return
		}
		list := toListResponse(view)
		writeJSON(w, http.StatusBadRequest, itemErrorResponse{
			Error: middleware.NewErrorResponseBody(apiErr),
			Text:  text,
			List:  &list,
		})
		return
	}

	http.Redirect(w, r, listURL(listID), http.StatusSeeOther)
}

// MyLists は指定ユーザーが所有するリストの一覧を返す。
// GET /lists/mine/{email}
func (h *ListHandler) MyLists(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		middleware.WriteBadRequest(w, "invalid email in path")
		return
	}

	owner, err := h.users.LookupUser(r.Context(), email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if owner == nil {
		handleServiceError(w, r, model.NewUserNotFoundError(email))
		return
	}

	summaries, err := h.service.ListsOwnedBy(r.Context(), owner)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := myListsResponse{
		Owner: owner.Email,
		Lists: make([]listSummaryResponse, len(summaries)),
	}
	for i, s := range summaries {
		resp.Lists[i] = listSummaryResponse{
			ID:   s.ID,
			URL:  listURL(s.ID),
			Name: s.Name,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// validationError はerrが入力値のバリデーションエラーであればAPIErrorを返す。
func validationError(err error) (*model.APIError, bool) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || !model.IsValidationError(apiErr) {
		return nil, false
	}
	return apiErr, true
}

func listURL(id string) string {
	return "/lists/" + id
}

func toListResponse(view *model.ListView) listResponse {
	resp := listResponse{
		ID:         view.ID,
		URL:        listURL(view.ID),
		OwnerEmail: view.OwnerEmail,
		Items:      make([]itemResponse, len(view.Items)),
		CreatedAt:  view.CreatedAt,
	}
	if name, ok := view.Name(); ok {
		resp.Name = &name
	}
	for i, item := range view.Items {
		resp.Items[i] = itemResponse{
			ID:        item.ID,
			Text:      item.Text,
			CreatedAt: item.CreatedAt,
		}
	}
	return resp
}
