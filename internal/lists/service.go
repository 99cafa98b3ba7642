// Package lists はリストの所有と項目バリデーションのドメインロジックを提供する。
package lists

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// Service はリストと項目のサービス層。
// 空テキストと同一リスト内の重複テキストを拒否する。
// 項目のテキストは前後の空白を除いてそのまま保存する。
type Service struct {
	listRepo repository.ListRepository
	itemRepo repository.ItemRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(
	listRepo repository.ListRepository,
	itemRepo repository.ItemRepository,
	m metrics.MetricsCollector,
) *Service {
	return &Service{
		listRepo: listRepo,
		itemRepo: itemRepo,
		metrics:  m,
	}
}

// CreateList は最初の項目を持つリストを作成する。ownerがnilの場合は所有者なし。
// テキストが空の場合はリストも項目も作成しない。
func (s *Service) CreateList(ctx context.Context, text string, owner *model.User) (*model.List, error) {
	text = normalizeText(text)
	if text == "" {
		return nil, s.rejected(ctx, model.NewEmptyItemError(), "")
	}

	list := &model.List{ID: uuid.New().String()}
	if owner != nil && owner.Email != "" {
		email := owner.Email
		list.OwnerEmail = &email
	}
	item := &model.Item{Text: text}

	if err := s.listRepo.CreateWithFirstItem(ctx, list, item); err != nil {
		return nil, fmt.Errorf("リストの作成に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordListCreated(list.HasOwner())
		s.metrics.RecordItemAdded()
	}
	slog.InfoContext(ctx, "list created",
		slog.String("list_id", list.ID),
		slog.Bool("owned", list.HasOwner()),
	)
	return list, nil
}

// AddItem は既存リストに項目を追加する。
// 事前チェックで重複を検出し、同時追加で一意制約に違反した場合も重複エラーに変換する。
func (s *Service) AddItem(ctx context.Context, listID, text string) (*model.Item, error) {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return nil, err
	}

	text = normalizeText(text)
	if text == "" {
		return nil, s.rejected(ctx, model.NewEmptyItemError(), list.ID)
	}

	exists, err := s.itemRepo.ExistsByListAndText(ctx, list.ID, text)
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		return nil, s.rejected(ctx, model.NewDuplicateItemError(), list.ID)
	}

	item := &model.Item{ListID: list.ID, Text: text}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicateItem) {
			return nil, s.rejected(ctx, model.NewDuplicateItemError(), list.ID)
		}
		return nil, fmt.Errorf("項目の追加に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordItemAdded()
	}
	slog.InfoContext(ctx, "item added",
		slog.String("list_id", list.ID),
		slog.Int64("item_id", item.ID),
	)
	return item, nil
}

// GetList はリストと作成順の項目一覧を返す。
func (s *Service) GetList(ctx context.Context, listID string) (*model.ListView, error) {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return nil, err
	}

	items, err := s.itemRepo.ListByList(ctx, list.ID)
	if err != nil {
		return nil, fmt.Errorf("項目一覧の取得に失敗しました: %w", err)
	}

	return &model.ListView{List: *list, Items: items}, nil
}

// ListName はリストの表示名（最初の項目のテキスト）を返す。
// 項目が無い場合はfalseを返す。
func (s *Service) ListName(ctx context.Context, listID string) (string, bool, error) {
	list, err := s.findList(ctx, listID)
	if err != nil {
		return "", false, err
	}

	name, ok, err := s.itemRepo.FirstText(ctx, list.ID)
	if err != nil {
		return "", false, fmt.Errorf("リスト名の取得に失敗しました: %w", err)
	}
	return name, ok, nil
}

// ListsOwnedBy はuserが所有するリストを表示名付きで返す。
// userがnilの場合は空の一覧を返す。
func (s *Service) ListsOwnedBy(ctx context.Context, user *model.User) ([]model.ListSummary, error) {
	if user == nil || user.Email == "" {
		return []model.ListSummary{}, nil
	}

	summaries, err := s.listRepo.ListByOwner(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("所有リスト一覧の取得に失敗しました: %w", err)
	}
	return summaries, nil
}

// normalizeText は前後の空白を取り除く。それ以外の変換は行わない。
func normalizeText(text string) string {
	return strings.TrimSpace(text)
}

// findList はリストを取得する。IDの形式が不正な場合も見つからないものとして扱う。
func (s *Service) findList(ctx context.Context, listID string) (*model.List, error) {
	if _, err := uuid.Parse(listID); err != nil {
		return nil, model.NewListNotFoundError(listID)
	}

	list, err := s.listRepo.FindByID(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("リストの取得に失敗しました: %w", err)
	}
	if list == nil {
		return nil, model.NewListNotFoundError(listID)
	}
	return list, nil
}

// rejected はバリデーションエラーを記録して返す。
func (s *Service) rejected(ctx context.Context, apiErr *model.APIError, listID string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(apiErr.Code)
	}
	slog.DebugContext(ctx, "item rejected",
		slog.String("code", apiErr.Code),
		slog.String("list_id", listID),
	)
	return apiErr
}
