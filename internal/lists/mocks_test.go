package lists

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// --- インメモリストア ---

// memoryStore はリストと項目を保持するインメモリ実装。
// (list_id, text) の一意性をPostgreSQLの制約と同様に保証する。
type memoryStore struct {
	mu     sync.Mutex
	lists  map[string]*model.List
	items  []model.Item
	nextID int64
	seq    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{lists: map[string]*model.List{}}
}

type memoryLists struct{ *memoryStore }
type memoryItems struct{ *memoryStore }

func (s memoryLists) CreateWithFirstItem(_ context.Context, list *model.List, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	list.CreatedAt = time.Unix(int64(s.seq), 0)
	copied := *list
	s.lists[list.ID] = &copied

	item.ListID = list.ID
	s.insertLocked(item)
	return nil
}

func (s memoryLists) FindByID(_ context.Context, id string) (*model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (s memoryLists) ListByOwner(_ context.Context, ownerEmail string) ([]model.ListSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := []model.ListSummary{}
	for _, l := range s.lists {
		if l.OwnerEmail == nil || *l.OwnerEmail != ownerEmail {
			continue
		}
		summary := model.ListSummary{List: *l}
		if text, ok := s.firstTextLocked(l.ID); ok {
			summary.Name = &text
		}
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s memoryItems) ListByList(_ context.Context, listID string) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := []model.Item{}
	for _, item := range s.items {
		if item.ListID == listID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s memoryItems) FirstText(_ context.Context, listID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.firstTextLocked(listID)
	return text, ok, nil
}

func (s memoryItems) ExistsByListAndText(_ context.Context, listID, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existsLocked(listID, text), nil
}

func (s memoryItems) Create(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsLocked(item.ListID, item.Text) {
		return repository.ErrDuplicateItem
	}
	s.insertLocked(item)
	return nil
}

func (s *memoryStore) insertLocked(item *model.Item) {
	s.nextID++
	item.ID = s.nextID
	item.CreatedAt = time.Now()
	s.items = append(s.items, *item)
}

func (s *memoryStore) existsLocked(listID, text string) bool {
	for _, item := range s.items {
		if item.ListID == listID && item.Text == text {
			return true
		}
	}
	return false
}

func (s *memoryStore) firstTextLocked(listID string) (string, bool) {
	for _, item := range s.items {
		if item.ListID == listID {
			return item.Text, true
		}
	}
	return "", false
}

func (s *memoryStore) counts() (lists, items int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists), len(s.items)
}

func (s *memoryStore) itemCount(listID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if item.ListID == listID {
			n++
		}
	}
	return n
}

// --- モック定義 ---

type mockListRepo struct {
	createWithFirstItemFn func(ctx context.Context, list *model.List, item *model.Item) error
	findByIDFn            func(ctx context.Context, id string) (*model.List, error)
	listByOwnerFn         func(ctx context.Context, ownerEmail string) ([]model.ListSummary, error)
}

func (m *mockListRepo) CreateWithFirstItem(ctx context.Context, list *model.List, item *model.Item) error {
	if m.createWithFirstItemFn != nil {
		return m.createWithFirstItemFn(ctx, list, item)
	}
	return nil
}

func (m *mockListRepo) FindByID(ctx context.Context, id string) (*model.List, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.List{ID: id}, nil
}

func (m *mockListRepo) ListByOwner(ctx context.Context, ownerEmail string) ([]model.ListSummary, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, ownerEmail)
	}
	return []model.ListSummary{}, nil
}

type mockItemRepo struct {
	listByListFn          func(ctx context.Context, listID string) ([]model.Item, error)
	firstTextFn           func(ctx context.Context, listID string) (string, bool, error)
	existsByListAndTextFn func(ctx context.Context, listID, text string) (bool, error)
	createFn              func(ctx context.Context, item *model.Item) error
}

func (m *mockItemRepo) ListByList(ctx context.Context, listID string) ([]model.Item, error) {
	if m.listByListFn != nil {
		return m.listByListFn(ctx, listID)
	}
	return []model.Item{}, nil
}

func (m *mockItemRepo) FirstText(ctx context.Context, listID string) (string, bool, error) {
	if m.firstTextFn != nil {
		return m.firstTextFn(ctx, listID)
	}
	return "", false, nil
}

func (m *mockItemRepo) ExistsByListAndText(ctx context.Context, listID, text string) (bool, error) {
	if m.existsByListAndTextFn != nil {
		return m.existsByListAndTextFn(ctx, listID, text)
	}
	return false, nil
}

func (m *mockItemRepo) Create(ctx context.Context, item *model.Item) error {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	return nil
}

type mockMetrics struct {
	listsCreated   []bool
	itemsAdded     int
	validationFail []string
}

func (m *mockMetrics) RecordLoginTokenIssued()             {}
func (m *mockMetrics) RecordLoginMailFailure()             {}
func (m *mockMetrics) RecordAuthentication(string)         {}
func (m *mockMetrics) RecordSessionStarted()               {}
func (m *mockMetrics) RecordListCreated(owned bool)        { m.listsCreated = append(m.listsCreated, owned) }
func (m *mockMetrics) RecordItemAdded()                    { m.itemsAdded++ }
func (m *mockMetrics) RecordValidationFailure(code string) { m.validationFail = append(m.validationFail, code) }
func (m *mockMetrics) RecordHTTPStatus(int)                {}
func (m *mockMetrics) RecordRequestLatency(time.Duration)  {}

// --- compile-time interface checks ---
var (
	_ repository.ListRepository = memoryLists{}
	_ repository.ItemRepository = memoryItems{}
	_ repository.ListRepository = (*mockListRepo)(nil)
	_ repository.ItemRepository = (*mockItemRepo)(nil)
)
