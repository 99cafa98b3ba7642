package auth

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/superlists/internal/mail"
	"github.com/hitoshi/superlists/internal/metrics"
	"github.com/hitoshi/superlists/internal/model"
	"github.com/hitoshi/superlists/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	getOrCreateFn func(ctx context.Context, email string) (*model.User, bool, error)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) GetOrCreate(ctx context.Context, email string) (*model.User, bool, error) {
	if m.getOrCreateFn != nil {
		return m.getOrCreateFn(ctx, email)
	}
	return &model.User{Email: email}, true, nil
}

type mockTokenRepo struct {
	createFn    func(ctx context.Context, token *model.Token) error
	findByUIDFn func(ctx context.Context, uid string) (*model.Token, error)
	consumeFn   func(ctx context.Context, uid string) (*model.Token, error)
}

func (m *mockTokenRepo) Create(ctx context.Context, token *model.Token) error {
	if m.createFn != nil {
		return m.createFn(ctx, token)
	}
	return nil
}

func (m *mockTokenRepo) FindByUID(ctx context.Context, uid string) (*model.Token, error) {
	if m.findByUIDFn != nil {
		return m.findByUIDFn(ctx, uid)
	}
	return nil, nil
}

func (m *mockTokenRepo) Consume(ctx context.Context, uid string) (*model.Token, error) {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, uid)
	}
	return nil, nil
}

func (m *mockTokenRepo) DeleteConsumed(_ context.Context) (int64, error) {
	return 0, nil
}

func (m *mockTokenRepo) DeleteCreatedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockSessionRepo struct {
	createFn     func(ctx context.Context, session *model.Session) error
	findByIDFn   func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type sentMail struct {
	subject, body, from string
	to                  []string
}

type mockSender struct {
	sendFn func(ctx context.Context, subject, body, from string, to []string) error
	sent   []sentMail
}

func (m *mockSender) Send(ctx context.Context, subject, body, from string, to []string) error {
	m.sent = append(m.sent, sentMail{subject: subject, body: body, from: from, to: to})
	if m.sendFn != nil {
		return m.sendFn(ctx, subject, body, from, to)
	}
	return nil
}

type mockMetrics struct {
	tokensIssued   int
	mailFailures   int
	authResults    []string
	sessions       int
	listsCreated   int
	itemsAdded     int
	validationFail []string
}

func (m *mockMetrics) RecordLoginTokenIssued()             { m.tokensIssued++ }
func (m *mockMetrics) RecordLoginMailFailure()             { m.mailFailures++ }
func (m *mockMetrics) RecordAuthentication(result string)  { m.authResults = append(m.authResults, result) }
func (m *mockMetrics) RecordSessionStarted()               { m.sessions++ }
func (m *mockMetrics) RecordListCreated(bool)              { m.listsCreated++ }
func (m *mockMetrics) RecordItemAdded()                    { m.itemsAdded++ }
func (m *mockMetrics) RecordValidationFailure(code string) { m.validationFail = append(m.validationFail, code) }
func (m *mockMetrics) RecordHTTPStatus(int)                {}
func (m *mockMetrics) RecordRequestLatency(time.Duration)  {}

// memoryStore はユーザー・トークン・セッションを保持するインメモリ実装。
// 発行から認証までの一連の流れを検証するために使う。
type memoryStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	tokens   map[string]*model.Token
	sessions map[string]*model.Session
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:    map[string]*model.User{},
		tokens:   map[string]*model.Token{},
		sessions: map[string]*model.Session{},
	}
}

type memoryUsers struct{ *memoryStore }
type memoryTokens struct{ *memoryStore }
type memorySessions struct{ *memoryStore }

func (s memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[email], nil
}

func (s memoryUsers) GetOrCreate(_ context.Context, email string) (*model.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, false, nil
	}
	u := &model.User{Email: email, CreatedAt: time.Now()}
	s.users[email] = u
	return u, true, nil
}

func (s memoryTokens) Create(_ context.Context, token *model.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	token.ID = s.nextID
	token.CreatedAt = time.Now()
	copied := *token
	s.tokens[token.UID] = &copied
	return nil
}

func (s memoryTokens) FindByUID(_ context.Context, uid string) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[uid]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (s memoryTokens) Consume(_ context.Context, uid string) (*model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[uid]
	if !ok || t.ConsumedAt != nil {
		return nil, nil
	}
	now := time.Now()
	t.ConsumedAt = &now
	copied := *t
	return &copied, nil
}

func (s memoryTokens) DeleteConsumed(_ context.Context) (int64, error) { return 0, nil }

func (s memoryTokens) DeleteCreatedBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s memorySessions) Create(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s memorySessions) FindByID(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

func (s memorySessions) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s memorySessions) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (s *memoryStore) userCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// --- compile-time interface checks ---
var (
	_ repository.UserRepository    = (*mockUserRepo)(nil)
	_ repository.TokenRepository   = (*mockTokenRepo)(nil)
	_ repository.SessionRepository = (*mockSessionRepo)(nil)
	_ repository.UserRepository    = memoryUsers{}
	_ repository.TokenRepository   = memoryTokens{}
	_ repository.SessionRepository = memorySessions{}
	_ mail.Sender                  = (*mockSender)(nil)
	_ metrics.MetricsCollector     = (*mockMetrics)(nil)
)
