package repositories

import (
	"context"
	"sync"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryUserStore keeps records in process memory. Records are copied in and
// out so callers never share a pointer with the store.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.UserRecord
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.UserRecord)}
}

func (s *MemoryUserStore) Get(_ context.Context, key string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) Put(_ context.Context, user *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Key()] = *user
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, key)
	return nil
}

func (s *MemoryUserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]models.PaymentRequest
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]models.PaymentRequest)}
}

func (s *MemoryRequestStore) Get(_ context.Context, userKey string) (*models.PaymentRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[userKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryRequestStore) Put(_ context.Context, req *models.PaymentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.UserKey] = *req
	return nil
}

func (s *MemoryRequestStore) Delete(_ context.Context, userKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, userKey)
	return nil
}

type MemoryConversationStore struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]models.Turn
}

func NewMemoryConversationStore(maxTurns int) *MemoryConversationStore {
	return &MemoryConversationStore{maxTurns: maxTurns, turns: make(map[string][]models.Turn)}
}

func (s *MemoryConversationStore) Append(_ context.Context, userKey string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append(s.turns[userKey], turns...)
	if s.maxTurns > 0 && len(all) > s.maxTurns {
		all = append([]models.Turn(nil), all[len(all)-s.maxTurns:]...)
	}
	s.turns[userKey] = all
	return nil
}

func (s *MemoryConversationStore) Recent(_ context.Context, userKey string, limit int) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.turns[userKey]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]models.Turn(nil), all...), nil
}

type MemoryTransactionLog struct {
	mu  sync.RWMutex
	txs []models.TokenTransaction
}

func NewMemoryTransactionLog() *MemoryTransactionLog {
	return &MemoryTransactionLog{}
}

func (l *MemoryTransactionLog) Log(_ context.Context, tx models.TokenTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = nowUTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, tx)
	return nil
}

// ListByUser returns the newest entries first.
func (l *MemoryTransactionLog) ListByUser(_ context.Context, userKey string, limit int) ([]models.TokenTransaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.TokenTransaction
	for i := len(l.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if l.txs[i].UserKey == userKey {
			out = append(out, l.txs[i])
		}
	}
	return out, nil
}
